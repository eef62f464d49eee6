// Command monitor runs the check engine without the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/statuspulse/internal/bootstrap"
	"github.com/hamed0406/statuspulse/internal/config"
	"github.com/hamed0406/statuspulse/internal/logging"
	"github.com/hamed0406/statuspulse/internal/scheduler"
	"github.com/hamed0406/statuspulse/internal/schp"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	daemon := flag.Bool("daemon", false, "run cycles on a schedule until interrupted")
	interval := flag.Duration("interval", 0, "cycle interval; overrides CYCLE_SCHEDULE")
	capURL := flag.String("capabilities", "", "fetch one capabilities document, print a summary and exit")
	flag.Parse()

	if *capURL != "" {
		os.Exit(probeCapabilities(*capURL))
	}

	if *once == *daemon {
		fmt.Fprintln(os.Stderr, "usage: monitor -once | -daemon [-interval 30s]")
		os.Exit(2)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	if *interval > 0 {
		cfg.CycleSchedule = "@every " + interval.String()
	}
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *once); err != nil {
		logger.Error("monitor_exit", zap.Error(err))
		os.Exit(1)
	}
}

func probeCapabilities(url string) int {
	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Second)
	defer cancel()
	r := schp.NewClient().Fetch(ctx, url, 30*time.Second)
	fmt.Println(schp.FormatSummary(r))
	if r.Error != "" {
		fmt.Println("  error:", r.Error)
	}
	for _, c := range r.FailedCapabilities {
		fmt.Println("  -", c)
	}
	if !r.IsUp() {
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, once bool) error {
	store, closeStore, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.MonitorsFile != "" {
		f, err := config.LoadMonitors(cfg.MonitorsFile)
		if err != nil {
			return err
		}
		if _, err := bootstrap.SyncMonitors(ctx, store, f, logger); err != nil {
			logger.Warn("monitors_sync_partial", zap.Error(err))
		}
	}

	eng, err := bootstrap.Build(cfg, store, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	if once {
		start := time.Now()
		rep, err := eng.Runner.RunOnce(ctx)
		if err != nil {
			return err
		}
		for _, o := range rep.Outcomes {
			fmt.Println(formatOutcome(o))
		}
		fmt.Printf("checked %d of %d active monitors (%d skipped, %d failed) in %s\n",
			rep.Checked, rep.Active, rep.Skipped, rep.Failed, time.Since(start).Round(time.Millisecond))
		return nil
	}
	return eng.Runner.Run(ctx)
}

func formatOutcome(o scheduler.MonitorOutcome) string {
	name := o.Name
	if name == "" {
		name = o.URL
	}
	state := "DOWN"
	if o.Result.Up {
		state = "UP"
	}
	line := fmt.Sprintf("%s: %s", name, state)
	if o.Result.LatencyMS != nil {
		line += fmt.Sprintf(" (%d ms)", *o.Result.LatencyMS)
	}
	if !o.Result.Up && o.Result.Error != "" {
		line += " - " + o.Result.Error
	}
	if o.Err != nil {
		line += " [not recorded: " + o.Err.Error() + "]"
	}
	return line
}
