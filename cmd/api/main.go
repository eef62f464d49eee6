package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/statuspulse/internal/bootstrap"
	"github.com/hamed0406/statuspulse/internal/config"
	"github.com/hamed0406/statuspulse/internal/httpapi"
	apimw "github.com/hamed0406/statuspulse/internal/httpapi/middleware"
	"github.com/hamed0406/statuspulse/internal/logging"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api_exit", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
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

	api := httpapi.NewServer(logger, store, eng.Scheduler, eng.Scheduler)
	keys := apimw.Keys{Public: cfg.API.PublicAPIKeys, Admin: cfg.API.AdminAPIKeys}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(keys, cfg.API.AllowedOrigins, cfg.API.PublicRPM, cfg.API.PublicBurst, cfg.API.AdminRPM, cfg.API.AdminBurst),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Runner.Run(gctx) })
	if cfg.MonitorsFile != "" && cfg.WatchMonitorsFile {
		g.Go(func() error {
			return config.WatchMonitors(gctx, cfg.MonitorsFile, logger, func(f *config.MonitorFile) {
				if _, err := bootstrap.SyncMonitors(gctx, store, f, logger); err != nil {
					logger.Warn("monitors_sync_partial", zap.Error(err))
				}
			})
		})
	}
	g.Go(func() error {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
