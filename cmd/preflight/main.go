// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/hamed0406/statuspulse/internal/config"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.FromEnv()
	if err != nil {
		fail(err.Error())
	}

	if len(cfg.API.AdminAPIKeys) == 0 {
		fail("ADMIN_API_KEYS is empty (admin routes are open).")
	}
	if len(cfg.API.PublicAPIKeys) == 0 {
		fail("PUBLIC_API_KEYS is empty (read routes are open).")
	}
	for name, keys := range map[string][]string{"ADMIN_API_KEYS": cfg.API.AdminAPIKeys, "PUBLIC_API_KEYS": cfg.API.PublicAPIKeys} {
		for _, k := range keys {
			if strings.TrimSpace(k) != k || k == "" {
				warn(name + " contains spaces or empty entries; use comma-separated with no spaces, e.g. key1,key2")
				break
			}
		}
	}
	ok("API_ADDR=" + cfg.Addr)

	if _, err := cron.ParseStandard(cfg.CycleSchedule); err != nil {
		fail("CYCLE_SCHEDULE invalid: " + err.Error())
	}
	ok("CYCLE_SCHEDULE=" + cfg.CycleSchedule)

	switch {
	case cfg.DatabaseURL != "":
		ok("DATABASE_URL present (postgres)")
	case cfg.SQLitePath != "":
		ok("SQLITE_PATH=" + cfg.SQLitePath)
	default:
		warn("DATABASE_URL and SQLITE_PATH empty; state lives in memory and is lost on restart.")
	}

	if cfg.MonitorsFile != "" {
		f, err := config.LoadMonitors(cfg.MonitorsFile)
		if err != nil {
			fail("MONITORS_FILE: " + err.Error())
		}
		ok(fmt.Sprintf("MONITORS_FILE=%s (%d monitors)", cfg.MonitorsFile, len(f.Monitors)))
	}

	if cfg.SMTP.Configured() {
		ok("SMTP configured for " + cfg.SMTP.Email)
	} else {
		warn("SMTP_EMAIL or SMTP_PASSWORD empty; email alerts are skipped.")
	}
	if len(cfg.Kafka.Brokers) > 0 {
		ok("KAFKA_BROKERS=" + strings.Join(cfg.Kafka.Brokers, ",") + " topic=" + cfg.Kafka.StatusTopic)
	}

	if len(cfg.API.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; CORS allows every origin.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.API.AllowedOrigins, ","))
	}

	ok("preflight passed")
}
