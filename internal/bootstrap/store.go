package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/statuspulse/internal/config"
	"github.com/hamed0406/statuspulse/internal/repo"
	"github.com/hamed0406/statuspulse/internal/repo/memory"
	"github.com/hamed0406/statuspulse/internal/repo/postgres"
	"github.com/hamed0406/statuspulse/internal/repo/sqlite"
)

// OpenStore picks Postgres, then SQLite, then memory, by which setting is
// present. The returned func releases the store.
func OpenStore(ctx context.Context, cfg config.Config, log *zap.Logger) (repo.Store, func(), error) {
	switch {
	case cfg.DatabaseURL != "":
		pg, err := postgres.New(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, nil, fmt.Errorf("OpenStore postgres: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("OpenStore migrate: %w", err)
		}
		log.Info("store_opened", zap.String("driver", "postgres"))
		return pg, pg.Close, nil

	case cfg.SQLitePath != "":
		lite, err := sqlite.New(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("OpenStore sqlite: %w", err)
		}
		log.Info("store_opened", zap.String("driver", "sqlite"), zap.String("path", cfg.SQLitePath))
		return lite, func() { _ = lite.Close() }, nil

	default:
		log.Warn("store_opened", zap.String("driver", "memory"))
		return memory.New(), func() {}, nil
	}
}
