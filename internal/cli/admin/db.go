package admin

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/agentkb/internal/config"
	"github.com/cloo-solutions/agentkb/internal/database"
	"github.com/cloo-solutions/agentkb/internal/logger"
)

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return newPool(ctx, cfg)
}

func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Logger:   logger.Named("database"),
	})
}

func runMigrations(databaseURL string) error {
	return database.Migrate(databaseURL, database.DefaultMigrationsSource)
}
