// Command auth_cleanup deletes refresh tokens that expired, or were revoked,
// longer ago than the configured retention. Only the SQL token store keeps
// records past their lifetime; the Redis store expires keys on its own.
package main

import (
	"context"
	"os"
	"time"

	"learnhub/internal/config"
	"learnhub/internal/database"
	"learnhub/internal/pkg/logging"
	"learnhub/internal/repository"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logging.New("info", true).Error(ctx, "invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.ProdLike())

	if cfg.Auth.TokenStore != "sql" {
		log.Info(ctx, "nothing to clean", "token_store", cfg.Auth.TokenStore)
		return
	}

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.Error(ctx, "db connect failed", "error", err)
		os.Exit(1)
	}

	cutoff := time.Now().Add(-cfg.Auth.RefreshRetention)
	n, err := repository.NewRefreshTokenRepository(db).DeleteStale(ctx, cutoff)
	if err != nil {
		log.Error(ctx, "cleanup refresh_tokens failed", "error", err)
		os.Exit(1)
	}

	log.Info(ctx, "auth cleanup completed", "refresh_tokens", n, "cutoff", cutoff)
}
