// Package app assembles the service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"learnhub/internal/config"
	"learnhub/internal/database"
	"learnhub/internal/events"
	"learnhub/internal/modules/auth"
	"learnhub/internal/modules/materials"
	"learnhub/internal/modules/refreshtoken"
	"learnhub/internal/modules/users"
	"learnhub/internal/pkg/hasher"
	"learnhub/internal/pkg/jwt"
	"learnhub/internal/pkg/logging"
	"learnhub/internal/repository"
	"learnhub/internal/storage"
)

type App struct {
	Config *config.Config
	Logger logging.Logger
	DB     *gorm.DB
	Server *http.Server

	closers []func() error
}

// Build connects to every backing service named by cfg and wires the
// HTTP server. Close releases what Build opened.
func Build(ctx context.Context, cfg *config.Config, log logging.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.DB = db
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	if err := database.Migrate(ctx, db, repository.Models()...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	store, err := a.tokenStore(ctx, db)
	if err != nil {
		return nil, err
	}
	blobs, err := blobStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.AMQPURL != "" {
		publisher = events.NewAMQPPublisher(cfg.AMQPURL, log)
	}

	userRepo := repository.NewUserRepository(db)
	bcrypt := hasher.NewBcrypt(cfg.Auth.BcryptCost)
	tokens := jwt.New(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL, cfg.Auth.JWTIssuer)

	manager := refreshtoken.NewManager(store, bcrypt, userRepo, tokens, refreshtoken.Config{
		DefaultTTLDays: cfg.Auth.RefreshTTLDays,
		Publisher:      publisher,
		Logger:         log,
	})

	var google *auth.GoogleProvider
	if cfg.Google.Enabled() {
		google = auth.NewGoogleProvider(auth.GoogleConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
		})
	}

	authService := auth.NewService(userRepo, bcrypt, tokens, manager, auth.Config{Publisher: publisher, Logger: log})
	authHandler := auth.NewHandler(authService, auth.HandlerConfig{
		Google:        google,
		StateSecret:   cfg.Google.StateSecret,
		SecureCookies: cfg.ProdLike(),
		Logger:        log,
	})

	usersHandler := users.NewHandler(users.NewService(userRepo, log))

	materialService := materials.NewService(repository.NewMaterialRepository(db), userRepo, blobs, materials.Config{
		MaxFileSize: cfg.Storage.MaxSize,
		Publisher:   publisher,
		Logger:      log,
	})

	router := NewRouter(Deps{
		Logger:      log,
		Verifier:    tokens,
		Policy:      DefaultPolicy(),
		CORSOrigins: cfg.CORSOrigins,
		Auth:        authHandler,
		Users:       usersHandler,
		Materials:   materials.NewHandler(materialService),
	})

	a.Server = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

func (a *App) tokenStore(ctx context.Context, db *gorm.DB) (refreshtoken.Store, error) {
	switch a.Config.Auth.TokenStore {
	case "redis":
		rc := a.Config.Redis
		rdb := redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
		a.closers = append(a.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return repository.NewRedisRefreshTokenStore(rdb, rc.KeyPrefix, a.Config.Auth.RefreshRetention), nil
	case "memory":
		a.Logger.Warn(ctx, "using in-memory refresh token store; sessions are lost on restart")
		return refreshtoken.NewMemoryStore(), nil
	default:
		return repository.NewRefreshTokenRepository(db), nil
	}
}

func blobStore(ctx context.Context, sc config.StorageConfig) (storage.BlobStore, error) {
	if sc.Backend == "s3" {
		s, err := storage.NewS3(ctx, storage.S3Config{
			Bucket:    sc.S3Bucket,
			Region:    sc.S3Region,
			Endpoint:  sc.S3Endpoint,
			AccessKey: sc.S3AccessKey,
			SecretKey: sc.S3SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 storage: %w", err)
		}
		return s, nil
	}
	l, err := storage.NewLocal(sc.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("local storage: %w", err)
	}
	return l, nil
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
