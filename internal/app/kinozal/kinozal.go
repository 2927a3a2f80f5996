// Package kinozal собирает основное приложение: хранилище, кеш, сервисы и
// HTTP-сервер с маршрутами.
package kinozal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/kinozal-backend/internal/cache"
	"github.com/magabrotheeeer/kinozal-backend/internal/config"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/jwt"
	"github.com/magabrotheeeer/kinozal-backend/internal/metrics"
	"github.com/magabrotheeeer/kinozal-backend/internal/migrations"
	"github.com/magabrotheeeer/kinozal-backend/internal/paymentprovider"
	authservice "github.com/magabrotheeeer/kinozal-backend/internal/services/auth"
	billingservice "github.com/magabrotheeeer/kinozal-backend/internal/services/billing"
	catalogservice "github.com/magabrotheeeer/kinozal-backend/internal/services/catalog"
	"github.com/magabrotheeeer/kinozal-backend/internal/storage/repository"
)

// App основное приложение сервиса.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
}

// New создает новый экземпляр основного приложения.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	authService := authservice.New(db, cacheRedis, jwtMaker)
	billingService := billingservice.New(db, logger)
	catalogService := catalogservice.New(db, cacheRedis, logger)
	providerClient := paymentprovider.NewClient(cfg.ShopID, cfg.SecretKey, cfg.ReturnURL)

	metrics.MustRegister()

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, db, cacheRedis,
		authService, billingService, catalogService, providerClient)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его при отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if closeErr := a.db.DB.Close(); closeErr != nil {
			a.logger.Error("failed to close storage", slog.Any("err", closeErr))
		}
		return err
	}
}
