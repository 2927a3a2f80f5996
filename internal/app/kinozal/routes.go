// Package kinozal предоставляет маршруты для основного приложения.
package kinozal

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/kinozal-backend/internal/cache"
	"github.com/magabrotheeeer/kinozal-backend/internal/config"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/handlers/admin/moviecreate"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/handlers/admin/moviedelete"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/handlers/admin/movieupdate"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/handlers/admin/plancreate"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/handlers/admin/plandelete"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/handlers/admin/planupdate"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/handlers/admin/userlist"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/handlers/admin/userreset"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/handlers/auth/logout"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/handlers/auth/resetpassword"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/handlers/balance/deposit"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/handlers/balance/history"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/handlers/balance/withdraw"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/handlers/health"
	movielist "github.com/magabrotheeeer/kinozal-backend/internal/http/handlers/movie/list"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/handlers/movie/watch"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/handlers/payment/paymentwebhook"
	planlist "github.com/magabrotheeeer/kinozal-backend/internal/http/handlers/plan/list"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/handlers/subscription/cancel"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/handlers/subscription/info"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/handlers/subscription/purchase"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/kinozal-backend/internal/paymentprovider"
	authservice "github.com/magabrotheeeer/kinozal-backend/internal/services/auth"
	billingservice "github.com/magabrotheeeer/kinozal-backend/internal/services/billing"
	catalogservice "github.com/magabrotheeeer/kinozal-backend/internal/services/catalog"
	"github.com/magabrotheeeer/kinozal-backend/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config,
	db *repository.Storage, cacheRedis *cache.Cache,
	authService *authservice.Service, billingService *billingservice.Service,
	catalogService *catalogservice.Service, providerClient *paymentprovider.Client,
) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, authService).ServeHTTP)
		r.Post("/login", login.New(logger, authService).ServeHTTP)
		r.Post("/reset-password", resetpassword.New(logger, authService).ServeHTTP)
		r.Get("/plans", planlist.New(logger, catalogService).ServeHTTP)
		r.Get("/health", health.New(logger, db).ServeHTTP)

		// Группа с JWT аутентификацией и контролем сессии
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(authService, logger))
			r.Use(middlewarectx.SessionMiddleware(logger, db, billingService, cacheRedis, cfg.InactivityLimit))
			r.Use(middlewarectx.RateLimitMiddleware(logger))

			r.Post("/logout", logout.New(logger, authService).ServeHTTP)

			r.Get("/movies", movielist.New(logger, catalogService).ServeHTTP)
			r.Get("/movies/{id}/watch", watch.New(logger, catalogService, billingService).ServeHTTP)

			r.Get("/subscription", info.New(logger, billingService).ServeHTTP)
			r.Post("/subscription/purchase", purchase.New(logger, billingService).ServeHTTP)
			r.Post("/subscription/cancel", cancel.New(logger, billingService).ServeHTTP)

			r.Post("/balance/deposit", deposit.New(logger, providerClient).ServeHTTP)
			r.Post("/balance/withdraw", withdraw.New(logger, billingService, providerClient).ServeHTTP)
			r.Get("/balance/history", history.New(logger, billingService).ServeHTTP)

			// Административные маршруты
			r.Route("/admin", func(r chi.Router) {
				r.Use(middlewarectx.AdminOnlyMiddleware(logger))

				r.Post("/plans", plancreate.New(logger, catalogService).ServeHTTP)
				r.Put("/plans/{id}", planupdate.New(logger, catalogService).ServeHTTP)
				r.Delete("/plans/{id}", plandelete.New(logger, catalogService).ServeHTTP)

				r.Post("/movies", moviecreate.New(logger, catalogService).ServeHTTP)
				r.Put("/movies/{id}", movieupdate.New(logger, catalogService).ServeHTTP)
				r.Delete("/movies/{id}", moviedelete.New(logger, catalogService).ServeHTTP)

				r.Get("/users", userlist.New(logger, db).ServeHTTP)
				r.Post("/users/{uid}/reset", userreset.New(logger, db).ServeHTTP)
			})
		})

		// Webhook endpoint (без аутентификации, подпись проверяется в обработчике)
		r.Post("/payments/webhook", paymentwebhook.New(logger, billingService, cacheRedis, cfg.SecretKey).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
