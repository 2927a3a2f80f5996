package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/kinozal-backend/internal/http/response"
)

var limiter = rate.NewLimiter(10, 30)

// RateLimitMiddleware ограничивает частоту запросов к защищённым маршрутам.
func RateLimitMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				log.Error("too many requests")
				w.WriteHeader(http.StatusTooManyRequests)
				render.JSON(w, r, response.Error("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
