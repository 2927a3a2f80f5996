// Package middlewarectx содержит HTTP middleware для проверки JWT токенов,
// контроля активности сессии, проверки срока подписки и ограничения частоты
// запросов.
//
// JWTMiddleware проверяет наличие и валидность JWT токена в заголовке
// Authorization и в случае успеха добавляет в контекст имя пользователя
// и роль для дальнейшего использования в обработчиках.
//
// В случае ошибки проверки возвращает HTTP 401 Unauthorized с сообщением об ошибке.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/kinozal-backend/internal/http/response"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/sl"
	"github.com/magabrotheeeer/kinozal-backend/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// User — ключ для имени пользователя в контексте
	User Key = "username"
	// Role — ключ для роли пользователя в контексте
	Role Key = "role"
	// UserUID — ключ для идентификатора пользователя в контексте
	UserUID Key = "useruid"
)

// TokenValidator описывает интерфейс сервиса для валидации JWT токена.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*models.User, string, bool, error)
}

// JWTMiddleware возвращает HTTP middleware, который проверяет JWT в заголовке Authorization.
//
// Если токен валиден, добавляет имя пользователя, роль и UID в контекст запроса,
// иначе возвращает ошибку с HTTP статусом 401 Unauthorized.
func JWTMiddleware(authService TokenValidator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const op = "middlewarectx.JWTMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Error("missing or invalid authorization header")
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			user, role, valid, err := authService.ValidateToken(r.Context(), tokenStr)
			if err != nil || !valid {
				log.Error("invalid or expired token", sl.Err(err))
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}
			ctx := context.WithValue(r.Context(), User, user.Username)
			ctx = context.WithValue(ctx, Role, role)
			ctx = context.WithValue(ctx, UserUID, user.UID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnlyMiddleware пропускает запрос дальше только для роли "admin".
func AdminOnlyMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := r.Context().Value(Role).(string)
			if !ok || role != "admin" {
				log.Error("access denied, admin role required",
					slog.String("role", role))
				w.WriteHeader(http.StatusForbidden)
				render.JSON(w, r, response.Error("admin role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
