// Package logout реализует HTTP-обработчик завершения сессии пользователя.
package logout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/kinozal-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/response"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/sl"
)

// Service описывает интерфейс бизнес-логики завершения сессии.
type Service interface {
	Logout(ctx context.Context, username string) error
}

// Handler обрабатывает HTTP-запросы выхода из системы.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Выход из системы
// @Description Завершает текущую сессию пользователя.
// @Tags Auth
// @Produce  json
// @Success 200 {object} map[string]any "Сессия завершена"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /logout [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	username, ok := r.Context().Value(middlewarectx.User).(string)
	if !ok || username == "" {
		log.Error("username not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	if err := h.service.Logout(r.Context(), username); err != nil {
		log.Error("failed to logout", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not logout"))
		return
	}

	log.Info("logout success", slog.String("username", username))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"username": username,
	}))
}
