// Package info реализует HTTP-обработчик просмотра состояния подписки и баланса.
package info

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/kinozal-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/response"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/sl"
	"github.com/magabrotheeeer/kinozal-backend/internal/models"
)

// Service описывает интерфейс бизнес-логики состояния пользователя.
type Service interface {
	Info(ctx context.Context, username string) (*models.User, error)
}

// Handler обрабатывает HTTP-запросы состояния подписки.
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
// @Summary Состояние подписки
// @Description Возвращает текущий тариф, баланс и дату следующего платежа пользователя.
// @Tags Subscription
// @Produce  json
// @Success 200 {object} map[string]any "Состояние подписки"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /subscription [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.info"
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

	user, err := h.service.Info(r.Context(), username)
	if err != nil {
		log.Error("failed to load user", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal server error"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"username":          user.Username,
		"subscription":      user.Subscription,
		"balance":           user.Balance,
		"next_payment_date": user.NextPaymentDate,
	}))
}
