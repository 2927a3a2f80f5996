// Package cancel реализует HTTP-обработчик отмены подписки.
//
// При отмене на баланс возвращается 70% цены тарифа, пользователь переводится
// на базовый тариф.
package cancel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/kinozal-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/response"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/sl"
	"github.com/magabrotheeeer/kinozal-backend/internal/services/billing"
)

// Service описывает интерфейс бизнес-логики отмены подписки.
type Service interface {
	Cancel(ctx context.Context, username string) (int64, error)
}

// Handler обрабатывает HTTP-запросы отмены подписки.
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
// @Summary Отмена подписки
// @Description Возвращает 70% цены тарифа на баланс и переводит пользователя на базовый тариф.
// @Tags Subscription
// @Produce  json
// @Success 200 {object} map[string]any "Подписка отменена, возврат зачислен"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "Платная подписка не оформлена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /subscription/cancel [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.cancel"
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

	refund, err := h.service.Cancel(r.Context(), username)
	switch {
	case errors.Is(err, billing.ErrNotSubscribed):
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("no active paid subscription"))
		return
	case err != nil:
		log.Error("failed to cancel subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not cancel subscription"))
		return
	}

	log.Info("subscription cancelled",
		slog.String("username", username),
		slog.Int64("refund", refund))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"refund": refund,
	}))
}
