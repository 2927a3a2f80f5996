// Package list реализует HTTP-обработчик списка тарифов.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/kinozal-backend/internal/http/response"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/sl"
	"github.com/magabrotheeeer/kinozal-backend/internal/models"
)

// Service описывает интерфейс бизнес-логики каталога тарифов.
type Service interface {
	ListPlans(ctx context.Context) ([]*models.Plan, error)
}

// Handler обрабатывает HTTP-запросы списка тарифов.
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
// @Summary Список тарифов
// @Description Возвращает все тарифы подписки, отсортированные по цене.
// @Tags Plans
// @Produce  json
// @Success 200 {object} map[string]any "Список тарифов"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /plans [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	plans, err := h.service.ListPlans(r.Context())
	if err != nil {
		log.Error("failed to list plans", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list plans"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"plans": plans,
		"count": len(plans),
	}))
}
