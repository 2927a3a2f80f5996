// Package plandelete реализует административный HTTP-обработчик удаления тарифа.
//
// Подписки действующих пользователей при удалении тарифа не меняются: при
// следующем платеже такие пользователи будут переведены на базовый тариф.
package plandelete

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/kinozal-backend/internal/http/response"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/sl"
)

// Service описывает интерфейс бизнес-логики удаления тарифа.
type Service interface {
	DeletePlan(ctx context.Context, id int) (int, error)
}

// Handler обрабатывает административные запросы удаления тарифа.
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
// @Summary Удалить тариф
// @Description Удаляет тариф по ID. Только для администратора.
// @Tags Admin
// @Produce  json
// @Param id path int true "ID тарифа"
// @Success 200 {object} map[string]any "Тариф удалён"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 404 {object} response.ErrorResponse "Тариф не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/plans/{id} [delete]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.plandelete"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		log.Error("invalid plan id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid plan id"))
		return
	}

	count, err := h.service.DeletePlan(r.Context(), id)
	if err != nil {
		log.Error("failed to delete plan", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not delete plan"))
		return
	}
	if count == 0 {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("plan not found"))
		return
	}

	log.Info("plan deleted", slog.Int("id", id))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"deleted": count,
	}))
}
