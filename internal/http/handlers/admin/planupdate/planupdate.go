// Package planupdate реализует административный HTTP-обработчик обновления тарифа.
package planupdate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/kinozal-backend/internal/http/response"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/sl"
	"github.com/magabrotheeeer/kinozal-backend/internal/models"
)

// Service описывает интерфейс бизнес-логики обновления тарифа.
type Service interface {
	UpdatePlan(ctx context.Context, req models.DummyPlan, id int) (int, error)
}

// Handler обрабатывает административные запросы обновления тарифа.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Обновить тариф
// @Description Обновляет тариф по ID. Только для администратора.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param id path int true "ID тарифа"
// @Param request body models.DummyPlan true "Новые данные тарифа"
// @Success 200 {object} map[string]any "Тариф обновлён"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ID"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 404 {object} response.ErrorResponse "Тариф не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/plans/{id} [put]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.planupdate"
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

	var req models.DummyPlan
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	count, err := h.service.UpdatePlan(r.Context(), req, id)
	if err != nil {
		log.Error("failed to update plan", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not update plan"))
		return
	}
	if count == 0 {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("plan not found"))
		return
	}

	log.Info("plan updated", slog.Int("id", id))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"updated": count,
	}))
}
