// Package plancreate реализует административный HTTP-обработчик создания тарифа.
package plancreate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/kinozal-backend/internal/http/response"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/sl"
	"github.com/magabrotheeeer/kinozal-backend/internal/models"
)

// Service описывает интерфейс бизнес-логики создания тарифа.
type Service interface {
	CreatePlan(ctx context.Context, req models.DummyPlan) (int, error)
}

// Handler обрабатывает административные запросы создания тарифа.
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
// @Summary Создать тариф
// @Description Добавляет новый тариф в каталог. Только для администратора.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body models.DummyPlan true "Данные нового тарифа"
// @Success 200 {object} map[string]any "Тариф создан"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/plans [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.plancreate"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

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

	id, err := h.service.CreatePlan(r.Context(), req)
	if err != nil {
		log.Error("failed to create plan", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create plan"))
		return
	}

	log.Info("plan created", slog.Int("id", id), slog.String("name", req.Name))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"id": id,
	}))
}
