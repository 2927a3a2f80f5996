// Package moviecreate реализует административный HTTP-обработчик добавления фильма.
package moviecreate

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

// Service описывает интерфейс бизнес-логики добавления фильма.
type Service interface {
	CreateMovie(ctx context.Context, req models.DummyMovie) (int, error)
}

// Handler обрабатывает административные запросы добавления фильма.
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
// @Summary Добавить фильм
// @Description Добавляет фильм в каталог. Только для администратора.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body models.DummyMovie true "Данные нового фильма"
// @Success 200 {object} map[string]any "Фильм добавлен"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/movies [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.moviecreate"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyMovie
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

	id, err := h.service.CreateMovie(r.Context(), req)
	if err != nil {
		log.Error("failed to create movie", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create movie"))
		return
	}

	log.Info("movie created", slog.Int("id", id), slog.String("title", req.Title))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"id": id,
	}))
}
