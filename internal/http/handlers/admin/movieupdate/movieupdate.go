// Package movieupdate реализует административный HTTP-обработчик обновления фильма.
package movieupdate

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

// Service описывает интерфейс бизнес-логики обновления фильма.
type Service interface {
	UpdateMovie(ctx context.Context, req models.DummyMovie, id int) (int, error)
}

// Handler обрабатывает административные запросы обновления фильма.
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
// @Summary Обновить фильм
// @Description Обновляет фильм по ID. Только для администратора.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param id path int true "ID фильма"
// @Param request body models.DummyMovie true "Новые данные фильма"
// @Success 200 {object} map[string]any "Фильм обновлён"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ID"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 404 {object} response.ErrorResponse "Фильм не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/movies/{id} [put]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.movieupdate"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		log.Error("invalid movie id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid movie id"))
		return
	}

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

	count, err := h.service.UpdateMovie(r.Context(), req, id)
	if err != nil {
		log.Error("failed to update movie", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not update movie"))
		return
	}
	if count == 0 {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("movie not found"))
		return
	}

	log.Info("movie updated", slog.Int("id", id))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"updated": count,
	}))
}
