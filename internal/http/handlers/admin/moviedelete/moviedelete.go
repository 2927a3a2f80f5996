// Package moviedelete реализует административный HTTP-обработчик удаления фильма.
package moviedelete

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

// Service описывает интерфейс бизнес-логики удаления фильма.
type Service interface {
	DeleteMovie(ctx context.Context, id int) (int, error)
}

// Handler обрабатывает административные запросы удаления фильма.
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
// @Summary Удалить фильм
// @Description Удаляет фильм из каталога по ID. Только для администратора.
// @Tags Admin
// @Produce  json
// @Param id path int true "ID фильма"
// @Success 200 {object} map[string]any "Фильм удалён"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 404 {object} response.ErrorResponse "Фильм не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/movies/{id} [delete]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.moviedelete"
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

	count, err := h.service.DeleteMovie(r.Context(), id)
	if err != nil {
		log.Error("failed to delete movie", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not delete movie"))
		return
	}
	if count == 0 {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("movie not found"))
		return
	}

	log.Info("movie deleted", slog.Int("id", id))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"deleted": count,
	}))
}
