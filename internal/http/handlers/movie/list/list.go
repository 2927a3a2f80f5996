// Package list реализует HTTP-обработчик списка фильмов каталога.
package list

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/kinozal-backend/internal/http/response"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/sl"
	"github.com/magabrotheeeer/kinozal-backend/internal/models"
)

// Пагинация по умолчанию.
const (
	defaultLimit = 10
	maxLimit     = 100
)

// Service описывает интерфейс бизнес-логики каталога фильмов.
type Service interface {
	ListMovies(ctx context.Context, limit, offset int) ([]*models.Movie, error)
}

// Handler обрабатывает HTTP-запросы списка фильмов.
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
// @Summary Каталог фильмов
// @Description Возвращает фильмы каталога с пагинацией. Параметры limit и offset передаются в query.
// @Tags Movies
// @Produce  json
// @Param limit query int false "Максимум записей (по умолчанию 10)"
// @Param offset query int false "Смещение (по умолчанию 0)"
// @Success 200 {object} map[string]any "Список фильмов"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /movies [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.movie.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	limit := parseQueryInt(r, "limit", defaultLimit)
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	offset := parseQueryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	movies, err := h.service.ListMovies(r.Context(), limit, offset)
	if err != nil {
		log.Error("failed to list movies", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list movies"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"movies": movies,
		"count":  len(movies),
	}))
}

func parseQueryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
