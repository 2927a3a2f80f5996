// Package watch реализует HTTP-обработчик запроса на просмотр фильма.
//
// Ссылка на просмотр выдаётся, только если тариф пользователя не дешевле
// тарифа, требуемого фильмом.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/kinozal-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/response"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/sl"
	"github.com/magabrotheeeer/kinozal-backend/internal/models"
	"github.com/magabrotheeeer/kinozal-backend/internal/services/catalog"
)

// Service описывает интерфейс бизнес-логики просмотра фильма.
type Service interface {
	Watch(ctx context.Context, userPlan string, movieID int) (*models.Movie, error)
}

// UserProvider возвращает текущее состояние пользователя, включая тариф.
type UserProvider interface {
	Info(ctx context.Context, username string) (*models.User, error)
}

// Handler обрабатывает HTTP-запросы на просмотр фильма.
type Handler struct {
	log     *slog.Logger
	service Service
	users   UserProvider
}

// New создает новый Handler с переданными логгером и сервисами.
func New(log *slog.Logger, service Service, users UserProvider) *Handler {
	return &Handler{
		log:     log,
		service: service,
		users:   users,
	}
}

// ServeHTTP godoc
// @Summary Просмотр фильма
// @Description Возвращает ссылку на просмотр, если тариф пользователя даёт доступ к фильму.
// @Tags Movies
// @Produce  json
// @Param id path int true "ID фильма"
// @Success 200 {object} map[string]any "Ссылка на просмотр"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Тариф не даёт доступ к фильму"
// @Failure 404 {object} response.ErrorResponse "Фильм не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /movies/{id}/watch [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.movie.watch"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	movieID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		log.Error("invalid movie id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid movie id"))
		return
	}

	username, ok := r.Context().Value(middlewarectx.User).(string)
	if !ok || username == "" {
		log.Error("username not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	user, err := h.users.Info(r.Context(), username)
	if err != nil {
		log.Error("failed to load user", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal server error"))
		return
	}

	movie, err := h.service.Watch(r.Context(), user.Subscription, movieID)
	switch {
	case errors.Is(err, catalog.ErrMovieNotFound):
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("movie not found"))
		return
	case errors.Is(err, catalog.ErrPlanRequired):
		log.Info("watch denied by plan",
			slog.String("username", username),
			slog.Int("movie_id", movieID))
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error("subscription plan does not allow watching this movie"))
		return
	case err != nil:
		log.Error("failed to open movie", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal server error"))
		return
	}

	log.Info("watch allowed",
		slog.String("username", username),
		slog.Int("movie_id", movieID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"title":     movie.Title,
		"watch_url": movie.WatchURL,
	}))
}
