// Package health реализует HTTP-обработчик проверки работоспособности сервиса.
package health

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/kinozal-backend/internal/http/response"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/sl"
	"github.com/magabrotheeeer/kinozal-backend/internal/storage/repository"
)

// Handler обрабатывает запросы проверки работоспособности.
type Handler struct {
	log *slog.Logger
	db  *repository.Storage
}

// New создает новый Handler с переданными логгером и хранилищем.
func New(log *slog.Logger, db *repository.Storage) *Handler {
	return &Handler{
		log: log,
		db:  db,
	}
}

// ServeHTTP godoc
// @Summary Проверка работоспособности
// @Description Проверяет доступность сервиса и базы данных.
// @Tags Health
// @Produce  json
// @Success 200 {object} map[string]any "Сервис работает"
// @Failure 503 {object} response.ErrorResponse "База данных недоступна"
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := repository.CheckDatabaseReady(h.db); err != nil {
		h.log.Error("database is not ready", sl.Err(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("database unavailable"))
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"healthy": true,
	}))
}
