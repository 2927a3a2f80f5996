// Package userreset реализует административный HTTP-обработчик сброса подписки
// пользователя на базовый тариф без возврата средств.
package userreset

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/kinozal-backend/internal/http/response"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/sl"
)

// Repository описывает интерфейс хранилища для сброса подписки.
type Repository interface {
	ResetSubscription(ctx context.Context, userUID string) error
}

// Handler обрабатывает административные запросы сброса подписки.
type Handler struct {
	log  *slog.Logger
	repo Repository
}

// New создает новый Handler с переданными логгером и хранилищем.
func New(log *slog.Logger, repo Repository) *Handler {
	return &Handler{
		log:  log,
		repo: repo,
	}
}

// ServeHTTP godoc
// @Summary Сбросить подписку пользователя
// @Description Переводит пользователя на базовый тариф без возврата средств. Только для администратора.
// @Tags Admin
// @Produce  json
// @Param uid path string true "UID пользователя"
// @Success 200 {object} map[string]any "Подписка сброшена"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/users/{uid}/reset [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.userreset"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID := chi.URLParam(r, "uid")
	if userUID == "" {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid user uid"))
		return
	}

	err := h.repo.ResetSubscription(r.Context(), userUID)
	if errors.Is(err, sql.ErrNoRows) {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("user not found"))
		return
	}
	if err != nil {
		log.Error("failed to reset subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not reset subscription"))
		return
	}

	log.Info("subscription reset", slog.String("user_uid", userUID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"user_uid": userUID,
	}))
}
