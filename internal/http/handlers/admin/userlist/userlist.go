// Package userlist реализует административный HTTP-обработчик списка пользователей.
package userlist

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
	defaultLimit = 20
	maxLimit     = 100
)

// Repository описывает интерфейс хранилища пользователей.
type Repository interface {
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
}

// Handler обрабатывает административные запросы списка пользователей.
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

// item — пользователь в JSON-ответе, без хэша пароля.
type item struct {
	UID             string  `json:"uid"`
	Username        string  `json:"username"`
	Email           string  `json:"email"`
	Role            string  `json:"role"`
	IsActive        bool    `json:"is_active"`
	Balance         int64   `json:"balance"`
	Subscription    string  `json:"subscription"`
	NextPaymentDate *string `json:"next_payment_date,omitempty"`
}

// ServeHTTP godoc
// @Summary Список пользователей
// @Description Возвращает пользователей с балансом и подпиской. Только для администратора.
// @Tags Admin
// @Produce  json
// @Param limit query int false "Максимум записей (по умолчанию 20)"
// @Param offset query int false "Смещение (по умолчанию 0)"
// @Success 200 {object} map[string]any "Список пользователей"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/users [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.userlist"
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

	users, err := h.repo.ListUsers(r.Context(), limit, offset)
	if err != nil {
		log.Error("failed to list users", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list users"))
		return
	}

	items := make([]item, 0, len(users))
	for _, u := range users {
		it := item{
			UID:          u.UID,
			Username:     u.Username,
			Email:        u.Email,
			Role:         u.Role,
			IsActive:     u.IsActive,
			Balance:      u.Balance,
			Subscription: u.Subscription,
		}
		if u.NextPaymentDate != nil {
			formatted := u.NextPaymentDate.Format("2006-01-02")
			it.NextPaymentDate = &formatted
		}
		items = append(items, it)
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"users": items,
		"count": len(items),
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
