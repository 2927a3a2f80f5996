// Package history реализует HTTP-обработчик журнала операций с балансом.
package history

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/kinozal-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/response"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/sl"
	"github.com/magabrotheeeer/kinozal-backend/internal/models"
)

// Пагинация по умолчанию.
const (
	defaultLimit = 20
	maxLimit     = 100
)

// Service описывает интерфейс бизнес-логики журнала операций.
type Service interface {
	History(ctx context.Context, username string, limit, offset int) ([]*models.Transaction, error)
}

// Handler обрабатывает HTTP-запросы журнала операций.
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

// entry — запись журнала в JSON-ответе: сумма отдаётся со знаком операции.
type entry struct {
	ID            int64  `json:"id"`
	Amount        int64  `json:"amount"`
	PlanName      string `json:"plan_name,omitempty"`
	OperationType string `json:"operation_type"`
	CreatedAt     string `json:"created_at"`
}

// ServeHTTP godoc
// @Summary Журнал операций
// @Description Возвращает историю операций с балансом, новые записи первыми. Суммы списаний отрицательные.
// @Tags Balance
// @Produce  json
// @Param limit query int false "Максимум записей (по умолчанию 20)"
// @Param offset query int false "Смещение (по умолчанию 0)"
// @Success 200 {object} map[string]any "Журнал операций"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /balance/history [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.balance.history"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	username, ok := r.Context().Value(middlewarectx.User).(string)
	if !ok || username == "" {
		log.Error("username not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	limit := parseQueryInt(r, "limit", defaultLimit)
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	offset := parseQueryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	transactions, err := h.service.History(r.Context(), username, limit, offset)
	if err != nil {
		log.Error("failed to load history", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not load history"))
		return
	}

	entries := make([]entry, 0, len(transactions))
	for _, tr := range transactions {
		entries = append(entries, entry{
			ID:            tr.ID,
			Amount:        tr.Signed(),
			PlanName:      tr.PlanName,
			OperationType: tr.OperationType,
			CreatedAt:     tr.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"transactions": entries,
		"count":        len(entries),
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
