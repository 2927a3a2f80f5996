// Package deposit реализует HTTP-обработчик пополнения баланса.
//
// Обработчик создаёт платёж в платёжном шлюзе и возвращает ссылку на страницу
// оплаты. Сам баланс пополняется позже, когда шлюз подтвердит платёж через
// webhook.
package deposit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/kinozal-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/response"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/sl"
	"github.com/magabrotheeeer/kinozal-backend/internal/metrics"
	"github.com/magabrotheeeer/kinozal-backend/internal/paymentprovider"
)

// Request — структура входных данных для пополнения баланса.
type Request struct {
	Amount int64 `json:"amount" validate:"required,gt=0"` // сумма в рублях
}

// Provider описывает интерфейс платёжного шлюза для создания платежа.
type Provider interface {
	CreatePayment(ctx context.Context, amount int64, description string, metadata map[string]string) (*paymentprovider.CreatePaymentResponse, error)
}

// Handler обрабатывает HTTP-запросы пополнения баланса.
type Handler struct {
	log      *slog.Logger
	provider Provider
	validate *validator.Validate
}

// New создает новый Handler с переданными логгером и клиентом шлюза.
func New(log *slog.Logger, provider Provider) *Handler {
	return &Handler{
		log:      log,
		provider: provider,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Пополнение баланса
// @Description Создает платёж в платёжном шлюзе и возвращает ссылку на страницу оплаты. Баланс пополняется после подтверждения платежа шлюзом.
// @Tags Balance
// @Accept  json
// @Produce  json
// @Param request body Request true "Сумма пополнения в рублях"
// @Success 200 {object} map[string]any "Платёж создан"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 502 {object} response.ErrorResponse "Платёжный шлюз недоступен"
// @Router /balance/deposit [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.balance.deposit"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
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

	username, ok := r.Context().Value(middlewarectx.User).(string)
	if !ok || username == "" {
		log.Error("username not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	payment, err := h.provider.CreatePayment(r.Context(), req.Amount,
		fmt.Sprintf("Пополнение баланса пользователя %s", username),
		map[string]string{"username": username})
	if err != nil {
		log.Error("failed to create payment", sl.Err(err))
		metrics.IncPayment("failed")
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("payment gateway unavailable"))
		return
	}
	metrics.IncPayment(payment.Status)

	log.Info("payment created",
		slog.String("username", username),
		slog.String("payment_id", payment.ID),
		slog.Int64("amount", req.Amount))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"payment_id":       payment.ID,
		"status":           payment.Status,
		"confirmation_url": payment.Confirmation.ConfirmationURL,
	}))
}
