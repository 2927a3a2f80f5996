// Package withdraw реализует HTTP-обработчик вывода средств с баланса.
//
// Списание с баланса, запись журнала и выплата через платёжный шлюз выполняются
// в одной транзакции: неудачная выплата откатывает списание.
package withdraw

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/kinozal-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/kinozal-backend/internal/http/response"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/sl"
	"github.com/magabrotheeeer/kinozal-backend/internal/paymentprovider"
	"github.com/magabrotheeeer/kinozal-backend/internal/services/billing"
)

// Request — структура входных данных для вывода средств.
type Request struct {
	Amount        int64  `json:"amount" validate:"required,gt=0"`            // сумма в рублях
	AccountNumber string `json:"account_number" validate:"required,numeric"` // кошелёк получателя
}

// Service описывает интерфейс бизнес-логики вывода средств.
type Service interface {
	Withdraw(ctx context.Context, username string, amount int64, fn func(ctx context.Context) error) error
}

// Provider описывает интерфейс платёжного шлюза для выплат.
type Provider interface {
	CreatePayout(ctx context.Context, amount int64, accountNumber string, metadata map[string]string) (*paymentprovider.CreatePayoutResponse, error)
}

// Handler обрабатывает HTTP-запросы вывода средств.
type Handler struct {
	log      *slog.Logger
	service  Service
	provider Provider
	validate *validator.Validate
}

// New создает новый Handler с переданными логгером, сервисом и клиентом шлюза.
func New(log *slog.Logger, service Service, provider Provider) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		provider: provider,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Вывод средств
// @Description Списывает сумму с баланса и отправляет выплату через платёжный шлюз. Неудачная выплата откатывает списание.
// @Tags Balance
// @Accept  json
// @Produce  json
// @Param request body Request true "Сумма и кошелёк получателя"
// @Success 200 {object} map[string]any "Выплата отправлена"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или нехватка средств"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 502 {object} response.ErrorResponse "Платёжный шлюз недоступен"
// @Router /balance/withdraw [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.balance.withdraw"
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

	var payoutID string
	err := h.service.Withdraw(r.Context(), username, req.Amount, func(ctx context.Context) error {
		payout, err := h.provider.CreatePayout(ctx, req.Amount, req.AccountNumber,
			map[string]string{"username": username})
		if err != nil {
			return err
		}
		payoutID = payout.ID
		return nil
	})
	switch {
	case errors.Is(err, billing.ErrInsufficientFunds):
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("insufficient funds"))
		return
	case errors.Is(err, billing.ErrInvalidAmount):
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid amount"))
		return
	case err != nil:
		log.Error("failed to withdraw", sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("could not withdraw funds"))
		return
	}

	log.Info("withdraw success",
		slog.String("username", username),
		slog.Int64("amount", req.Amount))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"payout_id": payoutID,
		"amount":    req.Amount,
	}))
}
