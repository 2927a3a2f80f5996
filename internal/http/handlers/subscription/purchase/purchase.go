// Package purchase реализует HTTP-обработчик покупки тарифа.
//
// Цена тарифа списывается с баланса пользователя, подписка и дата следующего
// платежа назначаются в одной транзакции с записью журнала операций.
package purchase

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
	"github.com/magabrotheeeer/kinozal-backend/internal/models"
	"github.com/magabrotheeeer/kinozal-backend/internal/services/billing"
)

// Request — структура входных данных для покупки тарифа.
type Request struct {
	PlanName string `json:"plan_name" validate:"required,min=2,max=50"`
}

// Service описывает интерфейс бизнес-логики покупки тарифа.
type Service interface {
	Purchase(ctx context.Context, username, planName string) (*models.User, error)
}

// Handler обрабатывает HTTP-запросы покупки тарифа.
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
// @Summary Покупка тарифа
// @Description Списывает цену тарифа с баланса и оформляет подписку на 30 дней.
// @Tags Subscription
// @Accept  json
// @Produce  json
// @Param request body Request true "Имя тарифа"
// @Success 200 {object} map[string]any "Подписка оформлена"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или нехватка средств"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Тариф не найден"
// @Failure 409 {object} response.ErrorResponse "Этот тариф уже оформлен"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /subscription/purchase [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.purchase"
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

	user, err := h.service.Purchase(r.Context(), username, req.PlanName)
	switch {
	case errors.Is(err, billing.ErrAlreadySubscribed):
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("this plan is already active"))
		return
	case errors.Is(err, billing.ErrPlanNotFound):
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("plan not found"))
		return
	case errors.Is(err, billing.ErrInsufficientFunds):
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("insufficient funds"))
		return
	case err != nil:
		log.Error("failed to purchase plan", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not purchase plan"))
		return
	}

	log.Info("plan purchased",
		slog.String("username", username),
		slog.String("plan", req.PlanName))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"subscription":      user.Subscription,
		"balance":           user.Balance,
		"next_payment_date": user.NextPaymentDate,
	}))
}
