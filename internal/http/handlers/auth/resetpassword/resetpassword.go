// Package resetpassword реализует HTTP-обработчик сброса пароля пользователя.
//
// Новый пароль генерируется сервером и возвращается в ответе открытым текстом.
package resetpassword

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/kinozal-backend/internal/http/response"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/sl"
	"github.com/magabrotheeeer/kinozal-backend/internal/services/auth"
)

// Request — структура входных данных для сброса пароля.
type Request struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
}

// Service описывает интерфейс бизнес-логики сброса пароля.
type Service interface {
	ResetPassword(ctx context.Context, username string) (string, error)
}

// Handler обрабатывает HTTP-запросы сброса пароля.
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
// @Summary Сброс пароля
// @Description Генерирует новый пароль для пользователя и возвращает его в ответе.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Имя пользователя"
// @Success 200 {object} map[string]any "Новый пароль"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /reset-password [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.resetpassword"
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

	newPassword, err := h.service.ResetPassword(r.Context(), req.Username)
	if errors.Is(err, auth.ErrUserNotFound) {
		log.Info("unknown user", slog.String("username", req.Username))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("user not found"))
		return
	}
	if err != nil {
		log.Error("failed to reset password", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not reset password"))
		return
	}

	log.Info("password reset", slog.String("username", req.Username))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"username":     req.Username,
		"new_password": newPassword,
	}))
}
