// Package login реализует HTTP-обработчик для запросов аутентификации пользователей.
//
// В нём определяется структура Request для входных данных, выполняется декодирование JSON,
// проверка и валидация полей, а также делегирование операции входа бизнес-логике.
// При успешной аутентификации возвращается JSON с JWT; сессия пользователя
// отмечается активной, флаг предупреждения об истечении подписки сбрасывается.
package login

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

// Request — структура входных данных для авторизации.
//
// Username должен быть строкой длиной от 3 до 50 символов, пароль — минимум 6 символов.
type Request struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6"`
}

// Service описывает интерфейс бизнес-логики аутентификации.
type Service interface {
	Login(ctx context.Context, username, password string) (token, role string, err error)
}

// Handler обрабатывает HTTP-запросы для авторизации.
type Handler struct {
	log      *slog.Logger        // Логгер для записи операций и ошибок
	service  Service             // Сервис бизнес-логики аутентификации
	validate *validator.Validate // Валидатор для проверки входных данных
}

// New создает новый экземпляр Handler с указанными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Авторизация пользователя
// @Description Аутентифицирует пользователя по имени и паролю. Возвращает JWT.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Учетные данные пользователя"
// @Success 200 {object} map[string]any "Успешная авторизация"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

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

	token, role, err := h.service.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		log.Info("login rejected", slog.String("username", req.Username))
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid credentials"))
		return
	}
	if err != nil {
		log.Error("login failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal server error"))
		return
	}

	log.Info("login success", slog.String("username", req.Username))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"token":    token,
		"role":     role,
		"username": req.Username,
	}))
}
