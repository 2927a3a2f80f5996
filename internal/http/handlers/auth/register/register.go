// Package register реализует HTTP-обработчик регистрации новых пользователей.
//
// Handler принимает JSON-запрос с почтой, именем и паролем, валидирует их,
// вызывает бизнес-логику регистрации и возвращает UID созданного пользователя.
// Новый пользователь получает нулевой баланс и базовый тариф.
package register

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/kinozal-backend/internal/http/response"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/sl"
)

// Request — структура входных данных для регистрации.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6"`
}

// Service описывает интерфейс бизнес-логики регистрации.
type Service interface {
	Register(ctx context.Context, email, username, password string) (string, error)
}

// Handler обрабатывает HTTP-запросы регистрации.
type Handler struct {
	log      *slog.Logger        // Логгер для записи операций и ошибок
	service  Service             // Сервис бизнес-логики аутентификации
	validate *validator.Validate // Валидатор структуры входящих данных
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
// @Summary Регистрация пользователя
// @Description Создает нового пользователя с нулевым балансом и базовым тарифом. Возвращает UID.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Данные нового пользователя"
// @Success 200 {object} map[string]any "Успешная регистрация"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при регистрации"
// @Router /register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"
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

	uid, err := h.service.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		log.Error("failed to register user", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not register user"))
		return
	}

	log.Info("user registered", slog.String("username", req.Username))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"uid":      uid,
		"username": req.Username,
	}))
}
