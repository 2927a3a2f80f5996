// Package auth содержит логику бизнес-уровня для работы с пользователями и аутентификацией.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/kinozal-backend/internal/lib/jwt"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/password"
	"github.com/magabrotheeeer/kinozal-backend/internal/models"
)

// Ошибки аутентификации.
var (
	// ErrInvalidCredentials неверный логин или пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// RegisterUser сохраняет нового пользователя и возвращает его UID.
	RegisterUser(ctx context.Context, user models.User) (string, error)
	// GetUserByUsername возвращает пользователя по имени или ошибку, если не найден.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	// UpdateSessionState отмечает сессию активной или завершённой.
	UpdateSessionState(ctx context.Context, username string, isActive bool, lastActivity time.Time) error
	// UpdatePasswordHash заменяет хэш пароля пользователя.
	UpdatePasswordHash(ctx context.Context, username, passwordHash string) error
}

// SessionFlags сбрасывает флаги предупреждений при старте новой сессии.
type SessionFlags interface {
	ClearFlag(ctx context.Context, key string) error
}

// Service отвечает за регистрацию, вход, выход и сброс пароля.
type Service struct {
	users    UserRepository
	flags    SessionFlags
	jwtMaker jwt.Maker
}

// New создает новый экземпляр Service.
func New(users UserRepository, flags SessionFlags, jwtMaker jwt.Maker) *Service {
	return &Service{
		users:    users,
		flags:    flags,
		jwtMaker: jwtMaker,
	}
}

// WarnFlagKey ключ флага "предупреждение об истечении уже показано".
func WarnFlagKey(username string) string {
	return fmt.Sprintf("expiry_warned:%s", username)
}

// Register создает нового пользователя с хэшированием пароля и дефолтной ролью "user".
// Новый пользователь получает нулевой баланс и базовый тариф.
func (s *Service) Register(ctx context.Context, email, username, rawPassword string) (string, error) {
	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return "", err
	}
	user := models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hashed,
		Role:         "user", // дефолтная роль при регистрации
	}
	return s.users.RegisterUser(ctx, user)
}

// Login проверяет пароль пользователя, отмечает сессию активной,
// сбрасывает флаг предупреждения и генерирует JWT.
func (s *Service) Login(ctx context.Context, username, rawPassword string) (token, role string, err error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrInvalidCredentials
	}
	if err != nil {
		return "", "", err
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return "", "", ErrInvalidCredentials
	}
	if err := s.users.UpdateSessionState(ctx, username, true, time.Now().UTC()); err != nil {
		return "", "", err
	}
	// Новая сессия снова получит предупреждение об истечении подписки.
	if err := s.flags.ClearFlag(ctx, WarnFlagKey(username)); err != nil {
		return "", "", err
	}
	token, err = s.jwtMaker.GenerateToken(user.Username, user.Role, user.UID)
	if err != nil {
		return "", "", err
	}
	return token, user.Role, nil
}

// Logout отмечает сессию пользователя завершённой.
func (s *Service) Logout(ctx context.Context, username string) error {
	return s.users.UpdateSessionState(ctx, username, false, time.Now().UTC())
}

// ResetPassword генерирует новый пароль, сохраняет его хэш и возвращает
// пароль открытым текстом для передачи пользователю.
func (s *Service) ResetPassword(ctx context.Context, username string) (string, error) {
	newPassword, err := password.Generate()
	if err != nil {
		return "", err
	}
	hashed, err := password.GetHash(newPassword)
	if err != nil {
		return "", err
	}
	err = s.users.UpdatePasswordHash(ctx, username, hashed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	return newPassword, nil
}

// ValidateToken проверяет JWT и возвращает информацию о пользователе.
func (s *Service) ValidateToken(_ context.Context, token string) (*models.User, string, bool, error) {
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, "", false, err
	}
	user := &models.User{
		Username: claims.Username,
		Role:     claims.Role,
		UID:      claims.UserUID,
	}
	return user, claims.Role, true, nil
}
