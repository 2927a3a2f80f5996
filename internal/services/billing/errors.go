package billing

import "errors"

// Ошибки бизнес-логики биллинга. Хендлеры сопоставляют их с HTTP-статусами.
var (
	// ErrUserNotFound пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrPlanNotFound тариф не найден или отключён.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrAlreadySubscribed у пользователя уже есть платная подписка.
	ErrAlreadySubscribed = errors.New("user already has an active subscription")
	// ErrNotSubscribed у пользователя нет платной подписки.
	ErrNotSubscribed = errors.New("user has no active subscription")
	// ErrInsufficientFunds на балансе недостаточно средств.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidAmount сумма операции должна быть положительной.
	ErrInvalidAmount = errors.New("amount must be positive")
)
