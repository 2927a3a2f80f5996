package models

import "time"

// Виды уведомлений о состоянии подписки.
const (
	NoticeRenewed      = "renewed"       // Подписка автоматически продлена
	NoticeExpired      = "expired"       // Подписка истекла, установлен базовый тариф
	NoticeExpiringSoon = "expiring_soon" // Подписка истекает в течение суток
)

// Notice описывает уведомление, которое слой представления показывает
// пользователю после проверки сроков подписки.
type Notice struct {
	Kind     string // Один из Notice*
	PlanName string // Тариф, к которому относится уведомление
}

// NoticeMessage — сообщение для отправки пользователю по почте через брокер.
type NoticeMessage struct {
	Email    string     `json:"email"`
	Username string     `json:"username"`
	Kind     string     `json:"kind"`
	PlanName string     `json:"plan_name"`
	DueDate  *time.Time `json:"due_date,omitempty"`
}
