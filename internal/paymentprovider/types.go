package paymentprovider

import (
	"fmt"
	"time"
)

// Статусы платежа ЮKassa.
const (
	StatusPending           = "pending"
	StatusWaitingForCapture = "waiting_for_capture"
	StatusSucceeded         = "succeeded"
	StatusCanceled          = "canceled"
)

// События, приходящие в webhook-уведомлениях.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentCanceled  = "payment.canceled"
	EventPayoutSucceeded  = "payout.succeeded"
)

// Amount представляет денежную сумму.
type Amount struct {
	Value    string `json:"value"`    // сумма, например "200.00"
	Currency string `json:"currency"` // валюта, например "RUB"
}

// NewAmount собирает сумму в рублях в формат ЮKassa.
func NewAmount(rubles int64) Amount {
	return Amount{
		Value:    fmt.Sprintf("%d.00", rubles),
		Currency: "RUB",
	}
}

// Confirmation описывает сценарий подтверждения платежа пользователем.
type Confirmation struct {
	Type            string `json:"type"`                       // "redirect"
	ReturnURL       string `json:"return_url,omitempty"`       // куда вернуть пользователя после оплаты
	ConfirmationURL string `json:"confirmation_url,omitempty"` // страница оплаты, заполняется в ответе
}

// CreatePaymentRequest представляет запрос на создание платежа.
type CreatePaymentRequest struct {
	Amount       Amount            `json:"amount"`
	Capture      bool              `json:"capture"`
	Confirmation Confirmation      `json:"confirmation"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"` // дополнительная инфа: user_uid, username
}

// CreatePaymentResponse представляет ответ на создание платежа.
type CreatePaymentResponse struct {
	ID           string            `json:"id"`     // ID платежа в ЮKassa
	Status       string            `json:"status"` // статус платежа, например "pending"
	Paid         bool              `json:"paid"`
	Amount       Amount            `json:"amount"`
	Confirmation Confirmation      `json:"confirmation"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// PayoutDestination описывает получателя выплаты.
type PayoutDestination struct {
	Type string `json:"type"` // "yoo_money"
	// AccountNumber номер кошелька получателя
	AccountNumber string `json:"account_number"`
}

// CreatePayoutRequest представляет запрос на выплату средств пользователю.
type CreatePayoutRequest struct {
	Amount            Amount            `json:"amount"`
	PayoutDestination PayoutDestination `json:"payout_destination_data"`
	Description       string            `json:"description,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// CreatePayoutResponse представляет ответ на создание выплаты.
type CreatePayoutResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Amount    Amount    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// WebhookNotification представляет уведомление ЮKassa о смене статуса платежа.
type WebhookNotification struct {
	Type   string                `json:"type"`  // "notification"
	Event  string                `json:"event"` // например "payment.succeeded"
	Object CreatePaymentResponse `json:"object"`
}
