// Package paymentwebhook реализует HTTP-обработчик уведомлений платёжного
// шлюза. Баланс пользователя пополняется только здесь, после события
// payment.succeeded.
package paymentwebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/kinozal-backend/internal/lib/sl"
	"github.com/magabrotheeeer/kinozal-backend/internal/metrics"
	"github.com/magabrotheeeer/kinozal-backend/internal/paymentprovider"
)

// Время жизни отметки об обработанном платеже. Шлюз прекращает повторные
// доставки задолго до истечения этого срока.
const processedFlagTTL = 7 * 24 * time.Hour

// Service описывает интерфейс бизнес-логики зачисления средств.
type Service interface {
	Deposit(ctx context.Context, username string, amount int64) error
}

// Flags хранит отметки об уже обработанных платежах, чтобы повторная
// доставка одного уведомления не пополнила баланс дважды.
type Flags interface {
	SetFlagOnce(ctx context.Context, key string, expiration time.Duration) (bool, error)
	ClearFlag(ctx context.Context, key string) error
}

// Handler обрабатывает webhook-уведомления платёжного шлюза.
type Handler struct {
	log           *slog.Logger
	service       Service
	flags         Flags
	webhookSecret string // Секрет для проверки подписи
}

// New создает новый Handler с переданными логгером, сервисом, хранилищем
// отметок и секретом подписи.
func New(log *slog.Logger, service Service, flags Flags, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		flags:         flags,
		webhookSecret: secret,
	}
}

// verifySignature проверяет подпись webhook из заголовка X-Api-Signature.
func (h *Handler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	expectedSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expectedSig), []byte(signature))
}

// processedFlagKey ключ отметки об обработанном платеже.
func processedFlagKey(paymentID string) string {
	return "payment_processed:" + paymentID
}

// parseAmount переводит сумму шлюза вида "600.00" в целые рубли.
// Сумма с ненулевой дробной частью отвергается: баланс хранится в целых
// рублях, молчаливое усечение исказило бы журнал операций.
func parseAmount(value string) (int64, error) {
	whole, frac, _ := strings.Cut(value, ".")
	if frac != "" && strings.Trim(frac, "0") != "" {
		return 0, fmt.Errorf("amount %q is not a whole number", value)
	}
	return strconv.ParseInt(whole, 10, 64)
}

// ServeHTTP обрабатывает уведомление о смене статуса платежа. Шлюз повторяет
// доставку до получения ответа 200, поэтому любые ошибки обработки
// возвращаются кодами 4xx/5xx.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(slog.String("op", op))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get("X-Api-Signature")
	if signature == "" || !h.verifySignature(body, signature) {
		log.Error("invalid or missing webhook signature")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var notification paymentprovider.WebhookNotification
	if err := json.Unmarshal(body, &notification); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch notification.Event {
	case paymentprovider.EventPaymentSucceeded:
		username := notification.Object.Metadata["username"]
		if username == "" {
			log.Error("webhook payment without username metadata",
				slog.String("payment_id", notification.Object.ID))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		amount, err := parseAmount(notification.Object.Amount.Value)
		if err != nil || amount <= 0 {
			log.Error("webhook payment with bad amount",
				slog.String("value", notification.Object.Amount.Value), sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		flagKey := processedFlagKey(notification.Object.ID)
		first, err := h.flags.SetFlagOnce(r.Context(), flagKey, processedFlagTTL)
		if err != nil {
			log.Error("failed to mark payment as processed", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if !first {
			log.Info("duplicate webhook delivery ignored",
				slog.String("payment_id", notification.Object.ID))
			w.WriteHeader(http.StatusOK)
			return
		}
		if err := h.service.Deposit(r.Context(), username, amount); err != nil {
			log.Error("failed to deposit balance", sl.Err(err))
			// Отметка снимается, чтобы повторная доставка смогла зачислить платёж.
			if clearErr := h.flags.ClearFlag(r.Context(), flagKey); clearErr != nil {
				log.Error("failed to clear processed flag", sl.Err(clearErr))
			}
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		metrics.IncPayment(paymentprovider.StatusSucceeded)
		log.Info("balance deposited from webhook",
			slog.String("username", username),
			slog.Int64("amount", amount),
			slog.String("payment_id", notification.Object.ID))
	case paymentprovider.EventPaymentCanceled:
		metrics.IncPayment(paymentprovider.StatusCanceled)
		log.Info("payment canceled",
			slog.String("payment_id", notification.Object.ID))
	default:
		log.Info("ignored webhook event", slog.String("event", notification.Event))
	}

	w.WriteHeader(http.StatusOK)
}
