package paymentwebhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/kinozal-backend/internal/paymentprovider"
)

const testSecret = "webhook_secret"

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Deposit(ctx context.Context, username string, amount int64) error {
	args := m.Called(ctx, username, amount)
	return args.Error(0)
}

// FlagsMemory хранит отметки в памяти, имитируя поведение SetNX.
type FlagsMemory struct {
	set map[string]bool
}

func newFlagsMemory() *FlagsMemory {
	return &FlagsMemory{set: make(map[string]bool)}
}

func (f *FlagsMemory) SetFlagOnce(_ context.Context, key string, _ time.Duration) (bool, error) {
	if f.set[key] {
		return false, nil
	}
	f.set[key] = true
	return true, nil
}

func (f *FlagsMemory) ClearFlag(_ context.Context, key string) error {
	delete(f.set, key)
	return nil
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func notificationBody(t *testing.T, event, username, amount string) []byte {
	t.Helper()
	body, err := json.Marshal(paymentprovider.WebhookNotification{
		Type:  "notification",
		Event: event,
		Object: paymentprovider.CreatePaymentResponse{
			ID:     "pay-1",
			Status: paymentprovider.StatusSucceeded,
			Paid:   true,
			Amount: paymentprovider.Amount{Value: amount, Currency: "RUB"},
			Metadata: map[string]string{
				"username": username,
			},
		},
	})
	require.NoError(t, err)
	return body
}

func doRequest(handler *Handler, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Api-Signature", signature)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhookHandler_ServeHTTP(t *testing.T) {
	t.Run("payment succeeded deposits balance", func(t *testing.T) {
		serviceMock := new(ServiceMock)
		serviceMock.On("Deposit", mock.Anything, "alice", int64(600)).Return(nil).Once()

		handler := New(newNoopLogger(), serviceMock, newFlagsMemory(), testSecret)
		body := notificationBody(t, paymentprovider.EventPaymentSucceeded, "alice", "600.00")
		rec := doRequest(handler, body, sign(body))

		assert.Equal(t, http.StatusOK, rec.Code)
		serviceMock.AssertExpectations(t)
	})

	t.Run("duplicate delivery credits only once", func(t *testing.T) {
		serviceMock := new(ServiceMock)
		serviceMock.On("Deposit", mock.Anything, "alice", int64(600)).Return(nil).Once()

		handler := New(newNoopLogger(), serviceMock, newFlagsMemory(), testSecret)
		body := notificationBody(t, paymentprovider.EventPaymentSucceeded, "alice", "600.00")
		signature := sign(body)

		first := doRequest(handler, body, signature)
		second := doRequest(handler, body, signature)

		assert.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, http.StatusOK, second.Code)
		serviceMock.AssertNumberOfCalls(t, "Deposit", 1)
	})

	t.Run("failed deposit releases the flag for retry", func(t *testing.T) {
		serviceMock := new(ServiceMock)
		serviceMock.On("Deposit", mock.Anything, "alice", int64(600)).
			Return(assert.AnError).Once()
		serviceMock.On("Deposit", mock.Anything, "alice", int64(600)).
			Return(nil).Once()

		handler := New(newNoopLogger(), serviceMock, newFlagsMemory(), testSecret)
		body := notificationBody(t, paymentprovider.EventPaymentSucceeded, "alice", "600.00")
		signature := sign(body)

		first := doRequest(handler, body, signature)
		second := doRequest(handler, body, signature)

		assert.Equal(t, http.StatusInternalServerError, first.Code)
		assert.Equal(t, http.StatusOK, second.Code)
		serviceMock.AssertExpectations(t)
	})

	t.Run("missing signature rejected", func(t *testing.T) {
		serviceMock := new(ServiceMock)
		handler := New(newNoopLogger(), serviceMock, newFlagsMemory(), testSecret)
		body := notificationBody(t, paymentprovider.EventPaymentSucceeded, "alice", "600.00")
		rec := doRequest(handler, body, "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		serviceMock.AssertNotCalled(t, "Deposit", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("tampered body rejected", func(t *testing.T) {
		serviceMock := new(ServiceMock)
		handler := New(newNoopLogger(), serviceMock, newFlagsMemory(), testSecret)
		body := notificationBody(t, paymentprovider.EventPaymentSucceeded, "alice", "600.00")
		signature := sign(body)
		tampered := notificationBody(t, paymentprovider.EventPaymentSucceeded, "alice", "9999.00")
		rec := doRequest(handler, tampered, signature)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		serviceMock.AssertNotCalled(t, "Deposit", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing username metadata rejected", func(t *testing.T) {
		serviceMock := new(ServiceMock)
		handler := New(newNoopLogger(), serviceMock, newFlagsMemory(), testSecret)
		body := notificationBody(t, paymentprovider.EventPaymentSucceeded, "", "600.00")
		rec := doRequest(handler, body, sign(body))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("fractional amount rejected without deposit", func(t *testing.T) {
		serviceMock := new(ServiceMock)
		handler := New(newNoopLogger(), serviceMock, newFlagsMemory(), testSecret)
		body := notificationBody(t, paymentprovider.EventPaymentSucceeded, "alice", "600.99")
		rec := doRequest(handler, body, sign(body))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		serviceMock.AssertNotCalled(t, "Deposit", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ignored event returns ok without deposit", func(t *testing.T) {
		serviceMock := new(ServiceMock)
		handler := New(newNoopLogger(), serviceMock, newFlagsMemory(), testSecret)
		body := notificationBody(t, "payment.waiting_for_capture", "alice", "600.00")
		rec := doRequest(handler, body, sign(body))

		assert.Equal(t, http.StatusOK, rec.Code)
		serviceMock.AssertNotCalled(t, "Deposit", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		value   string
		want    int64
		wantErr bool
	}{
		{value: "600.00", want: 600},
		{value: "600", want: 600},
		{value: "0.00", want: 0},
		{value: "600.99", wantErr: true},
		{value: "600.50", wantErr: true},
		{value: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parseAmount(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
