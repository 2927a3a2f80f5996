package purchase

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/kinozal-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/kinozal-backend/internal/models"
	"github.com/magabrotheeeer/kinozal-backend/internal/services/billing"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Purchase(ctx context.Context, username, planName string) (*models.User, error) {
	args := m.Called(ctx, username, planName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func doRequest(t *testing.T, handler *Handler, body any, username string) *httptest.ResponseRecorder {
	t.Helper()
	var bodyBytes []byte
	switch v := body.(type) {
	case string:
		bodyBytes = []byte(v)
	default:
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/subscription/purchase", bytes.NewReader(bodyBytes))
	if username != "" {
		req = req.WithContext(context.WithValue(req.Context(), middlewarectx.User, username))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestPurchaseHandler_ServeHTTP(t *testing.T) {
	next := time.Now().AddDate(0, 0, 30)

	tests := []struct {
		name           string
		requestBody    any
		username       string
		mockUser       *models.User
		mockErr        error
		mockCalled     bool
		wantStatusCode int
	}{
		{
			name:        "successful purchase",
			requestBody: Request{PlanName: "standard"},
			username:    "alice",
			mockUser: &models.User{
				Username:        "alice",
				Balance:         400,
				Subscription:    "standard",
				NextPaymentDate: &next,
			},
			mockCalled:     true,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "invalid json",
			requestBody:    "not a json",
			username:       "alice",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "no username in context",
			requestBody:    Request{PlanName: "standard"},
			username:       "",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "already subscribed",
			requestBody:    Request{PlanName: "standard"},
			username:       "alice",
			mockErr:        billing.ErrAlreadySubscribed,
			mockCalled:     true,
			wantStatusCode: http.StatusConflict,
		},
		{
			name:           "unknown plan",
			requestBody:    Request{PlanName: "platinum"},
			username:       "alice",
			mockErr:        billing.ErrPlanNotFound,
			mockCalled:     true,
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:           "insufficient funds",
			requestBody:    Request{PlanName: "premium"},
			username:       "alice",
			mockErr:        billing.ErrInsufficientFunds,
			mockCalled:     true,
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serviceMock := new(ServiceMock)
			if tt.mockCalled {
				serviceMock.On("Purchase", mock.Anything, tt.username, tt.requestBody.(Request).PlanName).
					Return(tt.mockUser, tt.mockErr).Once()
			}

			handler := New(newNoopLogger(), serviceMock)
			rec := doRequest(t, handler, tt.requestBody, tt.username)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			serviceMock.AssertExpectations(t)

			if tt.wantStatusCode == http.StatusOK {
				var got map[string]any
				assert.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
				data := got["data"].(map[string]any)
				assert.Equal(t, "standard", data["subscription"])
				assert.Equal(t, float64(400), data["balance"])
			}
		})
	}
}
