package middlewarectx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/kinozal-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/kinozal-backend/internal/models"
	"github.com/magabrotheeeer/kinozal-backend/internal/services/auth"
)

type SessionRepoMock struct {
	mock.Mock
}

func (m *SessionRepoMock) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *SessionRepoMock) UpdateSessionState(ctx context.Context, username string, isActive bool, lastActivity time.Time) error {
	args := m.Called(ctx, username, isActive, lastActivity)
	return args.Error(0)
}

func (m *SessionRepoMock) TouchLastActivity(ctx context.Context, username string, now time.Time) error {
	args := m.Called(ctx, username, now)
	return args.Error(0)
}

type BillingMock struct {
	mock.Mock
}

func (m *BillingMock) EvaluateTime(ctx context.Context, username string, now time.Time) (*models.Notice, error) {
	args := m.Called(ctx, username, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notice), args.Error(1)
}

type WarnFlagsMock struct {
	mock.Mock
}

func (m *WarnFlagsMock) SetFlagOnce(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	args := m.Called(ctx, key, expiration)
	return args.Bool(0), args.Error(1)
}

const inactivityLimit = 60 * time.Minute

func serveSession(t *testing.T, repo *SessionRepoMock, billing *BillingMock, flags *WarnFlagsMock, username string) *httptest.ResponseRecorder {
	t.Helper()
	handlerCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	})
	middleware := middlewarectx.SessionMiddleware(newNoopLogger(), repo, billing, flags, inactivityLimit)(next)

	req := httptest.NewRequest(http.MethodGet, "/movies", nil)
	req = req.WithContext(context.WithValue(req.Context(), middlewarectx.User, username))
	rec := httptest.NewRecorder()
	middleware.ServeHTTP(rec, req)

	if rec.Code == http.StatusOK {
		assert.True(t, handlerCalled)
	} else {
		assert.False(t, handlerCalled)
	}
	return rec
}

func TestSessionMiddlewareActiveSession(t *testing.T) {
	repo := new(SessionRepoMock)
	billing := new(BillingMock)
	flags := new(WarnFlagsMock)

	recent := time.Now().UTC().Add(-5 * time.Minute)
	repo.On("GetUserByUsername", mock.Anything, "alice").Return(&models.User{
		Username:     "alice",
		IsActive:     true,
		LastActivity: &recent,
		Subscription: models.BasePlan,
	}, nil).Once()
	repo.On("TouchLastActivity", mock.Anything, "alice", mock.Anything).Return(nil).Once()
	billing.On("EvaluateTime", mock.Anything, "alice", mock.Anything).Return(nil, nil).Once()

	rec := serveSession(t, repo, billing, flags, "alice")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(middlewarectx.NoticeHeader))
	repo.AssertExpectations(t)
	billing.AssertExpectations(t)
}

func TestSessionMiddlewareExpiresIdleSession(t *testing.T) {
	repo := new(SessionRepoMock)
	billing := new(BillingMock)
	flags := new(WarnFlagsMock)

	stale := time.Now().UTC().Add(-2 * time.Hour)
	repo.On("GetUserByUsername", mock.Anything, "alice").Return(&models.User{
		Username:     "alice",
		IsActive:     true,
		LastActivity: &stale,
		Subscription: models.BasePlan,
	}, nil).Once()
	repo.On("UpdateSessionState", mock.Anything, "alice", false, mock.Anything).Return(nil).Once()

	rec := serveSession(t, repo, billing, flags, "alice")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	repo.AssertExpectations(t)
	billing.AssertNotCalled(t, "EvaluateTime", mock.Anything, mock.Anything, mock.Anything)
}

func TestSessionMiddlewareExpiresSessionWithoutActivity(t *testing.T) {
	repo := new(SessionRepoMock)
	billing := new(BillingMock)
	flags := new(WarnFlagsMock)

	// Сессия без единого запроса трактуется как истёкшая.
	repo.On("GetUserByUsername", mock.Anything, "alice").Return(&models.User{
		Username:     "alice",
		IsActive:     true,
		LastActivity: nil,
		Subscription: models.BasePlan,
	}, nil).Once()
	repo.On("UpdateSessionState", mock.Anything, "alice", false, mock.Anything).Return(nil).Once()

	rec := serveSession(t, repo, billing, flags, "alice")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	repo.AssertExpectations(t)
	billing.AssertNotCalled(t, "EvaluateTime", mock.Anything, mock.Anything, mock.Anything)
}

func TestSessionMiddlewareRejectsInactiveSession(t *testing.T) {
	repo := new(SessionRepoMock)
	billing := new(BillingMock)
	flags := new(WarnFlagsMock)

	repo.On("GetUserByUsername", mock.Anything, "alice").Return(&models.User{
		Username:     "alice",
		IsActive:     false,
		Subscription: models.BasePlan,
	}, nil).Once()

	rec := serveSession(t, repo, billing, flags, "alice")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	repo.AssertExpectations(t)
}

func TestSessionMiddlewareSetsNoticeHeader(t *testing.T) {
	repo := new(SessionRepoMock)
	billing := new(BillingMock)
	flags := new(WarnFlagsMock)

	recent := time.Now().UTC().Add(-time.Minute)
	repo.On("GetUserByUsername", mock.Anything, "alice").Return(&models.User{
		Username:     "alice",
		IsActive:     true,
		LastActivity: &recent,
		Subscription: "standard",
	}, nil).Once()
	repo.On("TouchLastActivity", mock.Anything, "alice", mock.Anything).Return(nil).Once()
	billing.On("EvaluateTime", mock.Anything, "alice", mock.Anything).
		Return(&models.Notice{Kind: models.NoticeExpired, PlanName: "standard"}, nil).Once()

	rec := serveSession(t, repo, billing, flags, "alice")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.NoticeExpired, rec.Header().Get(middlewarectx.NoticeHeader))
	repo.AssertExpectations(t)
	billing.AssertExpectations(t)
}

func TestSessionMiddlewareWarnsOncePerSession(t *testing.T) {
	repo := new(SessionRepoMock)
	billing := new(BillingMock)
	flags := new(WarnFlagsMock)

	recent := time.Now().UTC().Add(-time.Minute)
	due := time.Now().UTC().Add(10 * time.Hour)
	user := &models.User{
		Username:        "alice",
		IsActive:        true,
		LastActivity:    &recent,
		Subscription:    "standard",
		NextPaymentDate: &due,
	}
	repo.On("GetUserByUsername", mock.Anything, "alice").Return(user, nil).Twice()
	repo.On("TouchLastActivity", mock.Anything, "alice", mock.Anything).Return(nil).Twice()
	billing.On("EvaluateTime", mock.Anything, "alice", mock.Anything).Return(nil, nil).Twice()
	// Первый запрос устанавливает флаг, второй видит уже установленный.
	flags.On("SetFlagOnce", mock.Anything, auth.WarnFlagKey("alice"), mock.Anything).Return(true, nil).Once()
	flags.On("SetFlagOnce", mock.Anything, auth.WarnFlagKey("alice"), mock.Anything).Return(false, nil).Once()

	first := serveSession(t, repo, billing, flags, "alice")
	second := serveSession(t, repo, billing, flags, "alice")

	assert.Equal(t, models.NoticeExpiringSoon, first.Header().Get(middlewarectx.WarningHeader))
	assert.Empty(t, second.Header().Get(middlewarectx.WarningHeader))
	flags.AssertExpectations(t)
}
