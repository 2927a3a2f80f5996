package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/kinozal-backend/internal/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindUsersWithDueRenewal(ctx context.Context, now time.Time) ([]string, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockRepository) FindSubscriptionsExpiringTomorrow(ctx context.Context, now time.Time) ([]*models.NoticeMessage, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.NoticeMessage), args.Error(1)
}

func (m *MockRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockBilling struct {
	mock.Mock
}

func (m *MockBilling) EvaluateTime(ctx context.Context, username string, now time.Time) (*models.Notice, error) {
	args := m.Called(ctx, username, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notice), args.Error(1)
}

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestSweepPublishesRenewalNotice(t *testing.T) {
	repo := new(MockRepository)
	billing := new(MockBilling)
	channel := new(MockChannel)

	next := time.Now().AddDate(0, 0, 30)
	repo.On("FindUsersWithDueRenewal", mock.Anything, mock.Anything).Return([]string{"alice"}, nil).Once()
	billing.On("EvaluateTime", mock.Anything, "alice", mock.Anything).
		Return(&models.Notice{Kind: models.NoticeRenewed, PlanName: "standard"}, nil).Once()
	repo.On("GetUserByUsername", mock.Anything, "alice").Return(&models.User{
		Username:        "alice",
		Email:           "alice@example.com",
		Subscription:    "standard",
		NextPaymentDate: &next,
	}, nil).Once()
	channel.On("Publish", "notifications", RoutingKeySubscription, false, false,
		mock.MatchedBy(func(msg amqp.Publishing) bool {
			var m models.NoticeMessage
			if err := json.Unmarshal(msg.Body, &m); err != nil {
				return false
			}
			return m.Email == "alice@example.com" && m.Kind == models.NoticeRenewed && m.PlanName == "standard"
		})).Return(nil).Once()
	repo.On("FindSubscriptionsExpiringTomorrow", mock.Anything, mock.Anything).
		Return([]*models.NoticeMessage{}, nil).Once()

	service := New(repo, billing, newNoopLogger())
	service.sweep(context.Background(), channel)

	repo.AssertExpectations(t)
	billing.AssertExpectations(t)
	channel.AssertExpectations(t)
}

func TestSweepPublishesExpiringSoonNotices(t *testing.T) {
	repo := new(MockRepository)
	billing := new(MockBilling)
	channel := new(MockChannel)

	due := time.Now().Add(12 * time.Hour)
	repo.On("FindUsersWithDueRenewal", mock.Anything, mock.Anything).Return([]string{}, nil).Once()
	repo.On("FindSubscriptionsExpiringTomorrow", mock.Anything, mock.Anything).
		Return([]*models.NoticeMessage{
			{Email: "bob@example.com", Username: "bob", Kind: models.NoticeExpiringSoon, PlanName: "premium", DueDate: &due},
		}, nil).Once()
	channel.On("Publish", "notifications", RoutingKeySubscription, false, false,
		mock.MatchedBy(func(msg amqp.Publishing) bool {
			var m models.NoticeMessage
			if err := json.Unmarshal(msg.Body, &m); err != nil {
				return false
			}
			return m.Username == "bob" && m.Kind == models.NoticeExpiringSoon
		})).Return(nil).Once()

	service := New(repo, billing, newNoopLogger())
	service.sweep(context.Background(), channel)

	repo.AssertExpectations(t)
	channel.AssertExpectations(t)
}

func TestSweepContinuesAfterBillingError(t *testing.T) {
	repo := new(MockRepository)
	billing := new(MockBilling)
	channel := new(MockChannel)

	repo.On("FindUsersWithDueRenewal", mock.Anything, mock.Anything).
		Return([]string{"broken", "alice"}, nil).Once()
	billing.On("EvaluateTime", mock.Anything, "broken", mock.Anything).
		Return(nil, errors.New("db error")).Once()
	billing.On("EvaluateTime", mock.Anything, "alice", mock.Anything).
		Return(nil, nil).Once()
	repo.On("FindSubscriptionsExpiringTomorrow", mock.Anything, mock.Anything).
		Return([]*models.NoticeMessage{}, nil).Once()

	service := New(repo, billing, newNoopLogger())
	service.sweep(context.Background(), channel)

	repo.AssertExpectations(t)
	billing.AssertExpectations(t)
	channel.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSweepRepositoryError(t *testing.T) {
	repo := new(MockRepository)
	billing := new(MockBilling)
	channel := new(MockChannel)

	repo.On("FindUsersWithDueRenewal", mock.Anything, mock.Anything).
		Return(nil, errors.New("db error")).Once()

	service := New(repo, billing, newNoopLogger())
	service.sweep(context.Background(), channel)

	// Метод не возвращает ошибку, только логирует.
	assert.True(t, true)
	repo.AssertExpectations(t)
}
