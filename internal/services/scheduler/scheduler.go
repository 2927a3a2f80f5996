// Package scheduler реализует периодическую проверку сроков подписок:
// продление или перевод на базовый тариф для пользователей с наступившей
// датой платежа и публикацию почтовых уведомлений в брокер.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/kinozal-backend/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/sl"
	"github.com/magabrotheeeer/kinozal-backend/internal/models"
)

// Ключи маршрутизации для exchange "notifications".
const (
	RoutingKeySubscription = "subscription"
)

// UserRepository определяет выборки пользователей для проверки сроков.
type UserRepository interface {
	// FindUsersWithDueRenewal возвращает пользователей с наступившей датой платежа.
	FindUsersWithDueRenewal(ctx context.Context, now time.Time) ([]string, error)
	// FindSubscriptionsExpiringTomorrow возвращает уведомления для подписок,
	// истекающих в течение суток.
	FindSubscriptionsExpiringTomorrow(ctx context.Context, now time.Time) ([]*models.NoticeMessage, error)
	// GetUserByUsername возвращает пользователя по имени.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Billing выполняет проверку срока подписки одного пользователя.
type Billing interface {
	EvaluateTime(ctx context.Context, username string, now time.Time) (*models.Notice, error)
}

// Service сводит выборку пользователей, биллинг и публикацию уведомлений.
type Service struct {
	repo    UserRepository
	billing Billing
	log     *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo UserRepository, billing Billing, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		billing: billing,
		log:     log,
	}
}

// RunSweep запускает периодическую проверку сроков. Первая итерация
// выполняется сразу, затем по тикеру до отмены контекста.
func (s *Service) RunSweep(ctx context.Context, channel rabbitmq.Publisher, interval time.Duration) {
	s.sweep(ctx, channel)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx, channel)
		}
	}
}

func (s *Service) sweep(ctx context.Context, channel rabbitmq.Publisher) {
	s.log.Info("starting subscription sweep")
	now := time.Now()

	usernames, err := s.repo.FindUsersWithDueRenewal(ctx, now)
	if err != nil {
		s.log.Error("failed to find users with due renewal", sl.Err(err))
		return
	}
	s.log.Info("found users with due renewal", "count", len(usernames))

	for _, username := range usernames {
		notice, err := s.billing.EvaluateTime(ctx, username, now)
		if err != nil {
			s.log.Error("failed to evaluate subscription",
				slog.String("username", username), sl.Err(err))
			continue
		}
		if notice == nil {
			continue
		}

		user, err := s.repo.GetUserByUsername(ctx, username)
		if err != nil {
			s.log.Error("failed to load user for notice",
				slog.String("username", username), sl.Err(err))
			continue
		}

		message := models.NoticeMessage{
			Email:    user.Email,
			Username: user.Username,
			Kind:     notice.Kind,
			PlanName: notice.PlanName,
			DueDate:  user.NextPaymentDate,
		}
		if err := rabbitmq.PublishMessage(channel, "notifications", RoutingKeySubscription, message); err != nil {
			s.log.Error("failed to publish notice", sl.Err(err))
		}
	}

	expiring, err := s.repo.FindSubscriptionsExpiringTomorrow(ctx, now)
	if err != nil {
		s.log.Error("failed to find expiring subscriptions", sl.Err(err))
		return
	}
	s.log.Info("found subscriptions expiring tomorrow", "count", len(expiring))

	for _, message := range expiring {
		if err := rabbitmq.PublishMessage(channel, "notifications", RoutingKeySubscription, message); err != nil {
			s.log.Error("failed to publish notice", sl.Err(err))
		}
	}
}
