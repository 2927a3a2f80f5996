// Package billing содержит бизнес-логику баланса и подписки: покупка и отмена
// тарифа, пополнение и вывод средств, автопродление по сроку. Каждая операция
// меняет баланс, подписку и журнал в одной транзакции под блокировкой
// пользователя.
package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/kinozal-backend/internal/metrics"
	"github.com/magabrotheeeer/kinozal-backend/internal/models"
)

// Период подписки и доля возврата при отмене.
const (
	subscriptionPeriodDays = 30
	refundPercent          = 70
)

// Repository определяет методы хранилища, необходимые биллингу.
type Repository interface {
	// WithinUserTx выполняет fn в транзакции под блокировкой пользователя.
	WithinUserTx(ctx context.Context, userUID string, fn func(tx *sql.Tx) error) error
	// GetUserByUsername возвращает пользователя по username.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	// GetUserByUsernameTx возвращает пользователя внутри транзакции.
	GetUserByUsernameTx(ctx context.Context, tx *sql.Tx, username string) (*models.User, error)
	// FindPlanByNameTx возвращает тариф по имени внутри транзакции.
	FindPlanByNameTx(ctx context.Context, tx *sql.Tx, name string) (*models.Plan, error)
	// UpdateBillingTx записывает новое состояние баланса и подписки.
	UpdateBillingTx(ctx context.Context, tx *sql.Tx, userUID string, balance int64, subscription string, nextPaymentDate *time.Time) error
	// CreateTransactionTx добавляет запись журнала операций.
	CreateTransactionTx(ctx context.Context, tx *sql.Tx, tr models.Transaction) (int64, error)
	// ListTransactions возвращает журнал операций пользователя.
	ListTransactions(ctx context.Context, userUID string, limit, offset int) ([]*models.Transaction, error)
}

// Service реализует операции с балансом и подпиской.
type Service struct {
	repo Repository
	log  *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
	}
}

// Purchase покупает тариф: списывает его цену с баланса, назначает подписку
// и дату следующего платежа через 30 дней, добавляет запись журнала.
// Переход с одного платного тарифа на другой выполняется так же, списанием
// полной цены нового тарифа. Возвращает обновлённого пользователя.
func (s *Service) Purchase(ctx context.Context, username, planName string) (*models.User, error) {
	user, err := s.findUser(ctx, username)
	if err != nil {
		return nil, err
	}

	var updated *models.User
	err = s.repo.WithinUserTx(ctx, user.UID, func(tx *sql.Tx) error {
		u, err := s.repo.GetUserByUsernameTx(ctx, tx, username)
		if err != nil {
			return err
		}
		if u.Subscription == planName {
			return ErrAlreadySubscribed
		}

		plan, err := s.repo.FindPlanByNameTx(ctx, tx, planName)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPlanNotFound
		}
		if err != nil {
			return err
		}
		if !plan.IsActive || plan.Name == models.BasePlan {
			return ErrPlanNotFound
		}
		if u.Balance < plan.Price {
			return ErrInsufficientFunds
		}

		next := time.Now().AddDate(0, 0, subscriptionPeriodDays)
		newBalance := u.Balance - plan.Price
		if err := s.repo.UpdateBillingTx(ctx, tx, u.UID, newBalance, plan.Name, &next); err != nil {
			return err
		}
		if _, err := s.repo.CreateTransactionTx(ctx, tx, models.Transaction{
			UserUID:       u.UID,
			Amount:        plan.Price,
			PlanName:      plan.Name,
			OperationType: models.OperationSubscription,
		}); err != nil {
			return err
		}

		u.Balance = newBalance
		u.Subscription = plan.Name
		u.NextPaymentDate = &next
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncLedgerOperation(models.OperationSubscription)
	s.log.Info("subscription purchased",
		slog.String("username", username),
		slog.String("plan", planName))
	return updated, nil
}

// Cancel отменяет платную подписку: возвращает 70% цены тарифа на баланс,
// переводит пользователя на базовый тариф и добавляет запись журнала.
// Если тариф уже удалён из каталога, отмена проходит без возврата и без
// записи журнала. Возвращает сумму возврата.
func (s *Service) Cancel(ctx context.Context, username string) (int64, error) {
	user, err := s.findUser(ctx, username)
	if err != nil {
		return 0, err
	}

	var refund int64
	var refunded bool
	err = s.repo.WithinUserTx(ctx, user.UID, func(tx *sql.Tx) error {
		u, err := s.repo.GetUserByUsernameTx(ctx, tx, username)
		if err != nil {
			return err
		}
		if !u.HasPaidPlan() {
			return ErrNotSubscribed
		}

		plan, err := s.repo.FindPlanByNameTx(ctx, tx, u.Subscription)
		if errors.Is(err, sql.ErrNoRows) {
			return s.repo.UpdateBillingTx(ctx, tx, u.UID, u.Balance, models.BasePlan, nil)
		}
		if err != nil {
			return err
		}

		refund = plan.Price * refundPercent / 100
		if err := s.repo.UpdateBillingTx(ctx, tx, u.UID, u.Balance+refund, models.BasePlan, nil); err != nil {
			return err
		}
		if _, err := s.repo.CreateTransactionTx(ctx, tx, models.Transaction{
			UserUID:       u.UID,
			Amount:        refund,
			PlanName:      plan.Name,
			OperationType: models.OperationRefund,
		}); err != nil {
			return err
		}
		refunded = true
		return nil
	})
	if err != nil {
		return 0, err
	}

	if refunded {
		metrics.IncLedgerOperation(models.OperationRefund)
	}
	s.log.Info("subscription cancelled",
		slog.String("username", username),
		slog.Int64("refund", refund))
	return refund, nil
}

// Deposit зачисляет средства на баланс и добавляет запись журнала.
// Вызывается после подтверждения платежа платёжным шлюзом.
func (s *Service) Deposit(ctx context.Context, username string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	user, err := s.findUser(ctx, username)
	if err != nil {
		return err
	}

	err = s.repo.WithinUserTx(ctx, user.UID, func(tx *sql.Tx) error {
		u, err := s.repo.GetUserByUsernameTx(ctx, tx, username)
		if err != nil {
			return err
		}
		if err := s.repo.UpdateBillingTx(ctx, tx, u.UID, u.Balance+amount, u.Subscription, u.NextPaymentDate); err != nil {
			return err
		}
		_, err = s.repo.CreateTransactionTx(ctx, tx, models.Transaction{
			UserUID:       u.UID,
			Amount:        amount,
			OperationType: models.OperationDeposit,
		})
		return err
	})
	if err != nil {
		return err
	}

	metrics.IncLedgerOperation(models.OperationDeposit)
	s.log.Info("balance deposited",
		slog.String("username", username),
		slog.Int64("amount", amount))
	return nil
}

// Withdraw списывает средства с баланса с записью журнала и выполняет fn —
// выплату через платёжный шлюз. При ошибке fn транзакция откатывается
// целиком и баланс не меняется.
func (s *Service) Withdraw(ctx context.Context, username string, amount int64, fn func(ctx context.Context) error) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	user, err := s.findUser(ctx, username)
	if err != nil {
		return err
	}

	err = s.repo.WithinUserTx(ctx, user.UID, func(tx *sql.Tx) error {
		u, err := s.repo.GetUserByUsernameTx(ctx, tx, username)
		if err != nil {
			return err
		}
		if u.Balance < amount {
			return ErrInsufficientFunds
		}
		if err := s.repo.UpdateBillingTx(ctx, tx, u.UID, u.Balance-amount, u.Subscription, u.NextPaymentDate); err != nil {
			return err
		}
		if _, err := s.repo.CreateTransactionTx(ctx, tx, models.Transaction{
			UserUID:       u.UID,
			Amount:        amount,
			OperationType: models.OperationWithdrawal,
		}); err != nil {
			return err
		}
		if fn != nil {
			return fn(ctx)
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.IncLedgerOperation(models.OperationWithdrawal)
	s.log.Info("balance withdrawn",
		slog.String("username", username),
		slog.Int64("amount", amount))
	return nil
}

// EvaluateTime проверяет срок подписки пользователя. При наступлении даты
// платежа подписка продлевается на 30 дней со списанием цены тарифа и
// записью журнала, при нехватке средств пользователь переводится на базовый
// тариф без записи журнала. Возвращает уведомление о произошедшем или nil.
func (s *Service) EvaluateTime(ctx context.Context, username string, now time.Time) (*models.Notice, error) {
	user, err := s.findUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if !user.HasPaidPlan() || user.NextPaymentDate == nil || user.NextPaymentDate.After(now) {
		return nil, nil
	}

	var notice *models.Notice
	err = s.repo.WithinUserTx(ctx, user.UID, func(tx *sql.Tx) error {
		u, err := s.repo.GetUserByUsernameTx(ctx, tx, username)
		if err != nil {
			return err
		}
		// Срок мог сдвинуться, пока мы ждали блокировку.
		if !u.HasPaidPlan() || u.NextPaymentDate == nil || u.NextPaymentDate.After(now) {
			return nil
		}

		plan, err := s.repo.FindPlanByNameTx(ctx, tx, u.Subscription)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if err == nil && u.Balance >= plan.Price {
			next := now.AddDate(0, 0, subscriptionPeriodDays)
			if err := s.repo.UpdateBillingTx(ctx, tx, u.UID, u.Balance-plan.Price, u.Subscription, &next); err != nil {
				return err
			}
			if _, err := s.repo.CreateTransactionTx(ctx, tx, models.Transaction{
				UserUID:       u.UID,
				Amount:        plan.Price,
				PlanName:      u.Subscription,
				OperationType: models.OperationRenewal,
			}); err != nil {
				return err
			}
			notice = &models.Notice{Kind: models.NoticeRenewed, PlanName: u.Subscription}
			return nil
		}

		// Тариф удалён или средств не хватает: перевод на базовый тариф
		// без возврата и без записи журнала.
		expiredPlan := u.Subscription
		if err := s.repo.UpdateBillingTx(ctx, tx, u.UID, u.Balance, models.BasePlan, nil); err != nil {
			return err
		}
		notice = &models.Notice{Kind: models.NoticeExpired, PlanName: expiredPlan}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if notice != nil {
		switch notice.Kind {
		case models.NoticeRenewed:
			metrics.IncRenewal("renewed")
			metrics.IncLedgerOperation(models.OperationRenewal)
			s.log.Info("subscription renewed",
				slog.String("username", username),
				slog.String("plan", notice.PlanName))
		case models.NoticeExpired:
			metrics.IncRenewal("expired")
			s.log.Info("subscription expired",
				slog.String("username", username),
				slog.String("plan", notice.PlanName))
		}
	}
	return notice, nil
}

// History возвращает журнал операций пользователя, новые записи первыми.
func (s *Service) History(ctx context.Context, username string, limit, offset int) ([]*models.Transaction, error) {
	user, err := s.findUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, user.UID, limit, offset)
}

// Info возвращает текущее состояние баланса и подписки пользователя.
func (s *Service) Info(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, username)
}

func (s *Service) findUser(ctx context.Context, username string) (*models.User, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}
