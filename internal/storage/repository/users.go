package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/kinozal-backend/internal/models"
)

const userColumns = `uid, username, email, password_hash, role, is_active,
			      last_activity, registration_date, balance, subscription, next_payment_date`

func scanUser(row interface{ Scan(dest ...any) error }) (*models.User, error) {
	u := &models.User{}
	var lastActivity, nextPaymentDate sql.NullTime
	if err := row.Scan(&u.UID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&u.IsActive, &lastActivity, &u.RegistrationDate, &u.Balance,
		&u.Subscription, &nextPaymentDate); err != nil {
		return nil, err
	}
	if lastActivity.Valid {
		u.LastActivity = &lastActivity.Time
	}
	if nextPaymentDate.Valid {
		u.NextPaymentDate = &nextPaymentDate.Time
	}
	return u, nil
}

// RegisterUser сохраняет нового пользователя в базу данных и возвращает его UID.
// Новый пользователь создаётся с нулевым балансом и базовым тарифом.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.RegisterUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newUID string
	query := `INSERT INTO users (username, email, password_hash, role, balance, subscription)
			  VALUES ($1, $2, $3, $4, 0, $5)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.Role,
		models.BasePlan).Scan(&newUID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newUID, nil
}

// GetUserByUsername возвращает пользователя по его username.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.GetUserByUsername"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE username = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, username))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByUsernameTx возвращает пользователя внутри открытой транзакции.
// Используется биллингом после захвата советующей блокировки.
func (s *Storage) GetUserByUsernameTx(ctx context.Context, tx *sql.Tx, username string) (*models.User, error) {
	const op = "storage.GetUserByUsernameTx"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE username = $1`
	u, err := scanUser(tx.QueryRowContext(ctx, query, username))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// ListUsers возвращает список всех пользователей с пагинацией.
func (s *Storage) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	const op = "storage.ListUsers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  ORDER BY registration_date
			  LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateSessionState обновляет признак активности сессии и время последнего
// запроса пользователя. Используется при входе, выходе и принудительном
// завершении сессии по неактивности.
func (s *Storage) UpdateSessionState(ctx context.Context, username string, isActive bool, lastActivity time.Time) error {
	const op = "storage.UpdateSessionState"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET is_active = $1, last_activity = $2
			  WHERE username = $3`
	_, err := s.DB.ExecContext(ctx, query, isActive, lastActivity, username)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// TouchLastActivity продлевает окно активности сессии пользователя.
func (s *Storage) TouchLastActivity(ctx context.Context, username string, now time.Time) error {
	const op = "storage.TouchLastActivity"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET last_activity = $1
			  WHERE username = $2`
	_, err := s.DB.ExecContext(ctx, query, now, username)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdatePasswordHash заменяет хэш пароля пользователя.
func (s *Storage) UpdatePasswordHash(ctx context.Context, username, passwordHash string) error {
	const op = "storage.UpdatePasswordHash"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET password_hash = $1
			  WHERE username = $2`
	res, err := s.DB.ExecContext(ctx, query, passwordHash, username)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, sql.ErrNoRows)
	}
	return nil
}

// UpdateBillingTx записывает новое состояние баланса и подписки пользователя
// внутри открытой транзакции. Вызывается только вместе с созданием записи
// журнала в той же транзакции.
func (s *Storage) UpdateBillingTx(ctx context.Context, tx *sql.Tx, userUID string, balance int64, subscription string, nextPaymentDate *time.Time) error {
	const op = "storage.UpdateBillingTx"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET balance = $1, subscription = $2, next_payment_date = $3
			  WHERE uid = $4`
	var next sql.NullTime
	if nextPaymentDate != nil {
		next = sql.NullTime{Time: *nextPaymentDate, Valid: true}
	}
	_, err := tx.ExecContext(ctx, query, balance, subscription, next, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ResetSubscription сбрасывает подписку пользователя на базовый тариф
// без возврата средств. Используется администратором.
func (s *Storage) ResetSubscription(ctx context.Context, userUID string) error {
	const op = "storage.ResetSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET subscription = $1, next_payment_date = NULL
			  WHERE uid = $2`
	res, err := s.DB.ExecContext(ctx, query, models.BasePlan, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, sql.ErrNoRows)
	}
	return nil
}

// FindUsersWithDueRenewal находит пользователей, у которых наступила дата
// следующего платежа. Используется периодической проверкой сроков.
func (s *Storage) FindUsersWithDueRenewal(ctx context.Context, now time.Time) ([]string, error) {
	const op = "storage.FindUsersWithDueRenewal"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT username
			  FROM users
			  WHERE next_payment_date IS NOT NULL
			    AND next_payment_date <= $1`
	rows, err := s.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, username)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// FindSubscriptionsExpiringTomorrow находит пользователей, чья подписка
// истекает в течение суток, для отправки уведомлений.
func (s *Storage) FindSubscriptionsExpiringTomorrow(ctx context.Context, now time.Time) ([]*models.NoticeMessage, error) {
	const op = "storage.FindSubscriptionsExpiringTomorrow"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT email, username, subscription, next_payment_date
			  FROM users
			  WHERE next_payment_date IS NOT NULL
			    AND next_payment_date > $1
			    AND next_payment_date <= $1 + INTERVAL '1 day'`
	rows, err := s.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.NoticeMessage
	for rows.Next() {
		var msg models.NoticeMessage
		var due time.Time
		if err := rows.Scan(&msg.Email, &msg.Username, &msg.PlanName, &due); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		msg.Kind = models.NoticeExpiringSoon
		msg.DueDate = &due
		result = append(result, &msg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
