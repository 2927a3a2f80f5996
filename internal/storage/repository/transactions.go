package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/kinozal-backend/internal/models"
)

// CreateTransactionTx добавляет запись журнала операций внутри открытой
// транзакции. Запись создаётся только вместе с изменением баланса:
// при откате транзакции не останется ни записи, ни изменения.
func (s *Storage) CreateTransactionTx(ctx context.Context, tx *sql.Tx, tr models.Transaction) (int64, error) {
	const op = "storage.CreateTransactionTx"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO transactions (user_uid, amount, plan_name, operation_type)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id`
	var newID int64
	err := tx.QueryRowContext(ctx, query,
		tr.UserUID, tr.Amount, tr.PlanName, tr.OperationType).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ListTransactions возвращает журнал операций пользователя, новые записи первыми.
func (s *Storage) ListTransactions(ctx context.Context, userUID string, limit, offset int) ([]*models.Transaction, error) {
	const op = "storage.ListTransactions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, amount, plan_name, operation_type, created_at
			  FROM transactions
			  WHERE user_uid = $1
			  ORDER BY created_at DESC, id DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, userUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Transaction
	for rows.Next() {
		var item models.Transaction
		if err := rows.Scan(&item.ID, &item.UserUID, &item.Amount,
			&item.PlanName, &item.OperationType, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
