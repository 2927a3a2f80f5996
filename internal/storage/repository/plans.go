package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/kinozal-backend/internal/models"
)

// CreatePlan вставляет новый тариф и возвращает его ID.
func (s *Storage) CreatePlan(ctx context.Context, plan models.Plan) (int, error) {
	const op = "storage.CreatePlan"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO plans (name, price, is_active, description)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		plan.Name, plan.Price, plan.IsActive, plan.Description).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// UpdatePlan обновляет тариф по его ID и возвращает количество изменённых строк.
func (s *Storage) UpdatePlan(ctx context.Context, plan models.Plan, id int) (int, error) {
	const op = "storage.UpdatePlan"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE plans
			  SET name = $1, price = $2, is_active = $3, description = $4
			  WHERE id = $5`
	result, err := s.DB.ExecContext(ctx, query,
		plan.Name, plan.Price, plan.IsActive, plan.Description, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// DeletePlan удаляет тариф по ID и возвращает количество удалённых строк.
// Подписки пользователей и записи журнала ссылаются на тариф по имени,
// поэтому история не теряется.
func (s *Storage) DeletePlan(ctx context.Context, id int) (int, error) {
	const op = "storage.DeletePlan"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM plans WHERE id = $1`
	result, err := s.DB.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ListPlans возвращает список всех тарифов в порядке возрастания цены.
func (s *Storage) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	const op = "storage.ListPlans"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, price, is_active, description
			  FROM plans
			  ORDER BY price`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Plan
	for rows.Next() {
		var item models.Plan
		if err := rows.Scan(&item.ID, &item.Name, &item.Price,
			&item.IsActive, &item.Description); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// FindPlanByName возвращает тариф по имени. Если тариф отсутствует,
// возвращает sql.ErrNoRows в цепочке ошибок.
func (s *Storage) FindPlanByName(ctx context.Context, name string) (*models.Plan, error) {
	const op = "storage.FindPlanByName"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, price, is_active, description
			  FROM plans
			  WHERE name = $1`
	var item models.Plan
	row := s.DB.QueryRowContext(ctx, query, name)
	if err := row.Scan(&item.ID, &item.Name, &item.Price,
		&item.IsActive, &item.Description); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &item, nil
}

// FindPlanByNameTx возвращает тариф по имени внутри открытой транзакции.
func (s *Storage) FindPlanByNameTx(ctx context.Context, tx *sql.Tx, name string) (*models.Plan, error) {
	const op = "storage.FindPlanByNameTx"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, name, price, is_active, description
			  FROM plans
			  WHERE name = $1`
	var item models.Plan
	row := tx.QueryRowContext(ctx, query, name)
	if err := row.Scan(&item.ID, &item.Name, &item.Price,
		&item.IsActive, &item.Description); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &item, nil
}
