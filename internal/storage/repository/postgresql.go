// Package repository реализует хранилище данных на основе PostgreSQL
// для пользователей, тарифов, фильмов и журнала операций с балансом.
// Все операции, меняющие баланс вместе с подпиской, выполняются в одной
// транзакции под советующей блокировкой пользователя.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Storage инкапсулирует соединение с базой данных PostgreSQL
// и реализует методы работы с доменными сущностями.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL и проверяет его доступность.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady проверяет готовность базы данных.
func CheckDatabaseReady(storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRow(`SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'users'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table users missing or query error: %w", err)
	}
	return nil
}

// lockKey приводит uid пользователя к ключу советующей блокировки.
func lockKey(userUID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(userUID))
	return int64(h.Sum64() & ((1 << 63) - 1))
}

// WithinUserTx выполняет fn в транзакции, предварительно взяв
// pg_advisory_xact_lock по uid пользователя. Блокировка сериализует
// конкурентные операции над балансом и подпиской одного пользователя,
// а транзакция гарантирует, что баланс, подписка и запись журнала
// меняются атомарно. При ошибке fn транзакция откатывается целиком.
func (s *Storage) WithinUserTx(ctx context.Context, userUID string, fn func(tx *sql.Tx) error) error {
	const op = "storage.WithinUserTx"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", lockKey(userUID)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
