// Package scheduler собирает приложение периодической проверки сроков подписок.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/kinozal-backend/internal/config"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/kinozal-backend/internal/metrics"
	billingservice "github.com/magabrotheeeer/kinozal-backend/internal/services/billing"
	schedulerservice "github.com/magabrotheeeer/kinozal-backend/internal/services/scheduler"
	"github.com/magabrotheeeer/kinozal-backend/internal/storage/repository"
)

// App приложение планировщика.
type App struct {
	schedulerService *schedulerservice.Service
	conn             *amqp.Connection
	ch               *amqp.Channel
	logger           *slog.Logger
	sweepInterval    time.Duration
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения планировщика.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQConnection, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	queues := []rabbitmq.QueueConfig{
		{QueueName: "notifications", RoutingKey: schedulerservice.RoutingKeySubscription},
	}
	ch, err := rabbitmq.SetupChannel(conn, queues)
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	metrics.MustRegister()

	billingService := billingservice.New(db, logger)
	schedulerService := schedulerservice.New(db, billingService, logger)

	return &App{
		schedulerService: schedulerService,
		conn:             conn,
		ch:               ch,
		logger:           logger,
		sweepInterval:    cfg.SweepInterval,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", "error", err)
		}
	}
}

// Run запускает планировщик.
func (a *App) Run(ctx context.Context) error {
	go a.schedulerService.RunSweep(ctx, a.ch, a.sweepInterval)

	<-ctx.Done()

	a.logger.Info("shutting down scheduler service")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
