// Package sender собирает приложение отправки почтовых уведомлений.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/kinozal-backend/internal/config"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/kinozal-backend/internal/lib/smtp"
	"github.com/magabrotheeeer/kinozal-backend/internal/metrics"
	senderservice "github.com/magabrotheeeer/kinozal-backend/internal/services/sender"
	schedulerservice "github.com/magabrotheeeer/kinozal-backend/internal/services/scheduler"
)

// App приложение отправки уведомлений.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.Service
	logger        *slog.Logger
}

// New создает новый экземпляр приложения отправки уведомлений.
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
		if closeErr := conn.Close(); closeErr != nil {
			logger.Error("failed to close connection", slog.Any("err", closeErr))
		}
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	metrics.MustRegister()

	transport := smtp.NewTransport(cfg, logger)
	senderService := senderservice.New(transport, logger)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

// Run запускает потребителя очереди уведомлений.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, "notifications", a.senderService.SendSubscriptionNotice)
	if err != nil {
		a.logger.Error("failed to start notifications consumer", slog.Any("err", err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
