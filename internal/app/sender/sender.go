// Package sender собирает процесс доставки писем из очереди.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/fitcoach-identity/internal/config"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/sl"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/smtp"
	senderservice "github.com/magabrotheeeer/fitcoach-identity/internal/services/sender"
)

// App потребитель очереди mail.outbound.
type App struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	mailer *senderservice.SMTPMailer
	logger *slog.Logger
}

// New подключается к RabbitMQ и готовит SMTP-транспорт.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, cfg.RabbitMQ.Exchange, rabbitmq.MailQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)

	return &App{
		conn:   conn,
		ch:     ch,
		mailer: senderservice.NewSMTPMailer(transport, logger),
		logger: logger,
	}, nil
}

// Run обрабатывает письма до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.OutboundQueue, a.mailer.HandleMessage, a.logger)
	if err != nil {
		a.logger.Error("failed to start consumer", slog.String("queue", rabbitmq.OutboundQueue), sl.Err(err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	return nil
}
