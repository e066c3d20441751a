// Package sender доставляет письма: напрямую через SMTP или через очередь RabbitMQ,
// которую читает notification-sender.
package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/sl"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/smtp"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

// SMTPMailer отправляет письма через SMTP-транспорт.
type SMTPMailer struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// NewSMTPMailer создаёт SMTPMailer.
func NewSMTPMailer(transport smtp.TransportInterface, log *slog.Logger) *SMTPMailer {
	return &SMTPMailer{transport: transport, log: log}
}

// Send отправляет письмо. Отмена контекста прерывает ожидание, но не SMTP-сессию.
func (s *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	done := make(chan error, 1)
	go func() {
		done <- s.sendEmail([]string{to}, subject, htmlBody)
	}()
	select {
	case err := <-done:
		if err != nil {
			return false, err
		}
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (s *SMTPMailer) sendEmail(to []string, subject, htmlBody string) error {
	from := s.transport.From()
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + strings.Join(to, ", "),
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"UTF-8\"",
		"",
		htmlBody,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("Failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(from); err != nil {
		s.log.Error("Failed to set MAIL FROM", slog.String("from", from), sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("Failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("Failed to get Data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("Failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("Failed to close Data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("Failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", slog.Any("to", to))
	return nil
}

// HandleMessage обрабатывает письмо из очереди. Некорректное сообщение отклоняется
// без повторной доставки, ошибка SMTP возвращает его в очередь.
func (s *SMTPMailer) HandleMessage(body []byte) error {
	var message models.MailMessage
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("Failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w: %v", rabbitmq.ErrReject, err)
	}
	if message.To == "" {
		return fmt.Errorf("message %s has no recipient: %w", message.ID, rabbitmq.ErrReject)
	}
	return s.sendEmail([]string{message.To}, message.Subject, message.HTMLBody)
}

// Publisher публикует сообщение в exchange.
type Publisher interface {
	Publish(exchange, routingKey string, message any) error
}

// QueueMailer ставит письма в очередь. Send возвращает delivered == false:
// письмо принято к отправке, но ещё не доставлено.
type QueueMailer struct {
	publisher Publisher
	exchange  string
	kind      models.MailKind
	clock     clockwork.Clock
	log       *slog.Logger
}

// NewQueueMailer создаёт QueueMailer.
func NewQueueMailer(publisher Publisher, exchange string, clock clockwork.Clock, log *slog.Logger) *QueueMailer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &QueueMailer{publisher: publisher, exchange: exchange, kind: models.MailGeneric, clock: clock, log: log}
}

// WithKind возвращает копию, помечающую письма видом kind.
func (q *QueueMailer) WithKind(kind models.MailKind) *QueueMailer {
	c := *q
	c.kind = kind
	return &c
}

// Send публикует письмо в очередь.
func (q *QueueMailer) Send(ctx context.Context, to, subject, htmlBody string) (bool, error) {
	const op = "sender.QueueMailer.Send"
	if err := ctx.Err(); err != nil {
		return false, err
	}
	msg := models.MailMessage{
		ID:       uuid.NewString(),
		Kind:     q.kind,
		To:       to,
		Subject:  subject,
		HTMLBody: htmlBody,
		QueuedAt: q.clock.Now().UTC().Truncate(time.Millisecond),
	}
	if err := q.publisher.Publish(q.exchange, rabbitmq.OutboundRoutingKey, msg); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	q.log.Debug("mail queued", slog.String("message_id", msg.ID), slog.String("kind", string(msg.Kind)))
	return false, nil
}
