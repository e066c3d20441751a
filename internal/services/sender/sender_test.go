package sender

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/smtp"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect() (smtp.Client, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(smtp.Client), args.Error(1)
}

func (m *MockTransport) GetSMTPUser() string {
	return m.Called().String(0)
}

func (m *MockTransport) From() string {
	return m.Called().String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error { return m.Called(from).Error(0) }
func (m *MockSMTPClient) Rcpt(to string) error   { return m.Called(to).Error(0) }
func (m *MockSMTPClient) Quit() error            { return m.Called().Error(0) }
func (m *MockSMTPClient) Close() error           { return m.Called().Error(0) }

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

type bufWriter struct {
	strings.Builder
	closed bool
}

func (b *bufWriter) Close() error {
	b.closed = true
	return nil
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func expectDelivery(tr *MockTransport, to string) (*MockSMTPClient, *bufWriter) {
	client := new(MockSMTPClient)
	writer := &bufWriter{}
	tr.On("From").Return("noreply@fitcoach.app")
	tr.On("Connect").Return(client, nil).Once()
	client.On("Mail", "noreply@fitcoach.app").Return(nil).Once()
	client.On("Rcpt", to).Return(nil).Once()
	client.On("Data").Return(writer, nil).Once()
	client.On("Quit").Return(nil).Once()
	client.On("Close").Return(nil).Once()
	return client, writer
}

func TestSMTPMailer_Send(t *testing.T) {
	tr := new(MockTransport)
	client, writer := expectDelivery(tr, "a@x.com")

	m := NewSMTPMailer(tr, newNoopLogger())
	delivered, err := m.Send(context.Background(), "a@x.com", "Код", "<b>123456</b>")
	require.NoError(t, err)
	assert.True(t, delivered)
	assert.True(t, writer.closed)
	assert.Contains(t, writer.String(), "Content-Type: text/html")
	assert.Contains(t, writer.String(), "<b>123456</b>")
	assert.Contains(t, writer.String(), "Subject: =?utf-8?q?")
	client.AssertExpectations(t)
}

func TestSMTPMailer_SendConnectError(t *testing.T) {
	tr := new(MockTransport)
	tr.On("From").Return("noreply@fitcoach.app")
	tr.On("Connect").Return(nil, errors.New("connection error")).Once()

	delivered, err := NewSMTPMailer(tr, newNoopLogger()).Send(context.Background(), "a@x.com", "s", "b")
	assert.False(t, delivered)
	assert.ErrorContains(t, err, "connection error")
}

func TestSMTPMailer_SendCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	delivered, err := NewSMTPMailer(new(MockTransport), newNoopLogger()).Send(ctx, "a@x.com", "s", "b")
	assert.False(t, delivered)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSMTPMailer_HandleMessage(t *testing.T) {
	tests := []struct {
		name       string
		body       []byte
		setup      func(*MockTransport)
		wantReject bool
		wantErr    bool
	}{
		{
			name: "delivers queued mail",
			body: []byte(`{"id":"m-1","kind":"verification_code","to":"a@x.com","subject":"s","html_body":"<p>hi</p>"}`),
			setup: func(tr *MockTransport) {
				expectDelivery(tr, "a@x.com")
			},
		},
		{
			name:       "invalid JSON is rejected",
			body:       []byte(`invalid json`),
			setup:      func(_ *MockTransport) {},
			wantErr:    true,
			wantReject: true,
		},
		{
			name:       "missing recipient is rejected",
			body:       []byte(`{"id":"m-2","subject":"s"}`),
			setup:      func(_ *MockTransport) {},
			wantErr:    true,
			wantReject: true,
		},
		{
			name: "smtp failure is retried",
			body: []byte(`{"id":"m-3","to":"a@x.com","subject":"s","html_body":"b"}`),
			setup: func(tr *MockTransport) {
				tr.On("From").Return("noreply@fitcoach.app")
				tr.On("Connect").Return(nil, errors.New("timeout")).Once()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := new(MockTransport)
			tt.setup(tr)

			err := NewSMTPMailer(tr, newNoopLogger()).HandleMessage(tt.body)
			if !tt.wantErr {
				assert.NoError(t, err)
				tr.AssertExpectations(t)
				return
			}
			assert.Error(t, err)
			assert.Equal(t, tt.wantReject, errors.Is(err, rabbitmq.ErrReject))
		})
	}
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(exchange, routingKey string, message any) error {
	return m.Called(exchange, routingKey, message).Error(0)
}

func TestQueueMailer_Send(t *testing.T) {
	pub := new(PublisherMock)
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))
	pub.On("Publish", "mail", rabbitmq.OutboundRoutingKey, mock.MatchedBy(func(msg models.MailMessage) bool {
		data, err := json.Marshal(msg)
		return err == nil && msg.To == "a@x.com" && msg.Kind == models.MailInvitation &&
			msg.QueuedAt.Equal(clock.Now()) && len(data) > 0 && msg.ID != ""
	})).Return(nil).Once()

	q := NewQueueMailer(pub, "mail", clock, newNoopLogger()).WithKind(models.MailInvitation)
	delivered, err := q.Send(context.Background(), "a@x.com", "s", "b")
	require.NoError(t, err)
	assert.False(t, delivered)
	pub.AssertExpectations(t)
}

func TestQueueMailer_PublishError(t *testing.T) {
	pub := new(PublisherMock)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("channel closed")).Once()

	_, err := NewQueueMailer(pub, "mail", nil, newNoopLogger()).Send(context.Background(), "a@x.com", "s", "b")
	assert.ErrorContains(t, err, "channel closed")
}
