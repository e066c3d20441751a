package scheduler

import (
	"context"
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

	"github.com/magabrotheeeer/fitcoach-identity/internal/config"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) LapseSubscriptions(ctx context.Context, now time.Time, grace time.Duration) (int64, int64, error) {
	args := m.Called(ctx, now, grace)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *RepoMock) PurgePendingIdentities(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type UsageMock struct{ mock.Mock }

func (m *UsageMock) DeleteUsageBefore(ctx context.Context, before models.Window) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *RepoMock) ListExpiringSubscriptions(ctx context.Context, from, to time.Time) ([]models.ExpiringSubscription, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ExpiringSubscription), args.Error(1)
}

type MailerMock struct{ mock.Mock }

func (m *MailerMock) Send(ctx context.Context, to, subject, htmlBody string) (bool, error) {
	args := m.Called(ctx, to, subject, htmlBody)
	return args.Bool(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var now = time.Date(2025, 3, 15, 18, 0, 0, 0, time.UTC)

func testConfig() config.Scheduler {
	return config.Scheduler{
		ExpiryInterval:       time.Hour,
		PurgeInterval:        6 * time.Hour,
		ReminderInterval:     12 * time.Hour,
		GracePeriod:          72 * time.Hour,
		UsageRetentionMonths: 3,
	}
}

func newJobs(repo *RepoMock, mailer *MailerMock, cfg config.Scheduler) *Jobs {
	return newJobsWithUsage(repo, new(UsageMock), mailer, cfg)
}

func newJobsWithUsage(repo *RepoMock, usage *UsageMock, mailer *MailerMock, cfg config.Scheduler) *Jobs {
	return NewJobs(repo, usage, mailer, cfg, clockwork.NewFakeClockAt(now), newNoopLogger())
}

func TestLapseSubscriptions(t *testing.T) {
	repo := new(RepoMock)
	repo.On("LapseSubscriptions", mock.Anything, now, 72*time.Hour).Return(int64(2), int64(1), nil).Once()

	require.NoError(t, newJobs(repo, new(MailerMock), testConfig()).LapseSubscriptions(context.Background()))
	repo.AssertExpectations(t)
}

func TestPurgePendingIdentities_Error(t *testing.T) {
	repo := new(RepoMock)
	repo.On("PurgePendingIdentities", mock.Anything, now).Return(int64(0), errors.New("db down")).Once()

	assert.Error(t, newJobs(repo, new(MailerMock), testConfig()).PurgePendingIdentities(context.Background()))
}

func TestPruneUsage(t *testing.T) {
	t.Run("deletes windows older than retention", func(t *testing.T) {
		usage := new(UsageMock)
		usage.On("DeleteUsageBefore", mock.Anything, models.Window{Year: 2024, Month: time.December}).
			Return(int64(7), nil).Once()

		require.NoError(t, newJobsWithUsage(new(RepoMock), usage, new(MailerMock), testConfig()).PruneUsage(context.Background()))
		usage.AssertExpectations(t)
	})

	t.Run("zero retention keeps everything", func(t *testing.T) {
		usage := new(UsageMock)
		cfg := testConfig()
		cfg.UsageRetentionMonths = 0

		require.NoError(t, newJobsWithUsage(new(RepoMock), usage, new(MailerMock), cfg).PruneUsage(context.Background()))
		usage.AssertNotCalled(t, "DeleteUsageBefore", mock.Anything, mock.Anything)
	})

	t.Run("store failure is reported", func(t *testing.T) {
		usage := new(UsageMock)
		usage.On("DeleteUsageBefore", mock.Anything, mock.Anything).Return(int64(0), errors.New("redis down")).Once()

		assert.Error(t, newJobsWithUsage(new(RepoMock), usage, new(MailerMock), testConfig()).PruneUsage(context.Background()))
	})
}

func TestRemindExpiring(t *testing.T) {
	from := time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)
	subs := []models.ExpiringSubscription{
		{UserID: "u-1", Email: "a@example.com", Name: "<Anna>", SubscriptionType: models.SubscriptionPro, ExpiresAt: from.Add(10 * time.Hour)},
		{UserID: "u-2", Email: "b@example.com", Name: "Boris", SubscriptionType: models.SubscriptionBasic, ExpiresAt: from.Add(20 * time.Hour)},
	}

	repo := new(RepoMock)
	repo.On("ListExpiringSubscriptions", mock.Anything, from, to).Return(subs, nil).Once()
	mailer := new(MailerMock)
	mailer.On("Send", mock.Anything, "a@example.com", reminderSubject, mock.MatchedBy(func(body string) bool {
		return strings.Contains(body, "&lt;Anna&gt;") && strings.Contains(body, "pro")
	})).Return(false, errors.New("queue down")).Once()
	mailer.On("Send", mock.Anything, "b@example.com", reminderSubject, mock.Anything).Return(false, nil).Once()

	require.NoError(t, newJobs(repo, mailer, testConfig()).RemindExpiring(context.Background()))
	mailer.AssertExpectations(t)
}
