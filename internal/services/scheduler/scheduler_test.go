package scheduler

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersJobs(t *testing.T) {
	jobs := newJobs(new(RepoMock), new(MailerMock), testConfig())

	s, err := New(context.Background(), jobs, testConfig(), clockwork.NewFakeClockAt(now), newNoopLogger())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"subscription-lapse", "pending-identity-purge", "usage-retention", "expiry-reminders",
	}, s.JobNames())
}

func TestNew_ZeroIntervalDisablesJob(t *testing.T) {
	cfg := testConfig()
	cfg.ReminderInterval = 0
	jobs := newJobs(new(RepoMock), new(MailerMock), cfg)

	s, err := New(context.Background(), jobs, cfg, clockwork.NewFakeClockAt(now), newNoopLogger())
	require.NoError(t, err)

	assert.NotContains(t, s.JobNames(), "expiry-reminders")
	assert.Len(t, s.JobNames(), 3)
}
