package usage

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/fitcoach-identity/internal/cache"
	"github.com/magabrotheeeer/fitcoach-identity/internal/config"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func setupMeter(t *testing.T) (*Meter, *clockwork.FakeClock) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := cache.InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC))
	return NewMeter(cache.NewUsageStore(c), clock, newNoopLogger()), clock
}

func freeUser() models.User {
	return models.User{ID: "u-1", SubscriptionType: models.SubscriptionFree, SubscriptionStatus: models.StatusActive}
}

func TestTryConsume_MonthlyQuota(t *testing.T) {
	meter, clock := setupMeter(t)
	ctx := context.Background()
	user := freeUser()

	for i := range 10 {
		ok, err := meter.TryConsume(ctx, user, models.KeyWorkout)
		require.NoError(t, err)
		assert.True(t, ok, "call %d", i+1)
	}

	ok, err := meter.TryConsume(ctx, user, models.KeyWorkout)
	require.NoError(t, err)
	assert.False(t, ok)

	usage, err := meter.RemainingUsage(ctx, user, models.KeyWorkout)
	require.NoError(t, err)
	assert.Equal(t, int64(10), usage.Used)
	assert.Equal(t, models.Window{Year: 2025, Month: time.March}, usage.Window)

	clock.Advance(2 * time.Hour)

	ok, err = meter.TryConsume(ctx, user, models.KeyWorkout)
	require.NoError(t, err)
	assert.True(t, ok)

	usage, err = meter.RemainingUsage(ctx, user, models.KeyWorkout)
	require.NoError(t, err)
	assert.Equal(t, int64(1), usage.Used)
	assert.Equal(t, models.Window{Year: 2025, Month: time.April}, usage.Window)
}

func TestTryConsume_FeatureKeysAreIndependent(t *testing.T) {
	meter, _ := setupMeter(t)
	ctx := context.Background()
	user := freeUser()

	ok, err := meter.TryConsume(ctx, user, models.KeyAIQuery)
	require.NoError(t, err)
	assert.False(t, ok, "free tier has no ai_query quota")

	ok, err = meter.TryConsume(ctx, user, models.KeyWorkout)
	require.NoError(t, err)
	assert.True(t, ok)

	usage, err := meter.RemainingUsage(ctx, user, models.KeyAIQuery)
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage.Used)
}

type StoreMock struct{ mock.Mock }

func (m *StoreMock) Count(ctx context.Context, key models.UsageKey) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *StoreMock) IncrementIfBelow(ctx context.Context, key models.UsageKey, limit models.Limit) (int64, bool, error) {
	args := m.Called(ctx, key, limit)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func TestTryConsume_GymMemberSkipsCounters(t *testing.T) {
	store := new(StoreMock)
	meter := NewMeter(store, clockwork.NewFakeClock(), newNoopLogger())
	tenant, membership := "t-gym", "m-1"
	user := models.User{ID: "u-1", SubscriptionType: models.SubscriptionFree, TenantID: &tenant, GymMembershipID: &membership}

	for range 50 {
		ok, err := meter.TryConsume(context.Background(), user, models.KeyAIQuery)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	usage, err := meter.RemainingUsage(context.Background(), user, models.KeyWorkout)
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage.Used)
	assert.True(t, usage.Limit.IsUnlimited())
	store.AssertNotCalled(t, "IncrementIfBelow", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "Count", mock.Anything, mock.Anything)
}

func TestTryConsume_UnknownFeature(t *testing.T) {
	meter := NewMeter(new(StoreMock), clockwork.NewFakeClock(), newNoopLogger())

	_, err := meter.TryConsume(context.Background(), freeUser(), models.FeatureKey("export"))
	assert.ErrorIs(t, err, models.ErrUnknownFeatureKey)

	_, err = meter.RemainingUsage(context.Background(), freeUser(), models.FeatureKey("export"))
	assert.ErrorIs(t, err, models.ErrUnknownFeatureKey)
}

func TestTryConsume_StoreError(t *testing.T) {
	store := new(StoreMock)
	store.On("IncrementIfBelow", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), false, assert.AnError).Once()
	meter := NewMeter(store, clockwork.NewFakeClock(), newNoopLogger())

	ok, err := meter.TryConsume(context.Background(), freeUser(), models.KeyWorkout)
	assert.False(t, ok)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestTryConsume_Concurrent(t *testing.T) {
	meter, _ := setupMeter(t)
	ctx := context.Background()
	user := freeUser()

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := meter.TryConsume(ctx, user, models.KeyWorkout); err == nil && ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), allowed.Load())
}
