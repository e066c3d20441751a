package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) SaveSubscription(ctx context.Context, user models.User, receipt models.Receipt) (bool, error) {
	args := m.Called(ctx, user, receipt)
	return args.Bool(0), args.Error(1)
}

func (m *RepoMock) RestoreSubscription(ctx context.Context, user models.User, receipt models.Receipt) error {
	return m.Called(ctx, user, receipt).Error(0)
}

type VerifierMock struct{ mock.Mock }

func (m *VerifierMock) Purchase(ctx context.Context, userID, productID, payload string) (*models.Receipt, error) {
	args := m.Called(ctx, userID, productID, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Receipt), args.Error(1)
}

func (m *VerifierMock) RestorePurchases(ctx context.Context, userID string) ([]models.Receipt, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Receipt), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var now = time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)

func newLedger(r *RepoMock, v *VerifierMock) *Ledger {
	return New(r, v, nil, clockwork.NewFakeClockAt(now), newNoopLogger())
}

func purchased(tx, product string, at time.Time) models.Receipt {
	return models.Receipt{TransactionID: tx, ProductID: product, PurchasedAt: at, State: models.ReceiptPurchased}
}

func TestApplyPurchase(t *testing.T) {
	oldProduct := "fitcoach.pro.yearly"
	oldExpiry := now.AddDate(0, 10, 0)
	base := models.User{
		ID:                     "u-1",
		SubscriptionType:       models.SubscriptionPro,
		SubscriptionStatus:     models.StatusCancelled,
		SubscriptionExpiryDate: &oldExpiry,
		AppleSubscriptionID:    &oldProduct,
	}

	tests := []struct {
		name       string
		productID  string
		receipt    models.Receipt
		wantType   models.SubscriptionType
		wantExpiry time.Time
		wantErr    error
	}{
		{
			name:       "monthly overwrites previous subscription",
			productID:  "fitcoach.basic.monthly",
			receipt:    purchased("tx-1", "fitcoach.basic.monthly", now),
			wantType:   models.SubscriptionBasic,
			wantExpiry: time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC),
		},
		{
			name:       "yearly",
			productID:  "fitcoach.premium.yearly",
			receipt:    purchased("tx-2", "fitcoach.premium.yearly", now),
			wantType:   models.SubscriptionPremium,
			wantExpiry: now.AddDate(1, 0, 0),
		},
		{
			name:      "unknown product",
			productID: "fitcoach.gold.monthly",
			receipt:   purchased("tx-3", "fitcoach.gold.monthly", now),
			wantErr:   models.ErrUnknownProduct,
		},
		{
			name:      "cancelled",
			productID: "fitcoach.basic.monthly",
			receipt:   models.Receipt{ProductID: "fitcoach.basic.monthly", State: models.ReceiptCancelled},
			wantErr:   models.ErrPurchaseCancelled,
		},
		{
			name:      "failed",
			productID: "fitcoach.basic.monthly",
			receipt:   models.Receipt{ProductID: "fitcoach.basic.monthly", State: models.ReceiptFailed, Reason: "card declined"},
			wantErr:   models.ErrPurchaseFailed,
		},
		{
			name:      "receipt for another product",
			productID: "fitcoach.pro.monthly",
			receipt:   purchased("tx-4", "fitcoach.basic.monthly", now),
			wantErr:   models.ErrPurchaseFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := new(RepoMock)
			if tt.wantErr == nil {
				r.On("SaveSubscription", mock.Anything, mock.Anything, tt.receipt).Return(true, nil).Once()
			}
			l := newLedger(r, new(VerifierMock))

			got, err := l.ApplyPurchase(context.Background(), base, tt.productID, tt.receipt)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				r.AssertNotCalled(t, "SaveSubscription", mock.Anything, mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, got.SubscriptionType)
			assert.Equal(t, models.StatusActive, got.SubscriptionStatus)
			require.NotNil(t, got.AppleSubscriptionID)
			assert.Equal(t, tt.productID, *got.AppleSubscriptionID)
			require.NotNil(t, got.SubscriptionExpiryDate)
			assert.Equal(t, tt.wantExpiry, *got.SubscriptionExpiryDate)
			assert.Equal(t, oldProduct, *base.AppleSubscriptionID)
			r.AssertExpectations(t)
		})
	}
}

func TestPurchase_VerifierUnavailable(t *testing.T) {
	r, v := new(RepoMock), new(VerifierMock)
	v.On("Purchase", mock.Anything, "u-1", "fitcoach.pro.monthly", "payload").Return(nil, errors.New("connection refused")).Once()

	l := newLedger(r, v)
	_, err := l.Purchase(context.Background(), models.User{ID: "u-1"}, "fitcoach.pro.monthly", "payload")
	assert.ErrorIs(t, err, models.ErrDispatchFailure)
	r.AssertNotCalled(t, "SaveSubscription", mock.Anything, mock.Anything, mock.Anything)
}

func TestPurchase_UnknownProductSkipsVerifier(t *testing.T) {
	v := new(VerifierMock)
	l := newLedger(new(RepoMock), v)
	_, err := l.Purchase(context.Background(), models.User{ID: "u-1"}, "nope", "")
	assert.ErrorIs(t, err, models.ErrUnknownProduct)
	v.AssertNotCalled(t, "Purchase", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPurchase_Success(t *testing.T) {
	r, v := new(RepoMock), new(VerifierMock)
	receipt := purchased("tx-1", "fitcoach.pro.monthly", now)
	v.On("Purchase", mock.Anything, "u-1", "fitcoach.pro.monthly", "p").Return(&receipt, nil).Once()
	r.On("SaveSubscription", mock.Anything, mock.MatchedBy(func(u models.User) bool {
		return u.SubscriptionType == models.SubscriptionPro
	}), receipt).Return(true, nil).Once()

	got, err := newLedger(r, v).Purchase(context.Background(), models.User{ID: "u-1"}, "fitcoach.pro.monthly", "p")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionPro, got.SubscriptionType)
	r.AssertExpectations(t)
}

func TestApplyRestore(t *testing.T) {
	older := purchased("tx-1", "fitcoach.basic.monthly", now.AddDate(0, -3, 0))
	newer := purchased("tx-2", "fitcoach.premium.yearly", now.AddDate(0, -1, 0))
	renewal := purchased("tx-3", "fitcoach.basic.monthly", now.AddDate(0, -2, 0))
	revoked := models.Receipt{TransactionID: "tx-4", ProductID: "fitcoach.pro.yearly", PurchasedAt: now, State: models.ReceiptRevoked}
	unknown := purchased("tx-5", "legacy.gold", now)

	r := new(RepoMock)
	r.On("RestoreSubscription", mock.Anything, mock.Anything, newer).Return(nil).Once()

	got, count, err := newLedger(r, new(VerifierMock)).ApplyRestore(context.Background(),
		models.User{ID: "u-1"}, []models.Receipt{older, newer, renewal, revoked, unknown})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, models.SubscriptionPremium, got.SubscriptionType)
	assert.Equal(t, now.AddDate(1, 0, 0), *got.SubscriptionExpiryDate)
	r.AssertExpectations(t)
}

func TestApplyRestore_Nothing(t *testing.T) {
	r := new(RepoMock)
	user := models.User{ID: "u-1", SubscriptionType: models.SubscriptionFree}

	got, count, err := newLedger(r, new(VerifierMock)).ApplyRestore(context.Background(), user, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, user, *got)
	r.AssertNotCalled(t, "RestoreSubscription", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyPurchase_ReplayedReceipt(t *testing.T) {
	expiry := now.AddDate(0, 0, 20)
	user := models.User{
		ID:                     "u-1",
		SubscriptionType:       models.SubscriptionBasic,
		SubscriptionStatus:     models.StatusActive,
		SubscriptionExpiryDate: &expiry,
	}
	receipt := purchased("tx-1", "fitcoach.basic.monthly", now.AddDate(0, 0, -10))

	r := new(RepoMock)
	r.On("SaveSubscription", mock.Anything, mock.Anything, receipt).Return(false, nil).Once()

	got, err := newLedger(r, new(VerifierMock)).ApplyPurchase(context.Background(), user, "fitcoach.basic.monthly", receipt)
	require.NoError(t, err)
	assert.Equal(t, user, *got)
	r.AssertExpectations(t)
}
