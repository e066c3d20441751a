package paymentprovider

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

const secret = "s3cr3t"

func signedServer(t *testing.T, status int, respond any, tamper bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, Sign([]byte(secret), body), r.Header.Get(SignatureHeader))

		data, err := json.Marshal(respond)
		require.NoError(t, err)
		sig := Sign([]byte(secret), data)
		if tamper {
			sig = Sign([]byte("other"), data)
		}
		w.Header().Set(SignatureHeader, sig)
		w.WriteHeader(status)
		_, _ = w.Write(data)
	}))
}

func TestClient_Purchase(t *testing.T) {
	purchasedAt := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	receipt := models.Receipt{
		TransactionID: "tx-1", ProductID: "fitcoach.pro.monthly",
		PurchasedAt: purchasedAt, State: models.ReceiptPurchased,
	}

	tests := []struct {
		name         string
		status       int
		tamper       bool
		wantDispatch bool
	}{
		{name: "verified", status: http.StatusOK},
		{name: "provider error", status: http.StatusBadGateway, wantDispatch: true},
		{name: "forged response", status: http.StatusOK, tamper: true, wantDispatch: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := signedServer(t, tt.status, PurchaseResponse{Receipt: receipt}, tt.tamper)
			defer srv.Close()

			got, err := NewClient(srv.URL, secret, time.Second).Purchase(t.Context(), "u-1", "fitcoach.pro.monthly", "p")
			if tt.wantDispatch {
				assert.ErrorIs(t, err, models.ErrDispatchFailure)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, receipt, *got)
		})
	}
}

func TestClient_RestorePurchases(t *testing.T) {
	receipts := []models.Receipt{
		{TransactionID: "tx-1", ProductID: "fitcoach.basic.monthly", State: models.ReceiptPurchased},
		{TransactionID: "tx-2", ProductID: "fitcoach.pro.yearly", State: models.ReceiptRevoked},
	}
	srv := signedServer(t, http.StatusOK, RestoreResponse{Receipts: receipts}, false)
	defer srv.Close()

	got, err := NewClient(srv.URL, secret, time.Second).RestorePurchases(t.Context(), "u-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, secret, time.Second).RestorePurchases(t.Context(), "u-1")
	assert.ErrorIs(t, err, models.ErrDispatchFailure)
}
