package restore

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/fitcoach-identity/internal/http/middlewarectx"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Restore(ctx context.Context, user models.User) (*models.User, int, error) {
	args := m.Called(ctx, user)
	u, _ := args.Get(0).(*models.User)
	return u, args.Int(1), args.Error(2)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func request(user *models.User) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/subscriptions/restore", nil)
	return req.WithContext(context.WithValue(req.Context(), middlewarectx.UserKey, user))
}

func TestRestoreHandler(t *testing.T) {
	user := &models.User{ID: "u-1"}
	svc := new(ServiceMock)
	svc.On("Restore", mock.Anything, *user).
		Return(&models.User{ID: "u-1", SubscriptionType: models.SubscriptionPro}, 2, nil).Once()

	rec := httptest.NewRecorder()
	New(newNoopLogger(), svc).ServeHTTP(rec, request(user))

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Data Result `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, 2, got.Data.Restored)
	assert.Equal(t, models.SubscriptionPro, got.Data.User.SubscriptionType)
}

func TestRestoreHandler_VerifierDown(t *testing.T) {
	user := &models.User{ID: "u-1"}
	svc := new(ServiceMock)
	svc.On("Restore", mock.Anything, *user).Return(nil, 0, models.NewDispatchError("verifier", io.EOF)).Once()

	rec := httptest.NewRecorder()
	New(newNoopLogger(), svc).ServeHTTP(rec, request(user))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
