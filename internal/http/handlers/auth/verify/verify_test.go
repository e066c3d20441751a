package verify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) VerifyEmail(ctx context.Context, email, code string) (*models.User, error) {
	args := m.Called(ctx, email, code)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestVerifyHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(m *ServiceMock)
		wantStatus int
		wantError  string
	}{
		{
			name: "verified",
			body: `{"email":"a@b.io","code":"012345"}`,
			setup: func(m *ServiceMock) {
				m.On("VerifyEmail", mock.Anything, "a@b.io", "012345").
					Return(&models.User{ID: "u-1", Email: "a@b.io", IsEmailVerified: true}, nil).Once()
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "wrong code",
			body: `{"email":"a@b.io","code":"999999"}`,
			setup: func(m *ServiceMock) {
				m.On("VerifyEmail", mock.Anything, "a@b.io", "999999").Return(nil, models.ErrInvalidCode).Once()
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid verification code",
		},
		{
			name: "expired code",
			body: `{"email":"a@b.io","code":"123456"}`,
			setup: func(m *ServiceMock) {
				m.On("VerifyEmail", mock.Anything, "a@b.io", "123456").Return(nil, models.ErrExpiredCode).Once()
			},
			wantStatus: http.StatusGone,
			wantError:  "verification code expired",
		},
		{
			name:       "code with letters",
			body:       `{"email":"a@b.io","code":"12a456"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "field Code must be a 6-digit code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.setup != nil {
				tt.setup(svc)
			}
			req := httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, got["error"])
			}
			svc.AssertExpectations(t)
		})
	}
}
