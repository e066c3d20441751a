package generate

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/fitcoach-identity/internal/http/middlewarectx"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) GeneratePlan(ctx context.Context, user models.User, weeks int, goal string) ([]models.Workout, error) {
	args := m.Called(ctx, user, weeks, goal)
	w, _ := args.Get(0).([]models.Workout)
	return w, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestGenerateHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(m *ServiceMock)
		wantStatus int
	}{
		{
			name: "generated",
			body: `{"weeks":4,"goal":"strength"}`,
			setup: func(m *ServiceMock) {
				m.On("GeneratePlan", mock.Anything, mock.Anything, 4, "strength").
					Return([]models.Workout{{ID: "w-1", GeneratedByAI: true}}, nil).Once()
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "free tier",
			body: `{"weeks":4}`,
			setup: func(m *ServiceMock) {
				m.On("GeneratePlan", mock.Anything, mock.Anything, 4, "").Return(nil, models.ErrFeatureNotAvailable).Once()
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "generator down",
			body: `{"weeks":2}`,
			setup: func(m *ServiceMock) {
				m.On("GeneratePlan", mock.Anything, mock.Anything, 2, "").
					Return(nil, models.NewDispatchError("planner", io.ErrUnexpectedEOF)).Once()
			},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "too many weeks",
			body:       `{"weeks":52}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.setup != nil {
				tt.setup(svc)
			}
			req := httptest.NewRequest(http.MethodPost, "/plans", strings.NewReader(tt.body))
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserKey, &models.User{ID: "u-1"}))
			rec := httptest.NewRecorder()
			New(newNoopLogger(), svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}
