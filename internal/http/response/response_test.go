package response

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrDuplicateEmail, http.StatusConflict},
		{models.ErrInvalidCode, http.StatusBadRequest},
		{models.ErrExpiredCode, http.StatusGone},
		{fmt.Errorf("storage.GetUser: %w", models.ErrNotFound), http.StatusNotFound},
		{models.ErrForbidden, http.StatusForbidden},
		{models.ErrQuotaExceeded, http.StatusTooManyRequests},
		{models.ErrUnknownProduct, http.StatusUnprocessableEntity},
		{models.NewDispatchError("mail.Send", errors.New("down")), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got, _ := StatusFor(tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusFor_QuotaMessage(t *testing.T) {
	_, msg := StatusFor(fmt.Errorf("coaching.GeneratePlan: %w", models.ErrQuotaExceeded))
	assert.Equal(t, "quota exceeded", msg)
}
