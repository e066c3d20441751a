// Package resend повторно отправляет код подтверждения регистрации.
package resend

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/fitcoach-identity/internal/http/response"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/sl"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

// Service повторная отправка кода.
type Service interface {
	ResendCode(ctx context.Context, email string) (*models.PendingIdentity, error)
}

// Request email ожидающей регистрации.
type Request struct {
	Email string `json:"email" validate:"required,email"`
}

// Handler обработчик повторной отправки.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

// ServeHTTP godoc
// @Summary Повторная отправка кода
// @Tags auth
// @Param request body Request true "email"
// @Success 200 {object} response.Response
// @Failure 410 {object} response.ErrorResponse
// @Failure 429 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /register/resend [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.resend"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.BadRequest(w, r, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Invalid(w, r, err)
		return
	}

	pending, err := h.service.ResendCode(r.Context(), req.Email)
	if err != nil {
		log.Info("resend failed", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"email":      pending.Email,
		"expires_at": pending.ExpiresAt,
	}))
}
