// Package register обрабатывает регистрацию: создаёт ожидающую подтверждения
// запись и отправляет код.
package register

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/fitcoach-identity/internal/http/response"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/sl"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
	"github.com/magabrotheeeer/fitcoach-identity/internal/services/identity"
)

// Service регистрация пользователей.
type Service interface {
	Register(ctx context.Context, email, name string, plan models.TenantPlan) (*identity.RegisterResult, error)
}

// Request входные данные для регистрации.
type Request struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Name  string `json:"name" validate:"required,max=100"`
	Plan  string `json:"plan" validate:"omitempty,oneof=individual team enterprise"`
}

// Result ответ на регистрацию.
type Result struct {
	PendingID      string    `json:"pending_id"`
	Email          string    `json:"email"`
	ExpiresAt      time.Time `json:"expires_at"`
	CodeDispatched bool      `json:"code_dispatched"`
}

// Handler обработчик регистрации.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Регистрация
// @Tags auth
// @Accept json
// @Produce json
// @Param request body Request true "email, имя и план"
// @Success 201 {object} response.Response
// @Success 202 {object} response.Response "регистрация создана, письмо не отправлено"
// @Failure 409 {object} response.ErrorResponse
// @Router /register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

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
		log.Info("validation failed", sl.Err(err))
		response.Invalid(w, r, err)
		return
	}

	res, err := h.service.Register(r.Context(), req.Email, req.Name, models.TenantPlan(req.Plan))
	if err != nil {
		log.Info("registration failed", sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	if res.CodeDispatched {
		render.Status(r, http.StatusCreated)
	} else {
		render.Status(r, http.StatusAccepted)
	}
	render.JSON(w, r, response.StatusOKWithData(Result{
		PendingID:      res.Pending.ID,
		Email:          res.Pending.Email,
		ExpiresAt:      res.Pending.ExpiresAt,
		CodeDispatched: res.CodeDispatched,
	}))
}
