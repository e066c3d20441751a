// Package logincode отправляет одноразовый код входа.
package logincode

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
)

// Service выдача кода входа.
type Service interface {
	RequestLoginCode(ctx context.Context, email string) error
}

// Request email подтверждённого пользователя.
type Request struct {
	Email string `json:"email" validate:"required,email"`
}

// Handler обработчик запроса кода входа.
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
// @Summary Код входа
// @Tags auth
// @Param request body Request true "email"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /login/code [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logincode"

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

	if err := h.service.RequestLoginCode(r.Context(), req.Email); err != nil {
		log.Info("login code not issued", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]string{"message": "login code sent"}))
}
