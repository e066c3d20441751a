// Package invite приглашает пользователя в арендатора приглашающего.
package invite

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/fitcoach-identity/internal/http/middlewarectx"
	"github.com/magabrotheeeer/fitcoach-identity/internal/http/response"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/sl"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

// Service приглашения.
type Service interface {
	Invite(ctx context.Context, email string, inviter models.User) (models.DispatchResult, error)
}

// Request адрес приглашённого.
type Request struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// Handler обработчик приглашений.
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
// @Summary Приглашение в арендатора
// @Tags tenants
// @Security BearerAuth
// @Param request body Request true "email приглашённого"
// @Success 201 {object} response.Response "приглашение отправлено"
// @Success 202 {object} response.Response "приглашение сохранено, письмо не ушло"
// @Failure 403 {object} response.ErrorResponse
// @Router /tenants/invitations [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.tenants.invite"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFrom(r.Context())
	if !ok {
		response.Fail(w, r, models.ErrUnauthenticated)
		return
	}

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

	res, err := h.service.Invite(r.Context(), req.Email, *user)
	switch {
	case errors.Is(err, models.ErrDispatchFailure):
		log.Warn("invitation recorded, mail not sent", sl.Err(err))
		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, response.StatusOKWithData(map[string]any{
			"message":         "invitation recorded",
			"code_dispatched": false,
		}))
		return
	case err != nil:
		log.Info("invitation rejected", slog.String("user_id", user.ID), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message":   "invitation sent",
		"delivered": res.Delivered,
	}))
}
