// Package usage отдаёт остаток месячной квоты.
package usage

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/fitcoach-identity/internal/http/middlewarectx"
	"github.com/magabrotheeeer/fitcoach-identity/internal/http/response"
	"github.com/magabrotheeeer/fitcoach-identity/internal/lib/sl"
	"github.com/magabrotheeeer/fitcoach-identity/internal/models"
)

// Service чтение счётчиков.
type Service interface {
	RemainingUsage(ctx context.Context, user models.User, feature models.FeatureKey) (models.Usage, error)
}

// Result использование и остаток в текущем окне. Remaining равен nil без лимита.
type Result struct {
	models.Usage
	Remaining *int64 `json:"remaining"`
}

// Handler обработчик остатка квоты.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Остаток квоты
// @Tags me
// @Security BearerAuth
// @Param feature path string true "workout или ai_query"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /me/usage/{feature} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.me.usage"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFrom(r.Context())
	if !ok {
		response.Fail(w, r, models.ErrUnauthenticated)
		return
	}
	feature := models.FeatureKey(chi.URLParam(r, "feature"))

	u, err := h.service.RemainingUsage(r.Context(), *user, feature)
	if err != nil {
		log.Info("usage lookup failed", slog.String("feature", string(feature)), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	res := Result{Usage: u}
	if n, bounded := u.Limit.Max(); bounded {
		left := max(n-u.Used, 0)
		res.Remaining = &left
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}
