// Package generate запускает генерацию плана тренировок.
package generate

import (
	"context"
	"encoding/json"
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

// Service генерация плана.
type Service interface {
	GeneratePlan(ctx context.Context, user models.User, weeks int, goal string) ([]models.Workout, error)
}

// Request параметры плана.
type Request struct {
	Weeks int    `json:"weeks" validate:"min=1,max=12"`
	Goal  string `json:"goal" validate:"max=500"`
}

// Handler обработчик генерации плана.
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
// @Summary Генерация плана
// @Tags plans
// @Security BearerAuth
// @Param request body Request true "недели и цель"
// @Success 201 {object} response.Response
// @Failure 403 {object} response.ErrorResponse "функция недоступна на плане"
// @Failure 429 {object} response.ErrorResponse "квота исчерпана"
// @Failure 502 {object} response.ErrorResponse "генератор недоступен"
// @Router /plans [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plans.generate"

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

	workouts, err := h.service.GeneratePlan(r.Context(), *user, req.Weeks, req.Goal)
	if err != nil {
		log.Info("plan not generated", slog.String("user_id", user.ID), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("plan generated", slog.String("user_id", user.ID), slog.Int("workouts", len(workouts)))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(workouts))
}
