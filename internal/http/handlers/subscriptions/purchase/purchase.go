// Package purchase оформляет покупку подписки.
package purchase

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

// Service покупка через проверку квитанции.
type Service interface {
	Purchase(ctx context.Context, user models.User, productID, payload string) (*models.User, error)
}

// Request продукт и данные покупки от магазина.
type Request struct {
	ProductID string `json:"product_id" validate:"required,max=200"`
	Payload   string `json:"payload" validate:"required"`
}

// Handler обработчик покупки.
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
// @Summary Покупка подписки
// @Tags subscriptions
// @Security BearerAuth
// @Param request body Request true "продукт и квитанция"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.ErrorResponse "покупка отменена"
// @Failure 422 {object} response.ErrorResponse "неизвестный продукт"
// @Failure 502 {object} response.ErrorResponse "сервис проверки недоступен"
// @Router /subscriptions/purchase [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscriptions.purchase"

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

	updated, err := h.service.Purchase(r.Context(), *user, req.ProductID, req.Payload)
	if err != nil {
		log.Info("purchase failed", slog.String("user_id", user.ID), slog.String("product_id", req.ProductID), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(updated))
}
