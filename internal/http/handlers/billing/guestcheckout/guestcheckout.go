// Package guestcheckout реализует HTTP-обработчик создания сессии оплаты
// для гостя без аккаунта. Оплата привязывается к пользователю при
// регистрации с идентификатором сессии.
package guestcheckout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/notevault/internal/errs"
	"github.com/magabrotheeeer/notevault/internal/http/response"
	"github.com/magabrotheeeer/notevault/internal/lib/sl"
	"github.com/magabrotheeeer/notevault/internal/models"
)

// Request — входные данные для гостевой оплаты
type Request struct {
	Email string `json:"email" validate:"required,email"`
	Plan  string `json:"plan" validate:"required"`
	Cycle string `json:"cycle" validate:"required,oneof=monthly yearly"`
}

// Service описывает интерфейс бизнес-логики гостевого оформления.
type Service interface {
	CreateGuestCheckoutSession(ctx context.Context, email, planName string,
		cycle models.BillingCycle) (*models.CheckoutSession, error)
}

// Handler обрабатывает HTTP-запросы гостевой оплаты.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создать гостевую сессию оплаты
// @Description Создает сессию оплаты без аккаунта. Подписка привяжется при регистрации с checkout_session_id.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Param request body Request true "Email, тариф и периодичность списаний"
// @Success 200 {object} map[string]any "Сессия оплаты создана"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации или неизвестный тариф"
// @Failure 500 {object} response.ErrorResponse "Ошибка платёжного провайдера"
// @Router /billing/checkout/guest [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.guestcheckout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	session, err := h.service.CreateGuestCheckoutSession(r.Context(), req.Email, req.Plan,
		models.BillingCycle(req.Cycle))
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrValidation):
			log.Error("invalid guest checkout request", sl.Err(err))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("unknown plan or billing cycle"))
		case errors.Is(err, errs.ErrProviderDisabled):
			log.Error("payment provider disabled", sl.Err(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("billing is not available"))
		default:
			log.Error("failed to create guest checkout session", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not create checkout session"))
		}
		return
	}

	log.Info("guest checkout session created", slog.String("session_id", session.SessionID))
	render.JSON(w, r, response.OKWithData(session))
}
