// Package checkout реализует HTTP-обработчик создания сессии оплаты подписки
// для авторизованного пользователя.
package checkout

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
	"github.com/magabrotheeeer/notevault/internal/http/middlewarectx"
	"github.com/magabrotheeeer/notevault/internal/http/response"
	"github.com/magabrotheeeer/notevault/internal/lib/sl"
	"github.com/magabrotheeeer/notevault/internal/models"
)

// Request — входные данные для создания сессии оплаты
type Request struct {
	Plan  string `json:"plan" validate:"required"`
	Cycle string `json:"cycle" validate:"required,oneof=monthly yearly"`
}

// Service описывает интерфейс бизнес-логики оформления подписки.
type Service interface {
	CreateCheckoutSession(ctx context.Context, userUID, planName string,
		cycle models.BillingCycle) (*models.CheckoutSession, error)
}

// Handler обрабатывает HTTP-запросы создания сессии оплаты.
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
// @Summary Создать сессию оплаты подписки
// @Description Создает сессию оплаты у платёжного провайдера и возвращает её URL.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Param request body Request true "Тариф и периодичность списаний"
// @Success 200 {object} map[string]any "Сессия оплаты создана"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации или неизвестный тариф"
// @Failure 500 {object} response.ErrorResponse "Ошибка платёжного провайдера"
// @Router /billing/checkout [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.checkout"

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

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	session, err := h.service.CreateCheckoutSession(r.Context(), userUID, req.Plan,
		models.BillingCycle(req.Cycle))
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrValidation):
			log.Error("invalid checkout request", sl.Err(err))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("unknown plan or billing cycle"))
		case errors.Is(err, errs.ErrProviderDisabled):
			log.Error("payment provider disabled", sl.Err(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("billing is not available"))
		default:
			log.Error("failed to create checkout session", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not create checkout session"))
		}
		return
	}

	log.Info("checkout session created", slog.String("session_id", session.SessionID))
	render.JSON(w, r, response.OKWithData(session))
}
