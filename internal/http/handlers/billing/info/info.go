// Package info реализует HTTP-обработчик экрана биллинга: действующая
// подписка, тариф и последние платежи.
package info

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/notevault/internal/http/middlewarectx"
	"github.com/magabrotheeeer/notevault/internal/http/response"
	"github.com/magabrotheeeer/notevault/internal/lib/sl"
	"github.com/magabrotheeeer/notevault/internal/models"
)

// Service описывает интерфейс бизнес-логики экрана биллинга.
type Service interface {
	GetBillingInfo(ctx context.Context, userUID string) (*models.BillingInfo, error)
}

// Handler обрабатывает HTTP-запросы экрана биллинга.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Данные биллинга пользователя
// @Description Возвращает действующую подписку, тариф и последние платежи.
// @Tags Billing
// @Produce  json
// @Success 200 {object} map[string]any "Данные биллинга"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /billing [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.info"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	billingInfo, err := h.service.GetBillingInfo(r.Context(), userUID)
	if err != nil {
		log.Error("failed to get billing info", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not get billing info"))
		return
	}

	render.JSON(w, r, response.OKWithData(billingInfo))
}
