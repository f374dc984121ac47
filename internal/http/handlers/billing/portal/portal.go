// Package portal реализует HTTP-обработчик создания сессии портала
// управления подпиской у платёжного провайдера.
package portal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/notevault/internal/errs"
	"github.com/magabrotheeeer/notevault/internal/http/middlewarectx"
	"github.com/magabrotheeeer/notevault/internal/http/response"
	"github.com/magabrotheeeer/notevault/internal/lib/sl"
)

// Service описывает интерфейс бизнес-логики портала подписки.
type Service interface {
	CreatePortalSession(ctx context.Context, userUID string) (string, error)
}

// Handler обрабатывает HTTP-запросы создания сессии портала.
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
// @Summary Открыть портал управления подпиской
// @Description Создает сессию портала платёжного провайдера и возвращает её URL.
// @Tags Billing
// @Produce  json
// @Success 200 {object} map[string]any "URL портала"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "У пользователя нет платёжного аккаунта"
// @Failure 500 {object} response.ErrorResponse "Ошибка платёжного провайдера"
// @Router /billing/portal [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.portal"

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

	url, err := h.service.CreatePortalSession(r.Context(), userUID)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrNotFound):
			log.Error("no billing account", sl.Err(err))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("no billing account"))
		case errors.Is(err, errs.ErrProviderDisabled):
			log.Error("payment provider disabled", sl.Err(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("billing is not available"))
		default:
			log.Error("failed to create portal session", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not create portal session"))
		}
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"url": url,
	}))
}
