// Package webhook реализует HTTP-обработчик вебхуков платёжного провайдера.
//
// Подпись проверяется над точными байтами тела запроса, поэтому тело
// читается целиком до разбора. Ответ 200 подтверждает доставку; повторы
// того же события обрабатываются идемпотентно на уровне сервиса.
package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/notevault/internal/errs"
	"github.com/magabrotheeeer/notevault/internal/http/response"
	"github.com/magabrotheeeer/notevault/internal/lib/sl"
)

// Service описывает интерфейс обработки событий биллинга.
type Service interface {
	ProcessWebhook(ctx context.Context, payload []byte, signature string) error
}

// Handler обрабатывает HTTP-запросы вебхуков провайдера.
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
// @Summary Вебхук платёжного провайдера
// @Description Принимает событие провайдера, проверяет подпись и применяет его к подпискам.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Success 200 {object} response.OKResponse "Событие обработано"
// @Failure 400 {object} response.ErrorResponse "Не удалось прочитать тело"
// @Failure 401 {object} response.ErrorResponse "Неверная подпись"
// @Failure 500 {object} response.ErrorResponse "Ошибка обработки события"
// @Router /billing/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.webhook"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to read request body"))
		return
	}
	defer func() {
		_ = r.Body.Close()
	}()

	signature := r.Header.Get("Stripe-Signature")
	if err := h.service.ProcessWebhook(r.Context(), body, signature); err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			log.Error("invalid webhook signature", sl.Err(err))
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error("invalid signature"))
			return
		}
		log.Error("failed to process webhook event", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to process event"))
		return
	}

	render.JSON(w, r, response.OKWithData(nil))
}
