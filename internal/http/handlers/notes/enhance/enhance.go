// Package enhance реализует HTTP-обработчик метрируемых AI-операций
// над заметками.
package enhance

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
	"github.com/magabrotheeeer/notevault/internal/services/notes"
)

// Request — входные данные для AI-операции над заметкой
type Request struct {
	Operation string `json:"operation" validate:"required,oneof=ocr title tags clean summarize rewrite"`
	NoteID    string `json:"note_id,omitempty"`
	Text      string `json:"text" validate:"required"`
}

// Service описывает интерфейс бизнес-логики AI-дополнений.
type Service interface {
	Enhance(ctx context.Context, userUID string, operation models.Operation,
		noteID, text string) (*notes.EnhanceResult, error)
}

// Handler обрабатывает HTTP-запросы AI-дополнений заметок.
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
// @Summary Выполнить AI-операцию над заметкой
// @Description Проверяет тариф и месячную квоту, вызывает AI-провайдера и возвращает результат.
// @Tags Notes
// @Accept  json
// @Produce  json
// @Param request body Request true "Операция и текст заметки"
// @Success 200 {object} map[string]any "Результат операции"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 402 {object} response.ErrorResponse "Возможность недоступна на тарифе"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 429 {object} response.ErrorResponse "Квота исчерпана"
// @Failure 502 {object} response.ErrorResponse "Ошибка AI-провайдера"
// @Router /notes/enhance [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.notes.enhance"

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

	result, err := h.service.Enhance(r.Context(), userUID, models.Operation(req.Operation),
		req.NoteID, req.Text)
	if err != nil {
		if qe, ok := errs.IsQuotaExceeded(err); ok {
			log.Info("operation quota exceeded",
				slog.Int("used", qe.Used), slog.Int("limit", qe.Limit))
			w.WriteHeader(http.StatusTooManyRequests)
			render.JSON(w, r, response.Error(qe.Error()))
			return
		}
		switch {
		case errors.Is(err, errs.ErrFeatureUnavailable):
			log.Info("feature unavailable on current plan")
			w.WriteHeader(http.StatusPaymentRequired)
			render.JSON(w, r, response.Error("upgrade required"))
		case errors.Is(err, errs.ErrValidation):
			log.Error("invalid enhance request", sl.Err(err))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("unknown operation"))
		case errors.Is(err, errs.ErrProviderDisabled):
			log.Error("ai provider disabled", sl.Err(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("ai features are not available"))
		case errors.Is(err, errs.ErrUpstream):
			log.Error("ai provider call failed", sl.Err(err))
			w.WriteHeader(http.StatusBadGateway)
			render.JSON(w, r, response.Error("ai provider is unavailable"))
		default:
			log.Error("failed to enhance note", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not enhance note"))
		}
		return
	}

	log.Info("note enhanced",
		slog.String("operation", req.Operation),
		slog.Int("tokens_used", result.TokensUsed))
	render.JSON(w, r, response.OKWithData(result))
}
