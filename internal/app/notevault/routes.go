// Package notevault предоставляет маршруты основного приложения.
package notevault

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/notevault/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/notevault/internal/http/handlers/auth/register"
	billingcheckout "github.com/magabrotheeeer/notevault/internal/http/handlers/billing/checkout"
	"github.com/magabrotheeeer/notevault/internal/http/handlers/billing/guestcheckout"
	"github.com/magabrotheeeer/notevault/internal/http/handlers/billing/info"
	"github.com/magabrotheeeer/notevault/internal/http/handlers/billing/portal"
	"github.com/magabrotheeeer/notevault/internal/http/handlers/billing/webhook"
	"github.com/magabrotheeeer/notevault/internal/http/handlers/health"
	"github.com/magabrotheeeer/notevault/internal/http/handlers/notes/enhance"
	"github.com/magabrotheeeer/notevault/internal/http/middlewarectx"
	jwtlib "github.com/magabrotheeeer/notevault/internal/lib/jwt"
	authservice "github.com/magabrotheeeer/notevault/internal/services/auth"
	billingservice "github.com/magabrotheeeer/notevault/internal/services/billing"
	checkoutservice "github.com/magabrotheeeer/notevault/internal/services/checkout"
	notesservice "github.com/magabrotheeeer/notevault/internal/services/notes"
	"github.com/magabrotheeeer/notevault/internal/storage/repository"
)

// Services — бизнес-сервисы, которыми пользуются HTTP-обработчики.
type Services struct {
	Auth     *authservice.Service
	Billing  *billingservice.Service
	Checkout *checkoutservice.Service
	Notes    *notesservice.Service
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, jwtMaker jwtlib.Maker,
	db *repository.Storage, services *Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	limiter := rate.NewLimiter(10, 20)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, services.Auth).ServeHTTP)
		r.Post("/login", login.New(logger, services.Auth).ServeHTTP)
		r.Post("/billing/checkout/guest", guestcheckout.New(logger, services.Checkout).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(limiter, logger))
			r.Post("/billing/checkout", billingcheckout.New(logger, services.Checkout).ServeHTTP)
			r.Post("/billing/portal", portal.New(logger, services.Checkout).ServeHTTP)
			r.Get("/billing", info.New(logger, services.Checkout).ServeHTTP)
			r.Post("/notes/enhance", enhance.New(logger, services.Notes).ServeHTTP)
		})

		// Webhook endpoint (без аутентификации)
		r.Post("/billing/webhook", webhook.New(logger, services.Billing).ServeHTTP)
	})

	r.Get("/health", health.New(logger, db).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
