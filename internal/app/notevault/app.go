// Package notevault собирает приложение биллинга и квот сервиса заметок:
// хранилище, кеш, внешних провайдеров, бизнес-сервисы и HTTP-сервер.
package notevault

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/notevault/internal/aiprovider"
	"github.com/magabrotheeeer/notevault/internal/cache"
	"github.com/magabrotheeeer/notevault/internal/config"
	jwtlib "github.com/magabrotheeeer/notevault/internal/lib/jwt"
	"github.com/magabrotheeeer/notevault/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/notevault/internal/migrations"
	"github.com/magabrotheeeer/notevault/internal/notifier"
	"github.com/magabrotheeeer/notevault/internal/paymentprovider"
	authservice "github.com/magabrotheeeer/notevault/internal/services/auth"
	billingservice "github.com/magabrotheeeer/notevault/internal/services/billing"
	checkoutservice "github.com/magabrotheeeer/notevault/internal/services/checkout"
	"github.com/magabrotheeeer/notevault/internal/services/entitlement"
	notesservice "github.com/magabrotheeeer/notevault/internal/services/notes"
	usageservice "github.com/magabrotheeeer/notevault/internal/services/usage"
	"github.com/magabrotheeeer/notevault/internal/storage/repository"
)

type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	// Провайдеры подключаются только при наличии конфигурации; иначе
	// сервисы получают заглушки, отвечающие ошибкой конфигурации.
	var provider paymentprovider.Provider = paymentprovider.NewDisabled()
	if cfg.Stripe.SecretKey != "" {
		provider = paymentprovider.NewClient(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret,
			cfg.Stripe.TimeoutStripe)
	}

	var ai aiprovider.Completer = aiprovider.NewDisabled()
	if cfg.AIProvider.APIKey != "" {
		ai = aiprovider.NewClient(cfg.AIProvider.APIKey, cfg.AIProvider.BaseURL,
			cfg.AIProvider.Model, cfg.AIProvider.TimeoutAI)
	}

	var notify billingservice.Notifier = notifier.NewNoop()
	if cfg.RabbitMQ.URL != "" {
		publisher, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return nil, err
		}
		notify = notifier.NewRabbit(publisher)
	}

	jwtMaker := jwtlib.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	entitlements := entitlement.New(db, cacheRedis, logger)
	billing := billingservice.New(db, provider, entitlements, notify, logger)
	meter := usageservice.New(db, cfg.Quota.Strict, logger)
	notes := notesservice.New(entitlements, meter, ai, cfg.AIProvider.Model, logger)
	checkout := checkoutservice.New(db, provider, cfg.Stripe, logger)
	auth := authservice.New(db, billing, jwtMaker, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, jwtMaker, db, &Services{
		Auth:     auth,
		Billing:  billing,
		Checkout: checkout,
		Notes:    notes,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		_ = a.db.DB.Close()
		return err
	}
}
