package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/creditbridge/creditbridge-api/internal/config"
	"github.com/creditbridge/creditbridge-api/internal/domain/customer"
	"github.com/creditbridge/creditbridge-api/internal/domain/ledger"
	"github.com/creditbridge/creditbridge-api/internal/domain/subscription"
	"github.com/creditbridge/creditbridge-api/internal/domain/webhook"
	"github.com/creditbridge/creditbridge-api/internal/middleware"
	"github.com/creditbridge/creditbridge-api/internal/pkg/database"
	"github.com/creditbridge/creditbridge-api/internal/pkg/logger"
	"github.com/creditbridge/creditbridge-api/internal/pkg/response"
	"github.com/creditbridge/creditbridge-api/internal/pkg/stripeapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Int("catalog_prices", len(cfg.CreditCatalog)).
		Msg("Starting CreditBridge API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	stripeClient := stripeapi.New(cfg.StripeAPIKey)

	// ---------- Repositories ----------
	customerRepo := customer.NewRepository(db)
	ledgerRepo := ledger.NewRepository(db)
	subscriptionRepo := subscription.NewRepository(db)
	auditRepo := webhook.NewAuditRepository(db)

	// ---------- Services ----------
	customerService := customer.NewService(customerRepo)
	ledgerService := ledger.NewService(ledgerRepo)
	subscriptionService := subscription.NewService(subscriptionRepo)
	webhookService := webhook.NewService(
		stripeClient,
		customerService,
		ledgerService,
		subscriptionService,
		auditRepo,
		webhook.NewCatalog(cfg.CreditCatalog),
	)

	// ---------- Handlers ----------
	customerHandler := customer.NewHandler(customerService)
	ledgerHandler := ledger.NewHandler(ledgerService, customerService)
	subscriptionHandler := subscription.NewHandler(subscriptionService, customerService)
	webhookHandler := webhook.NewHandler(webhookService, cfg.StripeWebhookSecret)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Stripe-Signature"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			response.Error(w, http.StatusServiceUnavailable, "UNAVAILABLE", "database unreachable")
			return
		}
		response.OK(w, map[string]string{"status": "ok"})
	})

	r.Mount("/webhooks", webhookHandler.Routes())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/customers/{stripeCustomerID}", func(r chi.Router) {
			r.Get("/", customerHandler.Get)
			r.Get("/transactions", ledgerHandler.ListTransactions)
			r.Get("/subscriptions", subscriptionHandler.ListByCustomer)
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
