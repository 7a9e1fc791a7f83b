package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parkflow/internal/api"
	"parkflow/internal/backend"
	"parkflow/internal/clock"
	"parkflow/internal/config"
	"parkflow/internal/entities"
	"parkflow/internal/livemap"
	"parkflow/internal/repository"
	"parkflow/internal/service"
	"parkflow/internal/session"
	"parkflow/internal/wizard"

	"github.com/gorilla/handlers"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/stripe/stripe-go/v82"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	clk := clock.NewRealClock()

	var store session.Store = session.NewMemoryStore(clk)
	if cfg.DB.URL != "" {
		db, err := sql.Open("postgres", cfg.DB.URL)
		if err != nil {
			logger.Error("failed to open DB", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Error("failed to connect to DB", "err", err)
			os.Exit(1)
		}
		repo := repository.NewSessionRepository(db)
		if err := repo.EnsureSchema(context.Background()); err != nil {
			logger.Error("preparing session store", "err", err)
			os.Exit(1)
		}
		store = repo
	}

	client := backend.NewClient(cfg.Backend.URL, &http.Client{Timeout: cfg.Backend.Timeout}, logger)

	loc, err := time.LoadLocation(cfg.Notify.TimeZone)
	if err != nil {
		logger.Warn("unknown voucher time zone, using default", "tz", cfg.Notify.TimeZone, "err", err)
		loc = nil
	}
	sender := service.NewSenderService(service.SenderConfig{
		FromEmail:  cfg.Notify.FromEmail,
		FromName:   cfg.Notify.FromName,
		FromNumber: cfg.Notify.TwilioFromNumber,
		Location:   loc,
	},
		service.NewSendGridClient(cfg.Notify.SendGridAPIKey),
		service.NewTwilioClient(cfg.Notify.TwilioAccountSID, cfg.Notify.TwilioAuthToken),
		logger,
	)

	var checkout service.CheckoutGateway
	if cfg.Stripe.SecretKey != "" {
		stripe.Key = cfg.Stripe.SecretKey
		checkout = service.NewStripeService()
	}

	reservations := service.NewReservationService(client, store, sender, cfg.Booking.MinDuration, logger)
	payments := service.NewPaymentService(client, store, checkout, service.PaymentConfig{
		PublicURL:   cfg.Server.PublicURL,
		FrontendURL: cfg.Server.FrontendURL,
		Currency:    cfg.Stripe.Currency,
	}, logger)

	wizards := wizard.NewRegistry(wizard.Config{
		MinDuration: cfg.Booking.MinDuration,
		Clock:       clk,
		MapOptions: []livemap.Option{
			livemap.WithAnchor(entities.Point{X: cfg.Map.AnchorX, Y: cfg.Map.AnchorY}),
			livemap.WithSpotPrefix(cfg.Map.SpotPrefix),
		},
	})

	jobs := service.NewJobService(wizards, store, client, clk, cfg.Booking.IdleAfter, logger)
	scheduler := cron.New()
	if err := jobs.Schedule(scheduler, cfg.Jobs.SweepSpec, cfg.Jobs.PollSpec); err != nil {
		logger.Error("scheduling jobs", "err", err)
		os.Exit(1)
	}
	scheduler.Start()

	var webhookHandler *api.StripeWebhookHandler
	if cfg.Stripe.WebhookSecret != "" {
		webhookHandler = api.NewStripeWebhookHandler(cfg.Stripe.WebhookSecret, payments, wizards, logger)
	}
	r := api.NewRouter(api.RouterDeps{
		Wizards:  api.NewWizardHandler(wizards, client, reservations, payments, store, clk, logger),
		Payments: api.NewPaymentHandler(wizards, payments, cfg.Server.FrontendURL, logger),
		Webhook:  webhookHandler,
		Store:    store,
		Clock:    clk,
		Logger:   logger,
	})

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORS.AllowOrigins),
		handlers.AllowedMethods(cfg.CORS.AllowMethods),
		handlers.AllowedHeaders(cfg.CORS.AllowHeaders),
		handlers.AllowCredentials(),
	)
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(corsHandler(r)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Server running", "port", cfg.Server.Port, "backend", cfg.Backend.URL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}
	<-scheduler.Stop().Done()
	sender.Wait()
}
