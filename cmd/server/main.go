package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/cors"

	"github.com/iliyamo/event-ticket-booking/internal/booking"
	"github.com/iliyamo/event-ticket-booking/internal/cache"
	"github.com/iliyamo/event-ticket-booking/internal/config"
	"github.com/iliyamo/event-ticket-booking/internal/database"
	"github.com/iliyamo/event-ticket-booking/internal/handler"
	"github.com/iliyamo/event-ticket-booking/internal/logging"
	"github.com/iliyamo/event-ticket-booking/internal/middleware"
	"github.com/iliyamo/event-ticket-booking/internal/payment"
	"github.com/iliyamo/event-ticket-booking/internal/queue"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
	"github.com/iliyamo/event-ticket-booking/internal/router"
	"github.com/iliyamo/event-ticket-booking/internal/tickets"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.Env)

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = database.Migrate(migrateCtx, db)
	cancel()
	if err != nil {
		log.WithError(err).Fatal("migrate schema")
	}

	rdb := config.NewRedisClient(log) // nil when Redis is unreachable
	if rdb != nil {
		defer rdb.Close()
	}

	store := repository.NewStore(db)

	// Catalogue responses embed seats_left, so seat changes purge them too.
	responses := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, log)
	opts := booking.Options{Logger: log, LimitedPercent: cfg.LimitedPercent, Responses: responses}
	var invalidator handler.CacheInvalidator
	if rdb != nil {
		avail := cache.NewAvailability(rdb, cfg.AvailabilityTTL)
		opts.Cache = avail
		invalidator = avail
	}
	if cfg.AMQPURL != "" {
		pub := queue.NewPublisher(cfg.AMQPURL, log)
		defer pub.Close()
		opts.Publisher = pub
	} else {
		log.Warn("RABBITMQ_URL not set; booking events will not be published")
	}
	svc := booking.NewService(store, opts)

	gateway := payment.NewStripe(payment.StripeConfig{
		SecretKey:      cfg.StripeSecretKey,
		PublishableKey: cfg.StripePublishableKey,
		WebhookSecret:  cfg.StripeWebhookSecret,
		SuccessURL:     cfg.CheckoutSuccessURL,
		CancelURL:      cfg.CheckoutCancelURL,
		Currency:       cfg.Currency,
	})
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = !cfg.IsProd()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLog(log))
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log))

	events := &handler.EventHandler{Events: store.Events, Availability: svc, Responses: responses, Log: log}
	if invalidator != nil {
		events.Cache = invalidator
	}
	bookings := &handler.BookingHandler{Svc: svc, Log: log}
	payments := &handler.PaymentHandler{Svc: svc, Gateway: gateway, Log: log}
	issuer := tickets.NewIssuer(cfg.TicketSigningSecret)
	ticketsH := &handler.TicketHandler{
		Svc: svc, Events: store.Events, Users: store.Users,
		Renderer: issuer, Verifier: issuer, Log: log,
	}

	router.RegisterRoutes(e, &handler.Health{DB: db, Redis: rdb})
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, store.Users, log), cfg.JWTSecret)
	router.RegisterPublic(e, events, payments, responses.Middleware())
	router.RegisterUser(e, bookings, payments, ticketsH, cfg.JWTSecret)
	router.RegisterAdmin(e, bookings, events, ticketsH, cfg.JWTSecret)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Stripe-Signature"},
		ExposedHeaders:   []string{"X-Cache", "X-RateLimit-Limit", "X-RateLimit-Remaining", echo.HeaderXRequestID},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(e),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if cfg.AMQPURL != "" {
		consumer := &queue.AuditConsumer{URL: cfg.AMQPURL, Log: log}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("audit consumer stopped")
			}
		}()
	}
	if cfg.PendingBookingTTL > 0 {
		go svc.RunSweeper(ctx, cfg.SweepInterval, cfg.PendingBookingTTL)
	}

	go func() {
		log.WithField("addr", srv.Addr).WithField("env", cfg.Env).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown")
	}
}
