package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/fundshop/pkg/authclient"
	"github.com/Skotchmaster/fundshop/pkg/config"
	pkgdb "github.com/Skotchmaster/fundshop/pkg/db"
	"github.com/Skotchmaster/fundshop/pkg/logging"
	middleware "github.com/Skotchmaster/fundshop/pkg/middleware/auth"
	loggingmw "github.com/Skotchmaster/fundshop/pkg/middleware/logging"
	"github.com/Skotchmaster/fundshop/pkg/mykafka"
	"github.com/Skotchmaster/fundshop/pkg/paymentclient"

	"github.com/Skotchmaster/fundshop/services/commerce/internal/httpserver"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/repo"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/service"
)

func main() {
	if err := godotenv.Load("services/commerce/.env"); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")
	config.MustHTTPURL(cfg.Gateway.BaseURL, "GATEWAY_BASE_URL")
	config.MustNonEmpty(cfg.Gateway.APISecret, "GATEWAY_API_SECRET")

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		cancel()
		log.Fatalf("db open: %v", err)
	}
	r := &repo.GormRepo{DB: db}
	err = r.Migrate(ctx)
	cancel()
	if err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	var events service.Publisher = mykafka.LogProducer{L: logger}
	var producer *mykafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Fatalf("kafka producer: %v", err)
		}
		events = producer
	} else {
		logger.Warn("kafka_disabled", "reason", "KAFKA_BROKERS is empty")
	}

	gateway := paymentclient.NewClient(paymentclient.Options{
		BaseURL:   cfg.Gateway.BaseURL,
		APISecret: cfg.Gateway.APISecret,
		StoreID:   cfg.Gateway.StoreID,
		Timeout:   cfg.Gateway.Timeout,
	})

	var refresher middleware.Refresher
	if cfg.AuthHTTPURL != "" {
		config.MustHTTPURL(cfg.AuthHTTPURL, "AUTH_URL")
		refresher = authclient.NewClient(cfg.AuthHTTPURL)
	}

	funding := &service.FundingService{Repo: r}
	settlement := &service.SettlementService{Repo: r, Gateway: gateway, Events: events, Currency: cfg.Currency}

	e := echo.New()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.CORS())

	httpserver.Register(e, &httpserver.Deps{
		CatalogHandler: &httpserver.CatalogHTTP{Svc: &service.CatalogService{Repo: r}, Funding: funding},
		CartHandler:    &httpserver.CartHTTP{Svc: &service.CartService{Repo: r, Events: events}},
		OrderHandler: &httpserver.OrderHTTP{Svc: &service.OrderService{
			Repo:        r,
			Gateway:     gateway,
			Events:      events,
			GracePeriod: cfg.BillingGracePeriod,
			Currency:    cfg.Currency,
		}},
		PaymentHandler: &httpserver.PaymentHTTP{Settlement: settlement},
		AdminHandler: &httpserver.AdminHTTP{
			Gate:       &service.BillingGateService{Repo: r, Funding: funding},
			Settlement: settlement,
		},
		JWTSecret:  cfg.JWTAccessSecret,
		AuthClient: refresher,
		DB:         db,
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout(),
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)

	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Warn("kafka_close_error", "error", err)
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info("stopped")
}
