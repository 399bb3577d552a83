package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/ecommerce-checkout/internal/domain"
	"github.com/jcmexdev/ecommerce-checkout/internal/httpx"
	"github.com/jcmexdev/ecommerce-checkout/internal/httpx/middlewares"
	"github.com/jcmexdev/ecommerce-checkout/internal/paypal"
	"github.com/jcmexdev/ecommerce-checkout/internal/pkg/cache"
	"github.com/jcmexdev/ecommerce-checkout/internal/pkg/telemetry"
	"github.com/jcmexdev/ecommerce-checkout/internal/pricing"
	"github.com/jcmexdev/ecommerce-checkout/internal/settlement"
	"github.com/jcmexdev/ecommerce-checkout/internal/store/sqlite"
)

func main() {
	telemetry.InitLogger(getEnv("OTEL_SERVICE_NAME", "checkout-service"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, getEnv("OTEL_SERVICE_NAME", "checkout-service"))
	if err != nil {
		slog.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	store, err := sqlite.Open(getEnv("DB_PATH", "./data/checkout.db"))
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if getEnv("SEED_DEMO_CATALOG", "") == "true" {
		if err := seedCatalog(ctx, store); err != nil {
			slog.Error("failed to seed demo catalog", "error", err)
			os.Exit(1)
		}
	}

	policy, err := policyFromEnv()
	if err != nil {
		slog.Error("invalid pricing policy", "error", err)
		os.Exit(1)
	}

	oracle := paypal.NewClient(
		getEnv("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
		os.Getenv("PAYPAL_CLIENT_ID"),
		os.Getenv("PAYPAL_CLIENT_SECRET"),
		10*time.Second,
	)

	pricer := pricing.NewPricer(store, store, policy)
	settler := settlement.NewService(store, oracle, 10*time.Second)

	redisCache := cache.NewRedisCache(getEnv("REDIS_ADDR", "redis-cache:6379"), "checkout")
	idem := middlewares.Idempotency(redisCache, 24*time.Hour)

	handler := httpx.NewHandler(pricer, settler, store)
	router := otelhttp.NewHandler(httpx.NewRouter(handler, idem), "checkout")

	addr := ":" + getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		slog.Info("checkout service running", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
}

// policyFromEnv builds the tax/shipping policy. Rates live in configuration,
// never in code, so test doubles and per-environment overrides stay cheap.
func policyFromEnv() (pricing.Policy, error) {
	taxRate, err := decimal.NewFromString(getEnv("TAX_RATE", "0.15"))
	if err != nil {
		return pricing.Policy{}, err
	}
	shippingFee, err := domain.ParseMoney(getEnv("SHIPPING_FEE", "10.00"))
	if err != nil {
		return pricing.Policy{}, err
	}
	freeAt, err := domain.ParseMoney(getEnv("FREE_SHIPPING_THRESHOLD", "100.00"))
	if err != nil {
		return pricing.Policy{}, err
	}
	return pricing.Policy{
		TaxRate:        taxRate,
		ShippingFee:    shippingFee,
		FreeShippingAt: freeAt,
	}, nil
}

// seedCatalog loads a handful of demo products for local development.
func seedCatalog(ctx context.Context, store *sqlite.Store) error {
	products := []domain.CatalogProduct{
		{ID: "prod_1", Name: "Airpods Wireless Bluetooth Headphones", Price: domain.MustMoney("89.99")},
		{ID: "prod_2", Name: "iPhone 13 Pro 256GB Memory", Price: domain.MustMoney("599.99")},
		{ID: "prod_3", Name: "Logitech G-Series Gaming Mouse", Price: domain.MustMoney("49.99")},
	}
	for _, p := range products {
		if err := store.UpsertProduct(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
