// Package app wires the storefront api-server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/delivery"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/stats"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/storage/cache"
	"github.com/xenking/storefront/internal/storage/memory"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/internal/storage/redis"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

const serviceName = "storefront-api"

// Run creates all dependencies, serves HTTP until ctx is done and then shuts
// down gracefully.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.Register(health.Readiness, health.Check{Name: "postgres", Timeout: 5 * time.Second, Func: health.PingCheck(pool)})
	healthSvc.Register(health.Liveness, health.Check{Name: "goroutines", Func: health.GoroutineCountCheck(10000)})

	var idem order.IdempotencyStore = memory.NewIdempotencyStore()
	if cfg.RedisURL != "" {
		client, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = client.Close() }()

		idem = redis.NewIdempotencyStore(client, cfg.IdempotencyTTL)
		healthSvc.Register(health.Readiness, health.Check{Name: "redis", Timeout: 2 * time.Second, Func: redis.PingCheck(client)})
	} else {
		lg.Warn("Redis is not configured, idempotency keys are kept in process")
	}

	rates, err := delivery.LoadTable(cfg.DeliveryRatesFile)
	if err != nil {
		return errors.Wrap(err, "load delivery rates")
	}
	lg.Info("Delivery rates loaded", zap.Int("regions", len(rates.Regions())))

	var products product.Repository = postgres.NewProductRepository(pool)
	if cfg.CatalogCacheTTL > 0 {
		products = cache.NewProductRepository(products, cfg.CatalogCacheTTL)
	}
	coupons := postgres.NewCouponRepository(pool)
	orders := postgres.NewOrderRepository(pool)

	orderSvc, err := order.NewService(order.Deps{
		Products:    products,
		Validator:   coupon.NewRepoValidator(coupons),
		Redeemer:    coupons,
		Orders:      orders,
		Rates:       rates,
		Tx:          postgres.NewTxManager(pool),
		Idempotency: idem,
		Meter:       m.MeterProvider().Meter("storefront/order"),
	})
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	h := handler.New(handler.Config{
		ImageBaseURL: cfg.ImageBaseURL,
		CouponRateLimit: httpmiddleware.RateLimitConfig{
			Max:    cfg.CouponRateLimit.Max,
			Window: cfg.CouponRateLimit.Window,
		},
	}, handler.Services{
		Products: product.NewService(products),
		Coupons:  coupon.NewService(coupons),
		Orders:   orderSvc,
		Stats:    stats.NewService(orders),
		Regions:  rates,
	})
	sec := handler.NewSecurity(postgres.NewAPIKeyRepository(pool), []byte(cfg.APIKeyPepper))
	api := h.Router(sec,
		httpmiddleware.Instrument(serviceName, m),
		httpmiddleware.LogRequests(),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", api)

	mws := []httpmiddleware.Middleware{
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", handler.APIKeyHeader, handler.IdempotencyKeyHeader, httpmiddleware.RequestIDHeader},
			ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "Retry-After"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
	}
	if cfg.RateLimit.Max > 0 {
		mws = append(mws, httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}))
	}
	mws = append(mws,
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.RequestID(),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           httpmiddleware.Wrap(mux, mws...),
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()

		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
