package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/lotte-kokodo/order-service/internal/api"
	"github.com/lotte-kokodo/order-service/internal/domain/cart"
	"github.com/lotte-kokodo/order-service/internal/domain/order"
	"github.com/lotte-kokodo/order-service/internal/domain/pricing"
	"github.com/lotte-kokodo/order-service/internal/events"
	"github.com/lotte-kokodo/order-service/internal/gateway"
	"github.com/lotte-kokodo/order-service/internal/storage/postgres"
	"github.com/lotte-kokodo/order-service/pkg/health"
	"github.com/lotte-kokodo/order-service/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, _ *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// RabbitMQ connection + event publisher.
	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return errors.Wrap(err, "dial amqp")
	}
	defer conn.Close()

	publisher, err := events.NewPublisher(conn, lg.Named("events"))
	if err != nil {
		return errors.Wrap(err, "create event publisher")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddReadinessCheck("amqp", 5*time.Second, func(context.Context) error {
		if conn.IsClosed() {
			return errors.New("amqp connection closed")
		}
		return nil
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Upstream gateways, each call breaker-guarded.
	httpClient := gateway.NewHTTPClient(cfg.Upstream.Timeout)
	breakerCfg := cfg.Breaker.gateway()
	catalog := gateway.NewCatalogClient(cfg.Upstream.CatalogURL, httpClient, breakerCfg, lg.Named("catalog"))
	identity := gateway.NewIdentityClient(cfg.Upstream.MemberURL, httpClient, breakerCfg, lg.Named("member"))
	promotion := gateway.NewPromotionClient(cfg.Upstream.PromotionURL, httpClient, breakerCfg, lg.Named("promotion"))

	// Repositories.
	orderRepo := postgres.NewOrderRepository(pool)
	cartRepo := postgres.NewCartRepository(pool)

	// Domain services.
	calc := pricing.NewCalculator(cfg.Pricing.FixedDiscountUnit, cfg.Pricing.FixedCouponAmount)
	orderService := order.NewService(calc, catalog, identity, promotion, orderRepo, cartRepo, publisher)
	queryService := order.NewQueryService(orderRepo, catalog)
	cartService := cart.NewService(cartRepo, catalog)

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	api.NewHandler(orderService, queryService, cartService).Routes(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-Member-ID", "Idempotency-Key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
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
		// Let in-flight event publishes finish before the connection drops.
		publisher.Close()
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
