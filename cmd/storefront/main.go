package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/pdcisneros1/edesa-b2b-sub000/internal/repository"
	"github.com/pdcisneros1/edesa-b2b-sub000/internal/service"
	transport "github.com/pdcisneros1/edesa-b2b-sub000/internal/transport/http"
	"github.com/pdcisneros1/edesa-b2b-sub000/internal/transport/http/handler"
	"github.com/pdcisneros1/edesa-b2b-sub000/pkg/config"
	"github.com/pdcisneros1/edesa-b2b-sub000/pkg/db"
	"github.com/pdcisneros1/edesa-b2b-sub000/pkg/kafka"
	"github.com/pdcisneros1/edesa-b2b-sub000/pkg/outbox"
	"github.com/pdcisneros1/edesa-b2b-sub000/pkg/tracing"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	tp, err := tracing.InitTracer(ctx, "storefront")
	if err != nil {
		log.Fatalf("error init tracer: %v", err)
	}

	logger, err := config.NewLogger(config.LoggerConfig{
		Level: config.EnvOr("LOG_LEVEL", "info"),
		Env:   cfg.Env,
	})
	if err != nil {
		log.Fatalf("error creating logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("storefront service starting")

	pool, err := db.NewPostgresPool(cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("error creating postgres pool: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})

	taxRate, err := decimal.NewFromString(cfg.Checkout.TaxRate)
	if err != nil {
		log.Fatalf("invalid tax rate %q: %v", cfg.Checkout.TaxRate, err)
	}

	productRepository := repository.NewProductRepository(pool, logger)
	promotionRepository := repository.NewPromotionRepository(pool, logger)
	orderRepository := repository.NewOrderRepository(pool, logger)
	cartRepository := repository.NewCartRepository(pool, logger)
	outboxRepository := outbox.NewRepository(pool, logger)

	checkoutService := service.NewCheckoutService(
		pool,
		logger,
		productRepository,
		promotionRepository,
		orderRepository,
		cartRepository,
		outboxRepository,
		taxRate,
		cfg.Checkout.OrderPrefix,
	)
	promotionService := service.NewPromotionService(pool, logger, promotionRepository, productRepository)
	cartNotifier := service.NewCartNotifier()
	cartService := service.NewCartService(cartRepository, cartNotifier, logger)
	catalogService := service.NewCachedCatalogService(
		service.NewCatalogService(productRepository, promotionRepository, logger),
		rdb,
		logger,
	)

	kafkaProducer, err := kafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.Fatalf("error creating kafka producer: %v", err)
	}

	outboxProcessor := outbox.NewProcessor(pool, outboxRepository, kafkaProducer, logger)
	go outboxProcessor.Start(ctx)

	app := fiber.New()
	app.Use(otelfiber.Middleware())

	transport.RegisterRoutes(app, &transport.Handlers{
		Checkout:  handler.NewCheckoutHandler(checkoutService, logger),
		Promotion: handler.NewPromotionHandler(promotionService, logger),
		Cart:      handler.NewCartHandler(cartService, logger),
		Catalog:   handler.NewCatalogHandler(catalogService, logger),
	}, transport.LimiterConfig{
		Max:        cfg.Limiter.Max,
		Expiration: cfg.Limiter.Expiration,
	})

	go func() {
		logger.Info("HTTP server listening on " + cfg.HTTP.Port)
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Fatalf("error listening on %s: %v", cfg.HTTP.Port, err)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("error shutting down HTTP server: " + err.Error())
	}

	if err := kafkaProducer.Close(); err != nil {
		logger.Warn("error closing kafka producer: " + err.Error())
	}

	pool.Close()

	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping telemetry: " + err.Error())
	}
}
