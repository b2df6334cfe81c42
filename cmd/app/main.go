package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/domestiq/bookingcore/config"
	"github.com/domestiq/bookingcore/internal/bootstrap"
	"github.com/domestiq/bookingcore/internal/cache"
	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/domestiq/bookingcore/internal/kafka"
	"github.com/domestiq/bookingcore/internal/ledger"
	"github.com/domestiq/bookingcore/internal/metrics"
	"github.com/domestiq/bookingcore/internal/obs"
	"github.com/domestiq/bookingcore/internal/paystack"
	"github.com/domestiq/bookingcore/internal/repository"
	"github.com/domestiq/bookingcore/internal/service/booking"
	"github.com/domestiq/bookingcore/internal/service/notifications"
	"github.com/domestiq/bookingcore/internal/service/payments"
	"github.com/domestiq/bookingcore/internal/service/statement"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(cfg.Tracing)
	if err != nil {
		log.Fatalf("init tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Printf("WARNING: tracer shutdown: %v", err)
		}
	}()
	metrics.Register()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, cfg.Redis.UnreadTTL())
	defer redisCache.Close()
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	fees, err := ledger.NewFeePolicy(cfg.Fees.PlatformFeePercent, domain.Cents(cfg.Fees.MinFeeCents), domain.Cents(cfg.Fees.MaxFeeCents))
	if err != nil {
		log.Fatalf("fee policy: %v", err)
	}

	bookingRepo := repository.NewBookingRepository(pool)
	transactionRepo := repository.NewTransactionRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	emitter := notifications.NewEmitter(cfg.HTTP.PublicURL)

	bookingService := booking.NewBookingService(
		bookingRepo,
		transactionRepo,
		emitter,
		fees,
		producer,
		cfg.Kafka.BookingEventsTopic,
	)
	paymentService := payments.NewPaymentService(
		bookingRepo,
		transactionRepo,
		paystack.NewClient(cfg.Payments.PaystackBaseURL, cfg.Payments.PaystackSecretKey, cfg.Payments.Timeout()),
		redisCache,
		bookingService,
		emitter,
		payments.WithCallbackURL(cfg.Payments.CallbackURL),
		payments.WithDedupTTL(cfg.Payments.WebhookDedupTTL()),
	)

	err = bootstrap.Run(ctx, cfg, bootstrap.Services{
		Bookings:      bookingService,
		Payments:      paymentService,
		Notifications: notifications.NewNotificationService(notificationRepo, redisCache),
		Statements:    statement.NewStatementService(transactionRepo),
		Health: func(ctx context.Context) error {
			return errors.Join(pool.Ping(ctx), redisCache.Ping(ctx), producer.CheckConnection(ctx))
		},
	})
	if err != nil {
		log.Fatalf("server error: %v", err)
	}
	log.Println("Server stopped")
}
