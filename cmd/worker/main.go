package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/domestiq/bookingcore/config"
	"github.com/domestiq/bookingcore/internal/cache"
	"github.com/domestiq/bookingcore/internal/delivery"
	"github.com/domestiq/bookingcore/internal/domain"
	"github.com/domestiq/bookingcore/internal/kafka"
	"github.com/domestiq/bookingcore/internal/ledger"
	"github.com/domestiq/bookingcore/internal/metrics"
	"github.com/domestiq/bookingcore/internal/paystack"
	"github.com/domestiq/bookingcore/internal/repository"
	"github.com/domestiq/bookingcore/internal/service/booking"
	"github.com/domestiq/bookingcore/internal/service/notifications"
	"github.com/domestiq/bookingcore/internal/service/payments"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()
	redisCache := cache.NewRedisCache(cfg.Redis, cfg.Redis.UnreadTTL())
	defer redisCache.Close()

	fees, err := ledger.NewFeePolicy(cfg.Fees.PlatformFeePercent, domain.Cents(cfg.Fees.MinFeeCents), domain.Cents(cfg.Fees.MaxFeeCents))
	if err != nil {
		log.Fatalf("fee policy: %v", err)
	}

	bookingRepo := repository.NewBookingRepository(pool)
	transactionRepo := repository.NewTransactionRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	emitter := notifications.NewEmitter(cfg.HTTP.PublicURL)

	bookingService := booking.NewBookingService(bookingRepo, transactionRepo, emitter, fees, producer, cfg.Kafka.BookingEventsTopic)
	paymentService := payments.NewPaymentService(
		bookingRepo,
		transactionRepo,
		paystack.NewClient(cfg.Payments.PaystackBaseURL, cfg.Payments.PaystackSecretKey, cfg.Payments.Timeout()),
		redisCache,
		bookingService,
		emitter,
	)
	relay := notifications.NewRelay(notificationRepo, producer, redisCache, cfg.Kafka.NotificationsTopic, cfg.Worker.OutboxBatchSize)

	metrics.Register()
	if cfg.Worker.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.Worker.MetricsAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("WARNING: metrics server: %v", err)
			}
		}()
		defer srv.Close()
	}

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()

	notifier := delivery.NewNotifier(os.Stdout)

	go func() {
		for {
			err := consumer.Consume(ctx, notifier.Handle)
			if err == nil {
				return
			}
			log.Printf("WARNING: notifications consumer: %v, restarting", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}()

	outboxTicker := time.NewTicker(time.Duration(cfg.Worker.OutboxSweepSeconds) * time.Second)
	defer outboxTicker.Stop()
	refundTicker := time.NewTicker(time.Duration(cfg.Worker.RefundSweepMinutes) * time.Minute)
	defer refundTicker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-outboxTicker.C:
			relayOutbox(ctx, relay, cfg.Worker.OutboxBatchSize)
		case <-refundTicker.C:
			n, err := paymentService.ProcessRefunds(ctx)
			if err != nil {
				log.Printf("refund sweep error: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("issued %d refunds", n)
			}
		case s := <-sig:
			log.Printf("received signal %v, shutting down", s)
			return
		}
	}
}

// relayOutbox drains the outbox in batches until a short batch or an error.
func relayOutbox(ctx context.Context, relay *notifications.Relay, batchSize int) {
	for {
		n, err := relay.RelayOnce(ctx)
		if err != nil {
			log.Printf("relay notifications error: %v", err)
			return
		}
		metrics.AddNotificationsRelayed(n)
		if n == 0 || n < batchSize {
			return
		}
	}
}
