package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/domestiq/bookingcore/api"
	"github.com/domestiq/bookingcore/config"
	"github.com/domestiq/bookingcore/internal/auth"
	_ "github.com/domestiq/bookingcore/internal/docs"
	"github.com/domestiq/bookingcore/internal/service/booking"
	"github.com/domestiq/bookingcore/internal/service/notifications"
	"github.com/domestiq/bookingcore/internal/service/payments"
	"github.com/domestiq/bookingcore/internal/service/statement"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Services are the use cases the HTTP API exposes.
type Services struct {
	Bookings      booking.BookingUseCase
	Payments      payments.PaymentUseCase
	Notifications notifications.NotificationUseCase
	Statements    statement.StatementUseCase
	// Health reports whether the backing stores answer.
	Health func(ctx context.Context) error
}

// Run serves the HTTP API and blocks until ctx is canceled or the server fails.
func Run(ctx context.Context, cfg *config.Config, svc Services) error {
	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           NewRouter(cfg, svc),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTP.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func NewRouter(cfg *config.Config, svc Services) *gin.Engine {
	r := gin.New()
	r.Use(api.RequestID(), api.Logger(), gin.Recovery(), cors.New(corsConfig(cfg.HTTP.AllowedOrigins)))
	if err := r.SetTrustedProxies(nil); err != nil {
		log.Printf("WARNING: failed to set trusted proxies: %v", err)
	}

	r.GET("/healthz", func(c *gin.Context) {
		if svc.Health != nil {
			if err := svc.Health(c.Request.Context()); err != nil {
				log.Printf("WARNING: health check: %v", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", gin.WrapH(httpSwagger.WrapHandler))

	paymentHandler := api.NewPaymentHandler(svc.Payments)
	paymentHandler.RegisterPublic(r)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	v1 := r.Group("/api/v1", api.JWTAuth(tokens))

	bookingHandler := api.NewBookingHandler(svc.Bookings)
	bookings := v1.Group("/bookings")
	bookingHandler.Register(bookings)
	paymentHandler.Register(bookings)
	bookingHandler.RegisterQuote(v1.Group("/fees"))

	api.NewNotificationHandler(svc.Notifications).Register(v1.Group("/notifications"))
	api.NewStatementHandler(svc.Statements).Register(v1.Group("/statements"))

	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	c.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	c.MaxAge = 12 * time.Hour
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	return c
}
