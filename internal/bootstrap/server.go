package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avelin/airseat/api"
	"github.com/avelin/airseat/config"
	"github.com/gin-gonic/gin"
)

// Run starts the HTTP server and blocks until the context is cancelled or
// the server fails.
func Run(ctx context.Context, cfg *config.Config, flightHandler *api.FlightHandler, bookingHandler *api.BookingHandler) error {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	flightHandler.Register(router.Group("/flights"))
	bookingHandler.RegisterAttempts(router.Group("/attempts"))
	bookingHandler.RegisterBookings(router.Group("/bookings"))

	srv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}
