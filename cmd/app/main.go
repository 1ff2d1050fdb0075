package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/avelin/airseat/api"
	"github.com/avelin/airseat/config"
	"github.com/avelin/airseat/internal/bootstrap"
	"github.com/avelin/airseat/internal/cache"
	"github.com/avelin/airseat/internal/domain"
	"github.com/avelin/airseat/internal/inventory"
	"github.com/avelin/airseat/internal/kafka"
	"github.com/avelin/airseat/internal/ledger"
	"github.com/avelin/airseat/internal/otp"
	"github.com/avelin/airseat/internal/pkg/logger"
	"github.com/avelin/airseat/internal/repository"
	bookingsvc "github.com/avelin/airseat/internal/service/booking"
	flightsvc "github.com/avelin/airseat/internal/service/flights"
	"github.com/avelin/airseat/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
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

	zlog := logger.New(cfg.Env)
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inv := inventory.New(cfg.Booking.HoldTTL())
	for _, fc := range cfg.Flights {
		flight := domain.Flight{
			ID:          fc.ID,
			FromAirport: fc.FromAirport,
			ToAirport:   fc.ToAirport,
			Rows:        fc.Rows,
			SeatsPerRow: fc.SeatsPerRow,
		}
		if err := inv.AddFlight(flight); err != nil {
			zlog.Fatal("seed flight", zap.String("flight_id", fc.ID), zap.Error(err))
		}
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()
	notifier := kafka.NewNotifier(producer, cfg.Kafka.NotificationsTopic)

	redisCache := cache.NewRedisCache(cfg.Redis, cfg.Booking.CacheTTL())

	var opts []bookingsvc.ServiceOption
	if d := cfg.Booking.AttemptRetention(); d > 0 {
		opts = append(opts, bookingsvc.WithRetention(d))
	}

	var archiveReader api.ArchiveReader
	if cfg.Database.Enabled() {
		pool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			zlog.Fatal("connect postgres", zap.Error(err))
		}
		defer pool.Close()
		archive := repository.NewBookingArchive(pool)
		archiveReader = archive
		opts = append(opts, bookingsvc.WithArchiver(archive))
	}

	bookingLedger := ledger.New()
	bookingService := bookingsvc.NewService(
		inv,
		otp.NewVerifier(cfg.Booking.CodeTTL()),
		bookingLedger,
		notifier,
		notifier,
		zlog,
		opts...,
	)
	flightService := flightsvc.NewFlightService(inv, redisCache)

	sweeper := worker.NewSweeper(cfg.Worker.SweepInterval(), zlog,
		worker.Target{Name: "seat_holds", Sweep: inv.SweepExpired},
		worker.Target{Name: "attempts", Sweep: bookingService.PruneTerminal},
	)
	go sweeper.Start(ctx)

	flightHandler := api.NewFlightHandler(flightService)
	bookingHandler := api.NewBookingHandler(bookingService, bookingLedger, archiveReader)

	zlog.Info("starting server", zap.String("address", cfg.HTTP.Address))
	if err := bootstrap.Run(ctx, cfg, flightHandler, bookingHandler); err != nil {
		zlog.Fatal("server error", zap.Error(err))
	}
}
