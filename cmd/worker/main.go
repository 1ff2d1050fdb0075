package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/avelin/airseat/config"
	"github.com/avelin/airseat/internal/email"
	"github.com/avelin/airseat/internal/kafka"
	"github.com/avelin/airseat/internal/pkg/logger"
	kafkaGo "github.com/segmentio/kafka-go"
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

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()

	sender := email.NewSender(zlog)

	zlog.Info("notification worker started",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.NotificationsTopic))

	err = consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
		var event kafka.NotificationEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			zlog.Error("decode notification event", zap.Error(err))
			return nil
		}
		if err := sender.Deliver(ctx, event); err != nil {
			zlog.Error("deliver notification",
				zap.String("type", event.Type), zap.Error(err))
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		zlog.Error("consumer stopped", zap.Error(err))
	}

	zlog.Info("notification worker stopped")
}
