package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avelin/airseat/config"
	"github.com/avelin/airseat/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisCache holds short-lived presentation copies of the flight list and
// seat snapshots. It never participates in seat locking.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(cfg config.RedisConfig, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		ttl:    ttl,
	}
}

func (c *RedisCache) GetFlights(ctx context.Context) ([]domain.Flight, error) {
	data, err := c.client.Get(ctx, flightsKey()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var flights []domain.Flight
	if err := json.Unmarshal(data, &flights); err != nil {
		return nil, err
	}
	return flights, nil
}

func (c *RedisCache) SetFlights(ctx context.Context, flights []domain.Flight) error {
	payload, err := json.Marshal(flights)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, flightsKey(), payload, c.ttl).Err()
}

func (c *RedisCache) GetSeatMap(ctx context.Context, flightID string) ([]domain.SeatView, error) {
	data, err := c.client.Get(ctx, seatMapKey(flightID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var seats []domain.SeatView
	if err := json.Unmarshal(data, &seats); err != nil {
		return nil, err
	}
	return seats, nil
}

func (c *RedisCache) SetSeatMap(ctx context.Context, flightID string, seats []domain.SeatView) error {
	payload, err := json.Marshal(seats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, seatMapKey(flightID), payload, c.ttl).Err()
}

func flightsKey() string {
	return "cache:flights"
}

func seatMapKey(flightID string) string {
	return fmt.Sprintf("cache:seatmap:%s", flightID)
}
