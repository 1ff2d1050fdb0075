package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env      string         `yaml:"env"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Booking  BookingConfig  `yaml:"booking"`
	Worker   WorkerConfig   `yaml:"worker"`
	Flights  []FlightConfig `yaml:"flights"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// Enabled reports whether a booking archive database is configured at all.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type BookingConfig struct {
	HoldTTLMinutes          int `yaml:"hold_ttl_minutes"`
	CodeTTLMinutes          int `yaml:"code_ttl_minutes"`
	CacheTTLSeconds         int `yaml:"cache_ttl_seconds"`
	AttemptRetentionMinutes int `yaml:"attempt_retention_minutes"`
}

func (b BookingConfig) HoldTTL() time.Duration {
	return time.Duration(b.HoldTTLMinutes) * time.Minute
}

func (b BookingConfig) CodeTTL() time.Duration {
	return time.Duration(b.CodeTTLMinutes) * time.Minute
}

func (b BookingConfig) CacheTTL() time.Duration {
	return time.Duration(b.CacheTTLSeconds) * time.Second
}

// AttemptRetention is how long finished attempts stay readable before the
// sweep drops them. Zero means the service default.
func (b BookingConfig) AttemptRetention() time.Duration {
	return time.Duration(b.AttemptRetentionMinutes) * time.Minute
}

type WorkerConfig struct {
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
}

func (w WorkerConfig) SweepInterval() time.Duration {
	return time.Duration(w.SweepIntervalSeconds) * time.Second
}

type FlightConfig struct {
	ID          string `yaml:"id"`
	FromAirport string `yaml:"from_airport"`
	ToAirport   string `yaml:"to_airport"`
	Rows        int    `yaml:"rows"`
	SeatsPerRow int    `yaml:"seats_per_row"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}
