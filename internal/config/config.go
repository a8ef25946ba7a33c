// Package config loads settings from the environment. Both binaries
// call godotenv first so a local .env file can supply these values in
// development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env string

	// Simulator side.
	Port      string
	JWTSecret string
	TokenTTL  time.Duration
	RedisAddr string
	RedisPass string
	RedisDB   int

	// Client side.
	ServerURL      string
	AuthToken      string
	RequestTimeout time.Duration

	// Game configuration shared by both sides.
	HouseEdgePercent float64
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:              getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPass:        os.Getenv("REDIS_PASSWORD"),
		ServerURL:        getEnv("SERVER_URL", "ws://localhost:8080/ws"),
		AuthToken:        os.Getenv("AUTH_TOKEN"),
		RequestTimeout:   10 * time.Second,
		TokenTTL:         24 * time.Hour,
		HouseEdgePercent: 2,
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = db
	}

	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}

	if v := os.Getenv("HOUSE_EDGE_PERCENT"); v != "" {
		edge, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid HOUSE_EDGE_PERCENT: %w", err)
		}
		if edge < 0 || edge > 100 {
			return nil, fmt.Errorf("HOUSE_EDGE_PERCENT must be in [0, 100]")
		}
		cfg.HouseEdgePercent = edge
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
