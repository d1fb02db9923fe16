package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Stripe   StripeConfig
	Auth     AuthConfig
	Booking  BookingConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StripeConfig struct {
	SecretKey string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type BookingConfig struct {
	Currency        string
	CreateRateLimit int
	CreateRateWin   time.Duration
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverHost := getEnv("SERVER_HOST", "localhost")

	serverPort, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid SERVER_PORT: %w", op, err)
	}

	postgresHost := getEnv("POSTGRES_HOST", "localhost")

	postgresPort, err := getEnvInt("POSTGRES_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid POSTGRES_PORT: %w", op, err)
	}

	postgresUser := os.Getenv("POSTGRES_USER")
	if postgresUser == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
	}

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
	}

	postgresDB := os.Getenv("POSTGRES_DB")
	if postgresDB == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
	}

	stripeKey := os.Getenv("STRIPE_SECRET_KEY")
	if stripeKey == "" {
		return nil, fmt.Errorf("%s: missing STRIPE_SECRET_KEY", op)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("%s: missing JWT_SECRET", op)
	}

	tokenTTLMin, err := getEnvInt("JWT_TTL_MINUTES", 60)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid JWT_TTL_MINUTES: %w", op, err)
	}

	rateLimit, err := getEnvInt("CREATE_RATE_LIMIT", 10)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid CREATE_RATE_LIMIT: %w", op, err)
	}

	return &Config{
		Server: ServerConfig{
			Host: serverHost,
			Port: serverPort,
		},
		Postgres: PostgresConfig{
			User:     postgresUser,
			Password: postgresPassword,
			Name:     postgresDB,
			Host:     postgresHost,
			Port:     postgresPort,
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		Stripe: StripeConfig{
			SecretKey: stripeKey,
		},
		Auth: AuthConfig{
			JWTSecret: jwtSecret,
			TokenTTL:  time.Duration(tokenTTLMin) * time.Minute,
		},
		Booking: BookingConfig{
			Currency:        getEnv("BOOKING_CURRENCY", "usd"),
			CreateRateLimit: rateLimit,
			CreateRateWin:   time.Minute,
		},
	}, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
