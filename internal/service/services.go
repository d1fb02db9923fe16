package service

import (
	"log/slog"

	"github.com/hallbook/hallbook/internal/payment"
	postgres "github.com/hallbook/hallbook/internal/repository/postgres"
	redis "github.com/hallbook/hallbook/internal/repository/redis"
	"github.com/hallbook/hallbook/internal/service/booking"
)

type Services struct {
	Bookings *booking.Service
}

type Config struct {
	Booking booking.Config
}

func NewServices(
	store *postgres.Store,
	gateway payment.Gateway,
	cache *redis.Cache,
	pubsub *redis.BookingsPubSub,
	logger *slog.Logger,
	cfg Config,
) *Services {
	return &Services{
		Bookings: booking.New(
			store.Bookings(),
			store.Sequence(),
			store.Catalog(),
			gateway,
			cache,
			pubsub,
			logger,
			cfg.Booking,
		),
	}
}
