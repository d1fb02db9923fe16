package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// BookingsPubSub announces booking state changes (created, payment confirmed,
// status updated) to whoever is listening, e.g. a staff dashboard. Delivery
// is fire-and-forget; the ledger row is always the source of truth.
type BookingsPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewBookingsPubSub(rdb *redis.Client) *BookingsPubSub {
	return &BookingsPubSub{
		rdb:     rdb,
		channel: ChannelBookingsChanged(),
	}
}

type bookingChangedMsg struct {
	Type      string `json:"type"`
	BookingID string `json:"booking_id"`
	TsUnix    int64  `json:"ts_unix"`
}

func (p *BookingsPubSub) PublishBookingChanged(ctx context.Context, kind string, bookingID uuid.UUID) error {
	msg := bookingChangedMsg{
		Type:      kind,
		BookingID: bookingID.String(),
		TsUnix:    time.Now().Unix(),
	}

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

func (p *BookingsPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, kind string, bookingID uuid.UUID)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev bookingChangedMsg
			if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
				continue
			}
			id, err := uuid.Parse(ev.BookingID)
			if err != nil {
				continue
			}
			handler(ctx, ev.Type, id)
		}
	}
}
