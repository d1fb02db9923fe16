package redis

import (
	"fmt"

	"github.com/google/uuid"
)

const ns = "hallbook:v1"

func KeyHallSnapshot(hallID uuid.UUID) string {
	return fmt.Sprintf("%s:hall:%s:snapshot", ns, hallID)
}

// KeyRateLimit is the limiter prefix for a scope; the limiter appends the
// per-client suffix itself.
func KeyRateLimit(scope string) string {
	return fmt.Sprintf("%s:rl:%s", ns, scope)
}

func KeyIdemCreate(idemKey string) string {
	return fmt.Sprintf("%s:idem:create:%s", ns, idemKey)
}

func ChannelBookingsChanged() string {
	return ns + ":bookings:changed"
}
