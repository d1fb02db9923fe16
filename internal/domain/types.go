package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed:
		return true
	}
	return false
}

// CanTransitionTo enforces payment-status monotonicity: once a booking leaves
// pending it never goes back.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if s == next {
		return true
	}
	return s == PaymentPending && (next == PaymentCompleted || next == PaymentFailed)
}

type BookingStatus string

const (
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Hall is the catalog snapshot the booking core consumes. Price and capacity
// are read once at creation time; the persisted booking never re-reads them.
type Hall struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Capacity   int       `json:"capacity"`
	Available  bool      `json:"available"`
}

type Booking struct {
	ID              uuid.UUID     `json:"id"`
	BookingNumber   string        `json:"booking_number"`
	CustomerName    string        `json:"customer_name"`
	CustomerEmail   string        `json:"customer_email"`
	CustomerPhone   string        `json:"customer_phone"`
	HallID          uuid.UUID     `json:"hall_id"`
	Date            time.Time     `json:"date"`
	StartMin        int           `json:"start_min"`
	EndMin          int           `json:"end_min"`
	NumberOfGuests  int           `json:"number_of_guests"`
	TotalCents      int64         `json:"total_cents"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentRef      string        `json:"payment_reference,omitempty"`
	AuthorizationID string        `json:"gateway_authorization_id,omitempty"`
	Status          BookingStatus `json:"status"`
	SpecialRequests string        `json:"special_requests,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// BookingMutation is a partial update: nil fields keep their current value.
type BookingMutation struct {
	Status        *BookingStatus
	PaymentStatus *PaymentStatus
	PaymentRef    *string
}

type BookingFilter struct {
	HallID        uuid.UUID
	Status        BookingStatus
	PaymentStatus PaymentStatus
	Date          *time.Time
	Page          int
	PageSize      int
}

// ParseClock parses a wall-clock "15:04" string into minutes past midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock is the inverse of ParseClock.
func FormatClock(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// Overlaps reports whether two half-open [start, end) minute windows intersect.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && aEnd > bStart
}
