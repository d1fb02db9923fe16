package booking

import (
	"errors"
	"fmt"
)

var (
	ErrHallNotFound        = errors.New("hall not found")
	ErrHallUnavailable     = errors.New("hall is not available")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrSlotTaken           = errors.New("time slot already booked")
	ErrPaymentGateway      = errors.New("payment gateway error")
	ErrPaymentNotCompleted = errors.New("payment not completed")
)

// ValidationError reports malformed or out-of-range input. It is detected
// before any mutation, so callers can retry with corrected input.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return "validation: " + e.Reason
}

func validationf(format string, args ...any) error {
	return ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
