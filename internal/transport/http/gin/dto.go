package httpgin

import (
	"time"

	"github.com/hallbook/hallbook/internal/domain"
)

const dateLayout = "2006-01-02"

type CreateBookingRequest struct {
	CustomerName    string `json:"customer_name" binding:"required"`
	CustomerEmail   string `json:"customer_email" binding:"required,email"`
	CustomerPhone   string `json:"customer_phone" binding:"required"`
	HallID          string `json:"hall_id" binding:"required,uuid"`
	Date            string `json:"date" binding:"required"`
	StartTime       string `json:"start_time" binding:"required"`
	EndTime         string `json:"end_time" binding:"required"`
	NumberOfGuests  int    `json:"number_of_guests" binding:"required,gte=1"`
	SpecialRequests string `json:"special_requests"`
}

type ConfirmPaymentRequest struct {
	PaymentReference string `json:"payment_reference" binding:"required"`
}

type UpdateBookingRequest struct {
	Status        *string `json:"status"`
	PaymentStatus *string `json:"payment_status"`
}

type BookingResponse struct {
	ID              string `json:"id"`
	BookingNumber   string `json:"booking_number"`
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	CustomerPhone   string `json:"customer_phone"`
	HallID          string `json:"hall_id"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	NumberOfGuests  int    `json:"number_of_guests"`
	TotalCents      int64  `json:"total_cents"`
	PaymentStatus   string `json:"payment_status"`
	PaymentRef      string `json:"payment_reference,omitempty"`
	Status          string `json:"status"`
	SpecialRequests string `json:"special_requests,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type CreateBookingResponse struct {
	Booking      BookingResponse `json:"booking"`
	ClientSecret string          `json:"client_secret"`
}

type ListBookingsResponse struct {
	Bookings []BookingResponse `json:"bookings"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func toBookingResponse(b *domain.Booking) BookingResponse {
	return BookingResponse{
		ID:              b.ID.String(),
		BookingNumber:   b.BookingNumber,
		CustomerName:    b.CustomerName,
		CustomerEmail:   b.CustomerEmail,
		CustomerPhone:   b.CustomerPhone,
		HallID:          b.HallID.String(),
		Date:            b.Date.Format(dateLayout),
		StartTime:       domain.FormatClock(b.StartMin),
		EndTime:         domain.FormatClock(b.EndMin),
		NumberOfGuests:  b.NumberOfGuests,
		TotalCents:      b.TotalCents,
		PaymentStatus:   string(b.PaymentStatus),
		PaymentRef:      b.PaymentRef,
		Status:          string(b.Status),
		SpecialRequests: b.SpecialRequests,
		CreatedAt:       b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       b.UpdatedAt.Format(time.RFC3339),
	}
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}
