package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/hallbook/hallbook/internal/domain"
	redisrepo "github.com/hallbook/hallbook/internal/repository/redis"
	"github.com/hallbook/hallbook/internal/service"
	"github.com/hallbook/hallbook/internal/service/booking"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	limiter *redisrepo.SlidingWindowLimiter,
	jwtManager *JWTManager,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.POST("/bookings", RateLimitMiddleware(limiter), handleCreateBooking(svcs, idem))
	r.POST("/bookings/:id/confirm", handleConfirmPayment(svcs))

	// Staff API: authorization is enforced here, before any core logic runs.
	staff := r.Group("/admin", StaffRequired(jwtManager))
	{
		staff.GET("/bookings", handleListBookings(svcs))
		staff.GET("/bookings/:id", handleGetBooking(svcs))
		staff.PATCH("/bookings/:id", handleUpdateBooking(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Create booking (idempotent)
// @Param    req body  CreateBookingRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} CreateBookingResponse
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse "hall not found"
// @Failure  409 {object} ErrorResponse "slot taken / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Failure  502 {object} ErrorResponse "payment gateway error"
// @Router   /bookings [post]
func handleCreateBooking(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		svcReq, err := toCreateRequest(req)
		if err != nil {
			badRequest(c, err.Error())
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemCreate(idemKey)

			if payload, ok, _ := idem.GetResult(
				c.Request.Context(),
				idemStorageKey,
			); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(
					http.StatusCreated,
					"application/json; charset=utf-8",
					[]byte(payload),
				)
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				60*time.Second,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(
					c.Request.Context(),
					idemStorageKey,
				); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(
						http.StatusCreated,
						"application/json; charset=utf-8",
						[]byte(payload),
					)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Error: "idempotency key in progress"},
				)
				return
			}
		}

		res, err := svcs.Bookings.Create(c.Request.Context(), svcReq)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := CreateBookingResponse{
			Booking:      toBookingResponse(res.Booking),
			ClientSecret: res.ClientSecret,
		}

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Confirm payment
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Param    req body  ConfirmPaymentRequest true "payload"
// @Success  200 {object} BookingResponse
// @Failure  400 {object} ErrorResponse "payment not completed"
// @Failure  404 {object} ErrorResponse
// @Router   /bookings/{id}/confirm [post]
func handleConfirmPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req ConfirmPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		b, err := svcs.Bookings.Confirm(
			c.Request.Context(),
			bookingID,
			req.PaymentReference,
		)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, toBookingResponse(b))
	}
}

// @Summary  List bookings (staff)
// @Param    hall_id        query  string  false "filter by hall"
// @Param    status         query  string  false "confirmed|cancelled|completed"
// @Param    payment_status query  string  false "pending|completed|failed"
// @Param    date           query  string  false "YYYY-MM-DD"
// @Param    page           query  int     false "page"
// @Param    page_size      query  int     false "page size"
// @Success  200 {object} ListBookingsResponse
// @Router   /admin/bookings [get]
func handleListBookings(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var f domain.BookingFilter

		if s := c.Query("hall_id"); s != "" {
			id, err := uuid.Parse(s)
			if err != nil {
				badRequest(c, "invalid hall_id")
				return
			}
			f.HallID = id
		}
		f.Status = domain.BookingStatus(c.Query("status"))
		f.PaymentStatus = domain.PaymentStatus(c.Query("payment_status"))
		if s := c.Query("date"); s != "" {
			d, err := parseDate(s)
			if err != nil {
				badRequest(c, "invalid date (YYYY-MM-DD)")
				return
			}
			f.Date = &d
		}
		f.Page = parseIntDefault(c.Query("page"), 1)
		f.PageSize = parseIntDefault(c.Query("page_size"), 20)

		bookings, total, err := svcs.Bookings.List(c.Request.Context(), f)
		if err != nil {
			respondErr(c, err)
			return
		}

		resp := ListBookingsResponse{
			Bookings: make([]BookingResponse, 0, len(bookings)),
			Total:    total,
			Page:     f.Page,
			PageSize: f.PageSize,
		}
		for _, b := range bookings {
			resp.Bookings = append(resp.Bookings, toBookingResponse(b))
		}

		c.JSON(http.StatusOK, resp)
	}
}

// @Summary  Get booking (staff)
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Success  200 {object} BookingResponse
// @Failure  404 {object} ErrorResponse
// @Router   /admin/bookings/{id} [get]
func handleGetBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		b, err := svcs.Bookings.Get(c.Request.Context(), bookingID)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, toBookingResponse(b))
	}
}

// @Summary  Update booking status (staff)
// @Param    id  path  string  true  "Booking ID (uuid)"
// @Param    req body  UpdateBookingRequest true "payload"
// @Success  200 {object} BookingResponse
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Router   /admin/bookings/{id} [patch]
func handleUpdateBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req UpdateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		var newStatus *domain.BookingStatus
		if req.Status != nil {
			s := domain.BookingStatus(*req.Status)
			newStatus = &s
		}

		var newPaymentStatus *domain.PaymentStatus
		if req.PaymentStatus != nil {
			p := domain.PaymentStatus(*req.PaymentStatus)
			newPaymentStatus = &p
		}

		b, err := svcs.Bookings.UpdateStatus(
			c.Request.Context(),
			bookingID,
			newStatus,
			newPaymentStatus,
		)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, toBookingResponse(b))
	}
}

// --- Helpers ---

func toCreateRequest(req CreateBookingRequest) (booking.CreateRequest, error) {
	hallID, err := uuid.Parse(req.HallID)
	if err != nil {
		return booking.CreateRequest{}, errors.New("invalid hall_id")
	}

	date, err := parseDate(req.Date)
	if err != nil {
		return booking.CreateRequest{}, errors.New("invalid date (YYYY-MM-DD)")
	}

	startMin, err := domain.ParseClock(req.StartTime)
	if err != nil {
		return booking.CreateRequest{}, errors.New("invalid start_time (HH:MM)")
	}

	endMin, err := domain.ParseClock(req.EndTime)
	if err != nil {
		return booking.CreateRequest{}, errors.New("invalid end_time (HH:MM)")
	}

	return booking.CreateRequest{
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		HallID:          hallID,
		Date:            date,
		StartMin:        startMin,
		EndMin:          endMin,
		NumberOfGuests:  req.NumberOfGuests,
		SpecialRequests: req.SpecialRequests,
	}, nil
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var ve booking.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: ve.Reason})
		return
	}

	switch {
	case errors.Is(err, booking.ErrHallNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "hall not found"})
	case errors.Is(err, booking.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
	case errors.Is(err, booking.ErrHallUnavailable):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "hall is not available"})
	case errors.Is(err, booking.ErrSlotTaken):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "time slot already booked"})
	case errors.Is(err, booking.ErrPaymentNotCompleted):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "payment not completed"})
	case errors.Is(err, booking.ErrPaymentGateway):
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "payment gateway error"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
