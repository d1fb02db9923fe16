package httpgin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hallbook/hallbook/internal/domain"
	"github.com/hallbook/hallbook/internal/payment"
	"github.com/hallbook/hallbook/internal/repository"
	redisrepo "github.com/hallbook/hallbook/internal/repository/redis"
	"github.com/hallbook/hallbook/internal/service"
	"github.com/hallbook/hallbook/internal/service/booking"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memLedger struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*domain.Booking
}

func (l *memLedger) InsertIfNoConflict(_ context.Context, b *domain.Booking) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, other := range l.bookings {
		if other.HallID == b.HallID && other.Date.Equal(b.Date) &&
			other.Status != domain.StatusCancelled &&
			domain.Overlaps(b.StartMin, b.EndMin, other.StartMin, other.EndMin) {
			return repository.ErrConflict
		}
	}

	b.ID = uuid.New()
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt

	cp := *b
	l.bookings[b.ID] = &cp

	return nil
}

func (l *memLedger) Get(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (l *memLedger) Update(_ context.Context, id uuid.UUID, m domain.BookingMutation) (*domain.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if m.Status != nil {
		b.Status = *m.Status
	}
	if m.PaymentStatus != nil {
		b.PaymentStatus = *m.PaymentStatus
	}
	if m.PaymentRef != nil {
		b.PaymentRef = *m.PaymentRef
	}
	b.UpdatedAt = time.Now()

	cp := *b
	return &cp, nil
}

func (l *memLedger) List(_ context.Context, _ domain.BookingFilter) ([]*domain.Booking, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*domain.Booking, 0, len(l.bookings))
	for _, b := range l.bookings {
		cp := *b
		out = append(out, &cp)
	}
	return out, len(out), nil
}

type memSequence struct {
	mu sync.Mutex
	n  int64
}

func (s *memSequence) Next(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("BK%06d", s.n), nil
}

type memCatalog struct {
	halls map[uuid.UUID]*domain.Hall
}

func (c *memCatalog) Get(_ context.Context, id uuid.UUID) (*domain.Hall, error) {
	h, ok := c.halls[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

type memGateway struct {
	mu      sync.Mutex
	created int
	status  payment.AuthorizationStatus
}

func (g *memGateway) CreateAuthorization(context.Context, payment.CreateParams) (*payment.Authorization, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created++
	id := fmt.Sprintf("pi_%d", g.created)
	return &payment.Authorization{ID: id, ClientSecret: id + "_secret", Status: payment.AuthPending}, nil
}

func (g *memGateway) RetrieveAuthorization(_ context.Context, id string) (*payment.Authorization, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	status := g.status
	if status == "" {
		status = payment.AuthSucceeded
	}
	return &payment.Authorization{ID: id, Status: status}, nil
}

func (g *memGateway) VoidAuthorization(context.Context, string) error { return nil }

type testEnv struct {
	router  *gin.Engine
	hall    *domain.Hall
	gateway *memGateway
	jwt     *JWTManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	hall := &domain.Hall{
		ID:         uuid.New(),
		Name:       "Grand Hall",
		PriceCents: 250_000,
		Capacity:   120,
		Available:  true,
	}

	gateway := &memGateway{}
	svc := booking.New(
		&memLedger{bookings: make(map[uuid.UUID]*domain.Booking)},
		&memSequence{},
		&memCatalog{halls: map[uuid.UUID]*domain.Hall{hall.ID: hall}},
		gateway,
		nil,
		nil,
		nil,
		booking.Config{Currency: "usd"},
	)

	jwtManager := NewJWTManager("test-secret", time.Hour)
	idem := redisrepo.NewIdempotencyStore(rdb, time.Hour)

	router := NewRouter(&service.Services{Bookings: svc}, idem, nil, jwtManager, newTestLogger())

	return &testEnv{router: router, hall: hall, gateway: gateway, jwt: jwtManager}
}

func (e *testEnv) do(t *testing.T, method, path string, payload any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(b)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createPayload() map[string]any {
	return map[string]any{
		"customer_name":    "Ada Lovelace",
		"customer_email":   "ada@example.com",
		"customer_phone":   "+15550100",
		"hall_id":          e.hall.ID.String(),
		"date":             "2026-09-12",
		"start_time":       "10:00",
		"end_time":         "14:00",
		"number_of_guests": 80,
	}
}

func TestCreateBookingEndpoint(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(t, http.MethodPost, "/bookings", env.createPayload(), nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var resp CreateBookingResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		assert.Regexp(t, `^BK\d{6}$`, resp.Booking.BookingNumber)
		assert.Equal(t, "pending", resp.Booking.PaymentStatus)
		assert.Equal(t, "confirmed", resp.Booking.Status)
		assert.Equal(t, "10:00", resp.Booking.StartTime)
		assert.Equal(t, "14:00", resp.Booking.EndTime)
		assert.Equal(t, int64(250_000), resp.Booking.TotalCents)
		assert.NotEmpty(t, resp.ClientSecret)
	})

	t.Run("overlap returns 409", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(t, http.MethodPost, "/bookings", env.createPayload(), nil)
		require.Equal(t, http.StatusCreated, w.Code)

		payload := env.createPayload()
		payload["start_time"] = "12:00"
		payload["end_time"] = "16:00"

		w = env.do(t, http.MethodPost, "/bookings", payload, nil)
		assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	})

	t.Run("unknown hall returns 404", func(t *testing.T) {
		env := newTestEnv(t)

		payload := env.createPayload()
		payload["hall_id"] = uuid.New().String()

		w := env.do(t, http.MethodPost, "/bookings", payload, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	})

	t.Run("malformed input returns 400", func(t *testing.T) {
		env := newTestEnv(t)

		for name, mutate := range map[string]func(map[string]any){
			"bad email":      func(p map[string]any) { p["customer_email"] = "not-an-email" },
			"bad hall id":    func(p map[string]any) { p["hall_id"] = "xyz" },
			"bad date":       func(p map[string]any) { p["date"] = "12/09/2026" },
			"bad time":       func(p map[string]any) { p["start_time"] = "25:99" },
			"zero guests":    func(p map[string]any) { p["number_of_guests"] = 0 },
			"inverted times": func(p map[string]any) { p["start_time"], p["end_time"] = "14:00", "10:00" },
		} {
			t.Run(name, func(t *testing.T) {
				payload := env.createPayload()
				mutate(payload)

				w := env.do(t, http.MethodPost, "/bookings", payload, nil)
				assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			})
		}
	})

	t.Run("idempotency key replays the original response", func(t *testing.T) {
		env := newTestEnv(t)
		headers := map[string]string{"Idempotency-Key": "idem-123"}

		w1 := env.do(t, http.MethodPost, "/bookings", env.createPayload(), headers)
		require.Equal(t, http.StatusCreated, w1.Code)

		w2 := env.do(t, http.MethodPost, "/bookings", env.createPayload(), headers)
		require.Equal(t, http.StatusCreated, w2.Code)

		assert.JSONEq(t, w1.Body.String(), w2.Body.String())
		assert.Equal(t, 1, env.gateway.created, "retry must not authorize the card again")
	})

	t.Run("failed create releases the idempotency key", func(t *testing.T) {
		env := newTestEnv(t)
		headers := map[string]string{"Idempotency-Key": "idem-456"}

		payload := env.createPayload()
		payload["hall_id"] = uuid.New().String()

		w := env.do(t, http.MethodPost, "/bookings", payload, headers)
		require.Equal(t, http.StatusNotFound, w.Code)

		w = env.do(t, http.MethodPost, "/bookings", env.createPayload(), headers)
		assert.Equal(t, http.StatusCreated, w.Code, "a released key must accept a corrected retry")
	})
}

func TestConfirmPaymentEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/bookings", env.createPayload(), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var created CreateBookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	t.Run("confirms", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/bookings/"+created.Booking.ID+"/confirm",
			ConfirmPaymentRequest{PaymentReference: "pi_1"}, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp BookingResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "completed", resp.PaymentStatus)
		assert.Equal(t, "pi_1", resp.PaymentRef)
	})

	t.Run("unknown booking", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/bookings/"+uuid.NewString()+"/confirm",
			ConfirmPaymentRequest{PaymentReference: "pi_1"}, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing reference", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/bookings/"+created.Booking.ID+"/confirm",
			map[string]string{}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("pending gateway status", func(t *testing.T) {
		env := newTestEnv(t)
		env.gateway.status = payment.AuthPending

		w := env.do(t, http.MethodPost, "/bookings", env.createPayload(), nil)
		require.Equal(t, http.StatusCreated, w.Code)

		var created CreateBookingResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

		w = env.do(t, http.MethodPost, "/bookings/"+created.Booking.ID+"/confirm",
			ConfirmPaymentRequest{PaymentReference: "pi_1"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	})
}

func TestStaffEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/bookings", env.createPayload(), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var created CreateBookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	token, err := env.jwt.GenerateStaffToken("staff-1", "ops@example.com")
	require.NoError(t, err)
	auth := map[string]string{"Authorization": "Bearer " + token}

	t.Run("missing token", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/admin/bookings", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/admin/bookings", nil,
			map[string]string{"Authorization": token})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/admin/bookings", nil,
			map[string]string{"Authorization": "Bearer not.a.jwt"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("non-staff role", func(t *testing.T) {
		claims := &StaffClaims{
			Email: "user@example.com",
			Role:  "customer",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		w := env.do(t, http.MethodGet, "/admin/bookings", nil,
			map[string]string{"Authorization": "Bearer " + signed})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("list", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/admin/bookings", nil, auth)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp ListBookingsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Total)
		require.Len(t, resp.Bookings, 1)
		assert.Equal(t, created.Booking.ID, resp.Bookings[0].ID)
	})

	t.Run("get", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/admin/bookings/"+created.Booking.ID, nil, auth)
		require.Equal(t, http.StatusOK, w.Code)

		var resp BookingResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, created.Booking.BookingNumber, resp.BookingNumber)
	})

	t.Run("get unknown", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/admin/bookings/"+uuid.NewString(), nil, auth)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("cancel", func(t *testing.T) {
		status := "cancelled"
		w := env.do(t, http.MethodPatch, "/admin/bookings/"+created.Booking.ID,
			UpdateBookingRequest{Status: &status}, auth)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp BookingResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "cancelled", resp.Status)
		assert.Equal(t, "pending", resp.PaymentStatus)
	})

	t.Run("invalid status value", func(t *testing.T) {
		status := "archived"
		w := env.do(t, http.MethodPatch, "/admin/bookings/"+created.Booking.ID,
			UpdateBookingRequest{Status: &status}, auth)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
