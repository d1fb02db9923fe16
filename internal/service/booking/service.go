package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hallbook/hallbook/internal/domain"
	"github.com/hallbook/hallbook/internal/payment"
	"github.com/hallbook/hallbook/internal/repository"
	redisrepo "github.com/hallbook/hallbook/internal/repository/redis"
)

// Ledger is the durable booking store. InsertIfNoConflict must evaluate the
// non-overlap invariant and insert as one atomic unit.
type Ledger interface {
	InsertIfNoConflict(ctx context.Context, b *domain.Booking) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	Update(ctx context.Context, id uuid.UUID, m domain.BookingMutation) (*domain.Booking, error)
	List(ctx context.Context, f domain.BookingFilter) ([]*domain.Booking, int, error)
}

// Sequence issues unique, ordered booking numbers.
type Sequence interface {
	Next(ctx context.Context) (string, error)
}

// Catalog is the read-only hall collaborator.
type Catalog interface {
	Get(ctx context.Context, hallID uuid.UUID) (*domain.Hall, error)
}

type Config struct {
	Currency        string
	HallSnapshotTTL time.Duration
}

type Service struct {
	ledger  Ledger
	seq     Sequence
	catalog Catalog
	gateway payment.Gateway
	cache   *redisrepo.Cache
	pubsub  *redisrepo.BookingsPubSub
	logger  *slog.Logger
	cfg     Config
}

func New(
	ledger Ledger,
	seq Sequence,
	catalog Catalog,
	gateway payment.Gateway,
	cache *redisrepo.Cache,
	pubsub *redisrepo.BookingsPubSub,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}

	if cfg.HallSnapshotTTL <= 0 {
		cfg.HallSnapshotTTL = time.Minute
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		ledger:  ledger,
		seq:     seq,
		catalog: catalog,
		gateway: gateway,
		cache:   cache,
		pubsub:  pubsub,
		logger:  logger,
		cfg:     cfg,
	}
}

type CreateRequest struct {
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	HallID          uuid.UUID
	Date            time.Time
	StartMin        int
	EndMin          int
	NumberOfGuests  int
	SpecialRequests string
}

type CreateResult struct {
	Booking      *domain.Booking
	ClientSecret string
}

// Create drives the whole reservation flow: validate, snapshot the hall,
// allocate a booking number, authorize payment, then insert. The gateway call
// happens before the ledger insert so a slow gateway never holds a database
// transaction open; the price of that ordering is an authorization that may
// need voiding when the slot turns out to be taken.
//
// Returns:
//   - ValidationError for malformed input or guests over capacity.
//   - ErrHallNotFound / ErrHallUnavailable from the catalog lookup.
//   - ErrPaymentGateway if the authorization cannot be created.
//   - ErrSlotTaken if a non-cancelled booking overlaps the window.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	const op = "service.booking.Create"

	if err := validateCreate(req); err != nil {
		return nil, err
	}

	hall, err := s.lookupHall(ctx, req.HallID)
	if err != nil {
		return nil, err
	}

	if !hall.Available {
		return nil, ErrHallUnavailable
	}

	if req.NumberOfGuests > hall.Capacity {
		return nil, validationf("number of guests %d exceeds hall capacity %d",
			req.NumberOfGuests, hall.Capacity)
	}

	number, err := s.seq.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	auth, err := s.gateway.CreateAuthorization(ctx, payment.CreateParams{
		AmountCents: hall.PriceCents,
		Currency:    s.cfg.Currency,
		Metadata: map[string]string{
			"hall_id":        hall.ID.String(),
			"booking_number": number,
			"customer_name":  req.CustomerName,
			"customer_email": req.CustomerEmail,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w: %w", op, ErrPaymentGateway, err)
	}

	b := &domain.Booking{
		BookingNumber:   number,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		HallID:          req.HallID,
		Date:            req.Date,
		StartMin:        req.StartMin,
		EndMin:          req.EndMin,
		NumberOfGuests:  req.NumberOfGuests,
		TotalCents:      hall.PriceCents,
		PaymentStatus:   domain.PaymentPending,
		AuthorizationID: auth.ID,
		Status:          domain.StatusConfirmed,
	}
	if req.SpecialRequests != "" {
		b.SpecialRequests = req.SpecialRequests
	}

	if err := s.ledger.InsertIfNoConflict(ctx, b); err != nil {
		// No row was written; release the hold on the customer's funds.
		s.voidBestEffort(ctx, auth.ID)

		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%s:%w", op, ErrSlotTaken)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.publish(ctx, "booking_created", b.ID)

	return &CreateResult{Booking: b, ClientSecret: auth.ClientSecret}, nil
}

// Confirm reconciles the gateway's view of the authorization into the
// booking's payment state. Safe to retry: an already-completed booking is
// returned unchanged without touching the gateway or the ledger.
//
// Returns:
//   - ErrBookingNotFound if the booking does not exist.
//   - ErrPaymentGateway if the authorization cannot be read.
//   - ErrPaymentNotCompleted if the gateway reports a non-success status.
func (s *Service) Confirm(ctx context.Context, bookingID uuid.UUID, paymentRef string) (*domain.Booking, error) {
	const op = "service.booking.Confirm"

	if paymentRef == "" {
		return nil, validationf("payment reference is required")
	}

	b, err := s.ledger.Get(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if b.PaymentStatus == domain.PaymentCompleted {
		return b, nil
	}

	auth, err := s.gateway.RetrieveAuthorization(ctx, paymentRef)
	if err != nil {
		return nil, fmt.Errorf("%s:%w: %w", op, ErrPaymentGateway, err)
	}

	if auth.Status != payment.AuthSucceeded {
		return nil, fmt.Errorf("%s:%w", op, ErrPaymentNotCompleted)
	}

	completed := domain.PaymentCompleted
	updated, err := s.ledger.Update(ctx, bookingID, domain.BookingMutation{
		PaymentStatus: &completed,
		PaymentRef:    &paymentRef,
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.publish(ctx, "payment_confirmed", bookingID)

	return updated, nil
}

// UpdateStatus applies a staff-initiated partial update. Authorization is
// enforced upstream; by the time this runs the caller is trusted. Booking
// status may move freely between its values, payment status only forward
// from pending.
func (s *Service) UpdateStatus(
	ctx context.Context,
	bookingID uuid.UUID,
	newStatus *domain.BookingStatus,
	newPaymentStatus *domain.PaymentStatus,
) (*domain.Booking, error) {
	const op = "service.booking.UpdateStatus"

	if newStatus == nil && newPaymentStatus == nil {
		return nil, validationf("nothing to update")
	}

	if newStatus != nil && !newStatus.Valid() {
		return nil, validationf("invalid status %q", *newStatus)
	}

	if newPaymentStatus != nil && !newPaymentStatus.Valid() {
		return nil, validationf("invalid payment status %q", *newPaymentStatus)
	}

	b, err := s.ledger.Get(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if newPaymentStatus != nil && !b.PaymentStatus.CanTransitionTo(*newPaymentStatus) {
		return nil, validationf("payment status cannot change from %q to %q",
			b.PaymentStatus, *newPaymentStatus)
	}

	updated, err := s.ledger.Update(ctx, bookingID, domain.BookingMutation{
		Status:        newStatus,
		PaymentStatus: newPaymentStatus,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.publish(ctx, "status_updated", bookingID)

	return updated, nil
}

func (s *Service) Get(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	const op = "service.booking.Get"

	b, err := s.ledger.Get(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return b, nil
}

func (s *Service) List(ctx context.Context, f domain.BookingFilter) ([]*domain.Booking, int, error) {
	const op = "service.booking.List"

	bookings, total, err := s.ledger.List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("%s:%w", op, err)
	}

	return bookings, total, nil
}

func validateCreate(req CreateRequest) error {
	switch {
	case req.CustomerName == "":
		return validationf("customer name is required")
	case req.CustomerEmail == "":
		return validationf("customer email is required")
	case req.CustomerPhone == "":
		return validationf("customer phone is required")
	case req.HallID == uuid.Nil:
		return validationf("hall id is required")
	case req.Date.IsZero():
		return validationf("date is required")
	case req.StartMin >= req.EndMin:
		return validationf("start time must be before end time")
	case req.NumberOfGuests < 1:
		return validationf("number of guests must be at least 1")
	}

	return nil
}

// lookupHall reads the catalog, through a short-lived cache when one is
// wired. The snapshot taken here fixes the booking's price for good.
func (s *Service) lookupHall(ctx context.Context, hallID uuid.UUID) (*domain.Hall, error) {
	const op = "service.booking.lookupHall"

	load := func(ctx context.Context) (domain.Hall, error) {
		h, err := s.catalog.Get(ctx, hallID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.Hall{}, ErrHallNotFound
			}

			return domain.Hall{}, err
		}

		return *h, nil
	}

	if s.cache == nil {
		h, err := load(ctx)
		if err != nil {
			if errors.Is(err, ErrHallNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		return &h, nil
	}

	h, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyHallSnapshot(hallID),
		s.cfg.HallSnapshotTTL,
		load,
	)
	if err != nil {
		if errors.Is(err, ErrHallNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &h, nil
}

func (s *Service) voidBestEffort(ctx context.Context, authorizationID string) {
	if err := s.gateway.VoidAuthorization(ctx, authorizationID); err != nil {
		s.logger.Warn("failed to void payment authorization",
			"authorization_id", authorizationID,
			"error", err,
		)
	}
}

func (s *Service) publish(ctx context.Context, kind string, bookingID uuid.UUID) {
	if s.pubsub == nil {
		return
	}
	_ = s.pubsub.PublishBookingChanged(ctx, kind, bookingID)
}
