package postgresrepo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hallbook/hallbook/internal/domain"
	"github.com/hallbook/hallbook/internal/repository"
)

const bookingColumns = `id, booking_number, customer_name, customer_email, customer_phone,
	hall_id, booking_date, start_min, end_min, number_of_guests, total_cents,
	payment_status, payment_reference, gateway_authorization_id, status,
	special_requests, created_at, updated_at`

// insertAttempts bounds the serialization-abort retries for a single create.
const insertAttempts = 3

type BookingRepo struct {
	store *Store
	db    DB
}

func (r *BookingRepo) With(db DB) *BookingRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *BookingRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.store.pool
}

// InsertIfNoConflict evaluates the non-overlap invariant and performs the
// insert as one unit. When called without an enclosing transaction it runs
// in its own Serializable one; either way the GiST exclusion constraint on
// (hall_id, booking_date, [start_min, end_min)) is the final authority, so
// two racing inserts can never both commit.
//
// Under Serializable the pre-check takes a predicate read that a concurrent
// insert on the same hall and date can invalidate, aborting one committer
// with a serialization failure even when the windows do not overlap. Those
// aborts are retried; a create that keeps losing reports the slot as
// contended rather than failing internally.
//
// Returns:
//   - repository.ErrConflict if a non-cancelled booking already occupies an
//     overlapping window (or the booking number is taken), or if retries on
//     serialization aborts are exhausted.
func (r *BookingRepo) InsertIfNoConflict(ctx context.Context, b *domain.Booking) error {
	const op = "postgresrepo.BookingRepo.InsertIfNoConflict"

	if r.db != nil {
		if err := r.insertCore(ctx, b); err != nil {
			return wrapDBErr(op, err)
		}
		return nil
	}

	err := retrySerializable(ctx, insertAttempts, func(ctx context.Context) error {
		return r.store.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
			return r.With(tx).insertCore(ctx, b)
		})
	})
	if err == nil {
		return nil
	}

	if IsRetryable(err) {
		return fmt.Errorf("%s:%w", op, repository.ErrConflict)
	}

	return wrapDBErr(op, err)
}

func (r *BookingRepo) insertCore(ctx context.Context, b *domain.Booking) error {
	db := r.handle()

	// Pre-check gives a clean ErrConflict in the common case; the exclusion
	// constraint catches whatever slips between the check and the insert.
	var taken bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS (
	       SELECT 1 FROM bookings
	        WHERE hall_id = $1
	          AND booking_date = $2
	          AND status <> 'cancelled'
	          AND start_min < $4
	          AND end_min > $3
	     )`,
		b.HallID, b.Date, b.StartMin, b.EndMin,
	).Scan(&taken); err != nil {
		return err
	}

	if taken {
		return repository.ErrConflict
	}

	return db.QueryRow(ctx,
		`INSERT INTO bookings(
	       booking_number, customer_name, customer_email, customer_phone,
	       hall_id, booking_date, start_min, end_min, number_of_guests,
	       total_cents, payment_status, payment_reference,
	       gateway_authorization_id, status, special_requests)
	     VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	     RETURNING id, created_at, updated_at`,
		b.BookingNumber, b.CustomerName, b.CustomerEmail, b.CustomerPhone,
		b.HallID, b.Date, b.StartMin, b.EndMin, b.NumberOfGuests,
		b.TotalCents, b.PaymentStatus, nullable(b.PaymentRef),
		nullable(b.AuthorizationID), b.Status, nullable(b.SpecialRequests),
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (r *BookingRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "postgresrepo.BookingRepo.Get"

	db := r.handle()

	row := db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)

	b, err := scanBooking(row)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return b, nil
}

// Update applies a partial mutation: only non-nil fields of m are written.
// updated_at is bumped by the ledger itself.
func (r *BookingRepo) Update(
	ctx context.Context,
	id uuid.UUID,
	m domain.BookingMutation,
) (*domain.Booking, error) {
	const op = "postgresrepo.BookingRepo.Update"

	db := r.handle()

	sql, args, err := buildUpdate(id, m)
	if err != nil {
		return nil, fmt.Errorf("%s: build query: %w", op, err)
	}

	row := db.QueryRow(ctx, sql, args...)

	b, err := scanBooking(row)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return b, nil
}

func (r *BookingRepo) List(
	ctx context.Context,
	f domain.BookingFilter,
) ([]*domain.Booking, int, error) {
	const op = "postgresrepo.BookingRepo.List"

	db := r.handle()

	sql, args, err := buildList(f)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: build query: %w", op, err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, wrapDBErr(op, err)
	}
	defer rows.Close()

	var bookings []*domain.Booking
	var total int

	for rows.Next() {
		var b domain.Booking
		var paymentRef, authID, requests *string
		if err := rows.Scan(
			&b.ID, &b.BookingNumber, &b.CustomerName, &b.CustomerEmail, &b.CustomerPhone,
			&b.HallID, &b.Date, &b.StartMin, &b.EndMin, &b.NumberOfGuests, &b.TotalCents,
			&b.PaymentStatus, &paymentRef, &authID, &b.Status,
			&requests, &b.CreatedAt, &b.UpdatedAt, &total,
		); err != nil {
			return nil, 0, wrapDBErr(op, err)
		}
		b.PaymentRef = deref(paymentRef)
		b.AuthorizationID = deref(authID)
		b.SpecialRequests = deref(requests)
		bookings = append(bookings, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, wrapDBErr(op, err)
	}

	return bookings, total, nil
}

func buildUpdate(id uuid.UUID, m domain.BookingMutation) (string, []any, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	q := psql.Update("bookings").
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING " + bookingColumns)

	if m.Status != nil {
		q = q.Set("status", *m.Status)
	}
	if m.PaymentStatus != nil {
		q = q.Set("payment_status", *m.PaymentStatus)
	}
	if m.PaymentRef != nil {
		q = q.Set("payment_reference", *m.PaymentRef)
	}

	return q.ToSql()
}

func buildList(f domain.BookingFilter) (string, []any, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	q := psql.Select(bookingColumns, "count(*) OVER() AS total_count").
		From("bookings")

	if f.HallID != uuid.Nil {
		q = q.Where(squirrel.Eq{"hall_id": f.HallID})
	}
	if f.Status != "" {
		q = q.Where(squirrel.Eq{"status": f.Status})
	}
	if f.PaymentStatus != "" {
		q = q.Where(squirrel.Eq{"payment_status": f.PaymentStatus})
	}
	if f.Date != nil {
		q = q.Where(squirrel.Eq{"booking_date": *f.Date})
	}

	q = q.OrderBy("created_at DESC")

	page := f.Page
	if page < 1 {
		page = 1
	}
	size := f.PageSize
	if size < 1 {
		size = 20
	}
	q = q.Limit(uint64(size)).Offset(uint64((page - 1) * size))

	return q.ToSql()
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	var paymentRef, authID, requests *string

	if err := row.Scan(
		&b.ID, &b.BookingNumber, &b.CustomerName, &b.CustomerEmail, &b.CustomerPhone,
		&b.HallID, &b.Date, &b.StartMin, &b.EndMin, &b.NumberOfGuests, &b.TotalCents,
		&b.PaymentStatus, &paymentRef, &authID, &b.Status,
		&requests, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}

	b.PaymentRef = deref(paymentRef)
	b.AuthorizationID = deref(authID)
	b.SpecialRequests = deref(requests)

	return &b, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
