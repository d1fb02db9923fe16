package postgresrepo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type SequenceRepo struct {
	pool *pgxpool.Pool
}

// Next issues the next booking number. nextval is atomic across connections,
// so concurrent callers never see the same value; numbers allocated to
// aborted creates leave gaps, which is fine.
func (r *SequenceRepo) Next(ctx context.Context) (string, error) {
	const op = "postgresrepo.SequenceRepo.Next"

	var n int64
	if err := r.pool.QueryRow(ctx,
		`SELECT nextval('booking_number_seq')`,
	).Scan(&n); err != nil {
		return "", wrapDBErr(op, err)
	}

	return FormatBookingNumber(n), nil
}

// FormatBookingNumber renders a counter value as a display identifier,
// e.g. 7 -> "BK000007".
func FormatBookingNumber(n int64) string {
	return fmt.Sprintf("BK%06d", n)
}
