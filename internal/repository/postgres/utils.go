package postgresrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hallbook/hallbook/internal/repository"
)

// wrapDBErr maps common DB errors to repository-level errors and wraps them with
// the provided operation name.
func wrapDBErr(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		// unique_violation covers booking_number, exclusion_violation covers
		// the non-overlap constraint on bookings.
		switch pge.Code {
		case pgerrcode.UniqueViolation, pgerrcode.ExclusionViolation:
			return fmt.Errorf("%s:%w", op, repository.ErrConflict)
		}
	}

	return fmt.Errorf("%s:%w", op, err)
}

// IsRetryable reports whether the transaction failed with a serialization or
// deadlock error and can be re-run as-is.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
			return true
		}
	}

	return false
}

// retrySerializable re-runs fn up to attempts times while it keeps failing
// with a retryable abort. The last error is returned as-is so callers can
// still inspect it after the budget is spent.
func retrySerializable(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	var err error

	for i := 0; i < attempts; i++ {
		err = fn(ctx)
		if err == nil || !IsRetryable(err) {
			return err
		}

		if ctx.Err() != nil {
			return err
		}
	}

	return err
}
