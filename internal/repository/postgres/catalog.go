package postgresrepo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hallbook/hallbook/internal/domain"
)

// CatalogRepo is the read-only boundary to the hall catalog. The booking core
// only ever needs a point lookup; catalog management lives elsewhere.
type CatalogRepo struct {
	pool *pgxpool.Pool
}

func (r *CatalogRepo) Get(ctx context.Context, hallID uuid.UUID) (*domain.Hall, error) {
	const op = "postgresrepo.CatalogRepo.Get"

	var h domain.Hall
	if err := r.pool.QueryRow(ctx,
		`SELECT id, name, price_cents, capacity, available
	       FROM halls WHERE id = $1`,
		hallID,
	).Scan(&h.ID, &h.Name, &h.PriceCents, &h.Capacity, &h.Available); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &h, nil
}
