package events

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askwave/liveqa/internal/models"
)

// ErrNotFound is returned when no event matches the lookup.
var ErrNotFound = errors.New("event not found")

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectColumns = `id, name, code, audience_peak, started_at, expired_at, inserted_at`

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	const q = `SELECT ` + selectColumns + ` FROM events WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, q, id))
}

// GetByCode returns an event by its join code.
func (r *Repository) GetByCode(ctx context.Context, code string) (*models.Event, error) {
	const q = `SELECT ` + selectColumns + ` FROM events WHERE code = $1`
	return r.scanOne(r.pool.QueryRow(ctx, q, code))
}

// UpdateAudiencePeak raises the recorded peak audience if count exceeds it.
func (r *Repository) UpdateAudiencePeak(ctx context.Context, id uuid.UUID, count int) error {
	const q = `UPDATE events SET audience_peak = $2, updated_at = now()
		WHERE id = $1 AND audience_peak < $2`
	_, err := r.pool.Exec(ctx, q, id, count)
	return err
}

func (r *Repository) scanOne(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.Name, &e.Code, &e.AudiencePeak, &e.StartedAt, &e.ExpiredAt, &e.InsertedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
