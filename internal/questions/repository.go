package questions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askwave/liveqa/internal/models"
)

// ErrNotFound is returned when no question matches the lookup.
var ErrNotFound = errors.New("question not found")

// ListParams filters and pages a question listing.
type ListParams struct {
	ParentID *uuid.UUID // nil lists top-level questions
	SortBy   string     // "created_at" (default) or "likes"
	Order    string     // "asc" or "desc" (default)
	Limit    int
	Offset   int
}

// Repository handles question persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a questions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const questionColumns = `id, event_id, parent_id, content,
	COALESCE(user_name, ''), COALESCE(attendee_identifier, ''),
	like_count, followup_count, inserted_at`

// ListByEvent returns questions for an event, scoped to a parent thread when
// ParentID is set, plus the total count matching the filter.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID, p ListParams) ([]models.Question, int, error) {
	where := `WHERE event_id = $1 AND parent_id IS NULL`
	args := []any{eventID}
	if p.ParentID != nil {
		where = `WHERE event_id = $1 AND parent_id = $2`
		args = append(args, *p.ParentID)
	}

	sortCol := "inserted_at"
	if p.SortBy == "likes" {
		sortCol = "like_count"
	}
	dir := "DESC"
	if p.Order == "asc" {
		dir = "ASC"
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}

	q := fmt.Sprintf(`SELECT %s FROM questions %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		questionColumns, where, sortCol, dir, limit, p.Offset)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countQ := `SELECT COUNT(*) FROM questions ` + where
	var count int
	if err := r.pool.QueryRow(ctx, countQ, args...).Scan(&count); err != nil {
		return nil, 0, err
	}
	return list, count, nil
}

// GetByID returns a question by ID, scoped to an event.
func (r *Repository) GetByID(ctx context.Context, eventID, id uuid.UUID) (*models.Question, error) {
	q := `SELECT ` + questionColumns + ` FROM questions WHERE id = $1 AND event_id = $2`
	question, err := scanQuestion(r.pool.QueryRow(ctx, q, id, eventID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return question, nil
}

// Create inserts a new question. For a follow-up the parent's followup_count
// is bumped in the same transaction and the post-insert count is returned;
// parentCount is 0 for top-level questions. ErrNotFound means the parent does
// not exist in the question's event. The bump runs before the insert so a
// bogus parent_id surfaces as a not-found, not as an FK violation.
func (r *Repository) Create(ctx context.Context, q *models.Question) (parentCount int, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if q.ParentID != nil {
		const bump = `UPDATE questions SET followup_count = followup_count + 1, updated_at = now()
			WHERE id = $1 AND event_id = $2 RETURNING followup_count`
		if err := tx.QueryRow(ctx, bump, *q.ParentID, q.EventID).Scan(&parentCount); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, ErrNotFound
			}
			return 0, err
		}
	}

	const insert = `INSERT INTO questions (event_id, parent_id, content, user_name, attendee_identifier)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
		RETURNING id, inserted_at`
	err = tx.QueryRow(ctx, insert,
		q.EventID, q.ParentID, q.Content, q.UserName, q.AttendeeIdentifier).
		Scan(&q.ID, &q.InsertedAt)
	if err != nil {
		return 0, err
	}
	return parentCount, tx.Commit(ctx)
}

// Update replaces a question's content and returns the updated row.
func (r *Repository) Update(ctx context.Context, eventID, id uuid.UUID, content string) (*models.Question, error) {
	q := `UPDATE questions SET content = $3, updated_at = now()
		WHERE id = $1 AND event_id = $2
		RETURNING ` + questionColumns
	question, err := scanQuestion(r.pool.QueryRow(ctx, q, id, eventID, content))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return question, nil
}

// Like increments a question's like count and returns the updated row.
func (r *Repository) Like(ctx context.Context, eventID, id uuid.UUID) (*models.Question, error) {
	q := `UPDATE questions SET like_count = like_count + 1, updated_at = now()
		WHERE id = $1 AND event_id = $2
		RETURNING ` + questionColumns
	question, err := scanQuestion(r.pool.QueryRow(ctx, q, id, eventID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return question, nil
}

func scanQuestion(row pgx.Row) (*models.Question, error) {
	var q models.Question
	err := row.Scan(&q.ID, &q.EventID, &q.ParentID, &q.Content,
		&q.UserName, &q.AttendeeIdentifier,
		&q.LikeCount, &q.FollowupCount, &q.InsertedAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}
