package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sqlc-dev/pqtype"
)

// Queries wraps the timer read queries over a pgx connection pool
type Queries struct {
	pool *pgxpool.Pool
}

// New creates a Queries bound to the given pool
func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

// CookingTimer is the database row shape for a cooking timer
type CookingTimer struct {
	ID               string
	UserID           string
	OriginDeviceID   sql.NullString
	Label            string
	DurationSeconds  int32
	RemainingSeconds int32
	State            string
	RecipeID         sql.NullString
	Metadata         pqtype.NullRawMessage
	UpdatedAt        time.Time
}

const getActiveTimers = `
SELECT id, user_id, origin_device_id, label, duration_seconds,
       remaining_seconds, state, recipe_id, metadata, updated_at
FROM cooking_timers
WHERE user_id = $1
  AND state <> 'completed'
  AND remaining_seconds > 0
`

// GetActiveTimers returns the user's timers that are still counting down.
// Completed and expired timers are excluded; ordering is unspecified.
func (q *Queries) GetActiveTimers(ctx context.Context, userID string) ([]CookingTimer, error) {
	rows, err := q.pool.Query(ctx, getActiveTimers, userID)
	if err != nil {
		return nil, fmt.Errorf("query active timers: %w", err)
	}
	defer rows.Close()

	var timers []CookingTimer
	for rows.Next() {
		var t CookingTimer
		if err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.OriginDeviceID,
			&t.Label,
			&t.DurationSeconds,
			&t.RemainingSeconds,
			&t.State,
			&t.RecipeID,
			&t.Metadata,
			&t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan active timer: %w", err)
		}
		timers = append(timers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active timers: %w", err)
	}

	return timers, nil
}
