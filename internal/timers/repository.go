package timers

import (
	"context"
	"fmt"

	"github.com/stockpit/timersync/internal/models"
	"github.com/stockpit/timersync/internal/timers/db"
)

// Querier defines what the repository needs from the database layer
type Querier interface {
	GetActiveTimers(ctx context.Context, userID string) ([]db.CookingTimer, error)
}

// Repository implements timer data access operations
type Repository struct {
	queries Querier
}

// NewRepository creates a new timers repository
func NewRepository(querier Querier) *Repository {
	return &Repository{
		queries: querier,
	}
}

// ActiveTimers retrieves the user's currently active timers
func (r *Repository) ActiveTimers(ctx context.Context, userID string) ([]models.Timer, error) {
	rows, err := r.queries.GetActiveTimers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active timers: %w", err)
	}

	timers := make([]models.Timer, 0, len(rows))
	for _, row := range rows {
		timers = append(timers, r.dbTimerToModel(row))
	}
	return timers, nil
}

// dbTimerToModel converts a database timer to the domain model
func (r *Repository) dbTimerToModel(row db.CookingTimer) models.Timer {
	t := models.Timer{
		ID:               row.ID,
		UserID:           row.UserID,
		Label:            row.Label,
		DurationSeconds:  int(row.DurationSeconds),
		RemainingSeconds: int(row.RemainingSeconds),
		State:            models.TimerState(row.State),
		UpdatedAt:        row.UpdatedAt,
	}
	if row.OriginDeviceID.Valid {
		t.OriginDeviceID = row.OriginDeviceID.String
	}
	if row.RecipeID.Valid {
		t.RecipeID = row.RecipeID.String
	}
	if row.Metadata.Valid {
		t.Metadata = row.Metadata.RawMessage
	}
	return t
}
