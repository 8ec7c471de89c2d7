package models

import (
	"encoding/json"
	"time"
)

// TimerState represents the lifecycle state of a cooking timer
type TimerState string

const (
	TimerStateRunning   TimerState = "running"
	TimerStatePaused    TimerState = "paused"
	TimerStateCompleted TimerState = "completed"
)

// Valid reports whether the state is one of the known timer states
func (s TimerState) Valid() bool {
	switch s {
	case TimerStateRunning, TimerStatePaused, TimerStateCompleted:
		return true
	}
	return false
}

// Timer represents one cooking countdown. The sync core passes the
// descriptive fields through unexamined; conflict resolution on resync is
// last-writer-wins by UpdatedAt, with the UI as the final arbiter.
type Timer struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	OriginDeviceID   string          `json:"originDeviceId,omitempty"`
	Label            string          `json:"label"`
	DurationSeconds  int             `json:"durationSeconds"`
	RemainingSeconds int             `json:"remainingSeconds"`
	State            TimerState      `json:"state"`
	RecipeID         string          `json:"recipeId,omitempty"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}
