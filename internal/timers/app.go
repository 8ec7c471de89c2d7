package timers

import (
	"context"
	"fmt"

	"github.com/stockpit/timersync/internal/models"
)

// TimersRepository defines what the app layer needs from the repository
type TimersRepository interface {
	ActiveTimers(ctx context.Context, userID string) ([]models.Timer, error)
}

// App handles timer read business logic. It satisfies the gateway's
// ActiveTimerProvider interface.
type App struct {
	repo TimersRepository
}

// NewApp creates a new timers App
func NewApp(repo TimersRepository) *App {
	return &App{
		repo: repo,
	}
}

// ActiveTimers returns the user's currently active timers
func (a *App) ActiveTimers(ctx context.Context, userID string) ([]models.Timer, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	return a.repo.ActiveTimers(ctx, userID)
}
