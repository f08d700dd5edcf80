package store

import (
	"context"
	"errors"

	"carpnav/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// CreateRun assigns an id and creation time when missing and persists r.
	CreateRun(ctx context.Context, r model.Run) (model.Run, error)
	GetRun(ctx context.Context, id string) (model.Run, error)
	// ListRuns returns summaries newest first. instance filters by name when
	// non-empty; cursor is the id of the last item of the previous page.
	ListRuns(ctx context.Context, instance, cursor string, limit int) ([]model.Run, string, error)
	Ping(ctx context.Context) error
}

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidCursor = errors.New("invalid cursor")
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return min(limit, maxLimit)
}
