// Package store defines the persistence contract for loan applications.
// Implementations live in the memory, postgres and mongo subpackages.
//
// Stores are pure I/O. They report facts with pkg/platform/sentinel errors
// and leave translation into domain errors to the service layer.
package store

import (
	"context"
	"time"

	"kilimokredo/internal/loan/models"
)

// Filter narrows Find. Zero fields match everything.
type Filter struct {
	FarmerID string
	Status   models.LoanStatus
}

// Matches reports whether app satisfies f.
func (f Filter) Matches(app *models.LoanApplication) bool {
	if f.FarmerID != "" && app.FarmerID != f.FarmerID {
		return false
	}
	if f.Status != "" && app.Others.LoanStatus != f.Status {
		return false
	}
	return true
}

// Store persists loan applications.
type Store interface {
	// Create inserts a new application.
	Create(ctx context.Context, app *models.LoanApplication) error

	// FindByID returns sentinel.ErrNotFound for an unknown id.
	FindByID(ctx context.Context, id string) (*models.LoanApplication, error)

	// Find returns matches ordered by CreatedAt descending. limit <= 0 means
	// no limit.
	Find(ctx context.Context, filter Filter, limit int) ([]*models.LoanApplication, error)

	// UpdateStatusIfPending sets status in one conditional write that only
	// succeeds while the stored status is Pending. It returns
	// sentinel.ErrNotFound for an unknown id and sentinel.ErrInvalidState when
	// the application has already been decided.
	UpdateStatusIfPending(ctx context.Context, id string, status models.LoanStatus, now time.Time) (*models.LoanApplication, error)

	// CountByStatus returns the number of applications per status.
	CountByStatus(ctx context.Context) (map[models.LoanStatus]int, error)
}
