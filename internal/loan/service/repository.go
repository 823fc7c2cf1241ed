package service

import (
	"context"
	"errors"

	"kilimokredo/internal/loan/models"
	"kilimokredo/internal/loan/store"
	dErrors "kilimokredo/pkg/domain-errors"
	"kilimokredo/pkg/platform/sentinel"
	"kilimokredo/pkg/requestcontext"
)

// Farmer listings are capped at this many applications.
const (
	DefaultFarmerLimit = 20
	MaxFarmerLimit     = 20
)

// Repository owns application persistence and the status life cycle.
type Repository struct {
	store store.Store
	deps
}

// NewRepository wraps a store.
func NewRepository(s store.Store, opts ...Option) *Repository {
	return &Repository{store: s, deps: newDeps(opts)}
}

// Create stores a new Pending application. It refuses to persist anything
// without a farmer identity.
func (r *Repository) Create(ctx context.Context, farmerID string, input models.FarmerInput, output models.ModelOutput, amount float64) (*models.LoanApplication, error) {
	if farmerID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "Not Authenticated")
	}

	app := models.NewLoanApplication(r.newID(), farmerID, input, output, amount, requestcontext.Now(ctx))
	if err := r.store.Create(ctx, app); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store application")
	}
	r.metrics.IncrementSubmitted()
	r.logger.InfoContext(ctx, "loan application created",
		"request_id", requestcontext.RequestID(ctx),
		"application_id", app.ID,
		"farmer_id", farmerID,
	)
	return app, nil
}

// Get loads one application.
func (r *Repository) Get(ctx context.Context, id string) (*models.LoanApplication, error) {
	app, err := r.store.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "failed to load application")
	}
	return app, nil
}

// ListByFarmer returns the farmer's most recent applications. limit is
// clamped to 1..MaxFarmerLimit; zero or less means DefaultFarmerLimit.
func (r *Repository) ListByFarmer(ctx context.Context, farmerID string, limit int) ([]*models.LoanApplication, error) {
	if farmerID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "Not Authenticated")
	}
	switch {
	case limit <= 0:
		limit = DefaultFarmerLimit
	case limit > MaxFarmerLimit:
		limit = MaxFarmerLimit
	}
	apps, err := r.store.Find(ctx, store.Filter{FarmerID: farmerID}, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list applications")
	}
	return nonNil(apps), nil
}

// ListOption narrows ListAll.
type ListOption func(*store.Filter)

// WithStatus keeps only applications in the given status.
func WithStatus(status models.LoanStatus) ListOption {
	return func(f *store.Filter) {
		f.Status = status
	}
}

// ListAll returns every application, most recent first, without a limit.
func (r *Repository) ListAll(ctx context.Context, opts ...ListOption) ([]*models.LoanApplication, error) {
	var filter store.Filter
	for _, opt := range opts {
		opt(&filter)
	}
	apps, err := r.store.Find(ctx, filter, 0)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list applications")
	}
	return nonNil(apps), nil
}

// UpdateStatus records an officer decision. Only Approved and Rejected are
// accepted, and only while the application is Pending.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status models.LoanStatus) (*models.LoanApplication, error) {
	if !status.IsDecision() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "status must be %s or %s", models.LoanStatusApproved, models.LoanStatusRejected)
	}

	app, err := r.store.UpdateStatusIfPending(ctx, id, status, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, dErrors.New(dErrors.CodeInvalidTransition, "application has already been decided")
		}
		return nil, translate(err, "failed to update application status")
	}
	r.metrics.IncrementDecision(string(status))
	r.logger.InfoContext(ctx, "loan application decided",
		"request_id", requestcontext.RequestID(ctx),
		"application_id", id,
		"status", status,
	)
	return app, nil
}

// Stats counts applications by status.
func (r *Repository) Stats(ctx context.Context) (*models.Stats, error) {
	counts, err := r.store.CountByStatus(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count applications")
	}
	var stats models.Stats
	for status, n := range counts {
		stats.Add(status, n)
	}
	return &stats, nil
}

func translate(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "application not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func nonNil(apps []*models.LoanApplication) []*models.LoanApplication {
	if apps == nil {
		return []*models.LoanApplication{}
	}
	return apps
}
