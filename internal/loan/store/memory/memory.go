package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"kilimokredo/internal/loan/models"
	"kilimokredo/internal/loan/store"
	"kilimokredo/pkg/platform/sentinel"
)

// Store is a mutex-guarded in-memory application store. Values are copied on
// the way in and out so callers never share state with the store.
type Store struct {
	mu   sync.RWMutex
	apps map[string]*models.LoanApplication
}

var _ store.Store = (*Store)(nil)

// New constructs an empty store.
func New() *Store {
	return &Store{apps: make(map[string]*models.LoanApplication)}
}

func (s *Store) Create(_ context.Context, app *models.LoanApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.apps[app.ID]; exists {
		return fmt.Errorf("application %s already exists", app.ID)
	}
	s.apps[app.ID] = clone(app)
	return nil
}

func (s *Store) FindByID(_ context.Context, id string) (*models.LoanApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(app), nil
}

func (s *Store) Find(_ context.Context, filter store.Filter, limit int) ([]*models.LoanApplication, error) {
	s.mu.RLock()
	out := make([]*models.LoanApplication, 0, len(s.apps))
	for _, app := range s.apps {
		if filter.Matches(app) {
			out = append(out, clone(app))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpdateStatusIfPending(_ context.Context, id string, status models.LoanStatus, now time.Time) (*models.LoanApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if app.Others.LoanStatus != models.LoanStatusPending {
		return nil, sentinel.ErrInvalidState
	}
	app.ApplyDecision(status, now)
	return clone(app), nil
}

func (s *Store) CountByStatus(_ context.Context) (map[models.LoanStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.LoanStatus]int, 3)
	for _, app := range s.apps {
		counts[app.Others.LoanStatus]++
	}
	return counts, nil
}

func clone(app *models.LoanApplication) *models.LoanApplication {
	c := *app
	if app.DecidedAt != nil {
		t := *app.DecidedAt
		c.DecidedAt = &t
	}
	return &c
}
