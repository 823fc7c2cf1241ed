package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kilimokredo/internal/loan/models"
	"kilimokredo/internal/loan/store"
	"kilimokredo/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
	base  time.Time
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
	s.base = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
}

func (s *MemoryStoreSuite) seed(id, farmerID string, offset time.Duration) *models.LoanApplication {
	app := models.NewLoanApplication(id, farmerID, models.FarmerInput{CropType: "Maize"}, models.ModelOutput{}, 50000, s.base.Add(offset))
	s.Require().NoError(s.store.Create(s.ctx, app))
	return app
}

func (s *MemoryStoreSuite) TestCreateAndFind() {
	s.seed("a1", "f1", 0)

	s.Run("found by id", func() {
		got, err := s.store.FindByID(s.ctx, "a1")
		s.Require().NoError(err)
		s.Equal("f1", got.FarmerID)
		s.Equal(models.LoanStatusPending, got.Status())
	})

	s.Run("unknown id", func() {
		_, err := s.store.FindByID(s.ctx, "missing")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("duplicate id rejected", func() {
		err := s.store.Create(s.ctx, models.NewLoanApplication("a1", "f2", models.FarmerInput{}, models.ModelOutput{}, 1, s.base))
		s.Error(err)
	})

	s.Run("returned values are copies", func() {
		got, err := s.store.FindByID(s.ctx, "a1")
		s.Require().NoError(err)
		got.Others.LoanStatus = models.LoanStatusApproved

		again, err := s.store.FindByID(s.ctx, "a1")
		s.Require().NoError(err)
		s.Equal(models.LoanStatusPending, again.Status())
	})
}

func (s *MemoryStoreSuite) TestFindOrderingAndFilter() {
	s.seed("old", "f1", 0)
	s.seed("mid", "f2", time.Hour)
	s.seed("new", "f1", 2*time.Hour)

	all, err := s.store.Find(s.ctx, store.Filter{}, 0)
	s.Require().NoError(err)
	s.Equal([]string{"new", "mid", "old"}, ids(all))

	mine, err := s.store.Find(s.ctx, store.Filter{FarmerID: "f1"}, 0)
	s.Require().NoError(err)
	s.Equal([]string{"new", "old"}, ids(mine))

	limited, err := s.store.Find(s.ctx, store.Filter{}, 1)
	s.Require().NoError(err)
	s.Equal([]string{"new"}, ids(limited))

	_, err = s.store.UpdateStatusIfPending(s.ctx, "mid", models.LoanStatusRejected, s.base)
	s.Require().NoError(err)
	rejected, err := s.store.Find(s.ctx, store.Filter{Status: models.LoanStatusRejected}, 0)
	s.Require().NoError(err)
	s.Equal([]string{"mid"}, ids(rejected))
}

func (s *MemoryStoreSuite) TestUpdateStatusIfPending() {
	s.seed("a1", "f1", 0)
	decided := s.base.Add(time.Hour)

	updated, err := s.store.UpdateStatusIfPending(s.ctx, "a1", models.LoanStatusApproved, decided)
	s.Require().NoError(err)
	s.Equal(models.LoanStatusApproved, updated.Status())
	s.Require().NotNil(updated.DecidedAt)
	s.Equal(decided, *updated.DecidedAt)

	_, err = s.store.UpdateStatusIfPending(s.ctx, "a1", models.LoanStatusRejected, decided)
	s.ErrorIs(err, sentinel.ErrInvalidState)

	got, err := s.store.FindByID(s.ctx, "a1")
	s.Require().NoError(err)
	s.Equal(models.LoanStatusApproved, got.Status(), "a failed transition leaves the document unchanged")

	_, err = s.store.UpdateStatusIfPending(s.ctx, "ghost", models.LoanStatusApproved, decided)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestConcurrentTransitionsHaveOneWinner() {
	s.seed("a1", "f1", 0)

	const workers = 32
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		invalid int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := models.LoanStatusApproved
			if i%2 == 0 {
				status = models.LoanStatusRejected
			}
			_, err := s.store.UpdateStatusIfPending(s.ctx, "a1", status, s.base)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, sentinel.ErrInvalidState):
				invalid++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, wins)
	s.Equal(workers-1, invalid)
}

func (s *MemoryStoreSuite) TestCountByStatus() {
	s.seed("a1", "f1", 0)
	s.seed("a2", "f1", time.Minute)
	s.seed("a3", "f2", 2*time.Minute)
	_, err := s.store.UpdateStatusIfPending(s.ctx, "a3", models.LoanStatusApproved, s.base)
	s.Require().NoError(err)

	counts, err := s.store.CountByStatus(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, counts[models.LoanStatusPending])
	s.Equal(1, counts[models.LoanStatusApproved])
	s.Equal(0, counts[models.LoanStatusRejected])
}

func ids(apps []*models.LoanApplication) []string {
	out := make([]string, len(apps))
	for i, a := range apps {
		out[i] = a.ID
	}
	return out
}
