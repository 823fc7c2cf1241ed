package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"kilimokredo/internal/loan/metrics"
	"kilimokredo/internal/loan/models"
	"kilimokredo/internal/loan/scoring"
)

// Scorer is the inference gateway as seen by this package.
type Scorer interface {
	Score(ctx context.Context, req scoring.Request) (*models.ModelOutput, error)
}

type deps struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	newID   func() string
}

// Option configures Repository, Simulator and Service alike.
type Option func(*deps)

func WithLogger(logger *slog.Logger) Option {
	return func(d *deps) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *deps) {
		d.metrics = m
	}
}

// WithIDGenerator overrides uuid-based application ids.
func WithIDGenerator(fn func() string) Option {
	return func(d *deps) {
		d.newID = fn
	}
}

func newDeps(opts []Option) deps {
	d := deps{
		logger: slog.New(slog.DiscardHandler),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}
