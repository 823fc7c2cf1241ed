package service

import (
	"context"
	"math"
	"time"

	"kilimokredo/internal/loan/features"
	"kilimokredo/internal/loan/models"
	"kilimokredo/internal/loan/scoring"
	dErrors "kilimokredo/pkg/domain-errors"
	"kilimokredo/pkg/requestcontext"
)

// Overrides are officer-adjusted what-if values. A nil field keeps the base
// application's recorded value.
type Overrides struct {
	PriceOfCrop *float64 `json:"price_of_crop,omitempty"`
	AvgRainfall *float64 `json:"avg_rainfall,omitempty"`
	AvgTemp     *float64 `json:"avg_temp,omitempty"`
	NDVI        *float64 `json:"NDVI,omitempty"`
}

// Validate checks overrides are finite and within the slider ranges:
// price >= 0, rainfall >= 0, NDVI in [-1, 1].
func (o Overrides) Validate() error {
	checks := []struct {
		name string
		v    *float64
		min  float64
		max  float64
	}{
		{"price_of_crop", o.PriceOfCrop, 0, math.Inf(1)},
		{"avg_rainfall", o.AvgRainfall, 0, math.Inf(1)},
		{"avg_temp", o.AvgTemp, math.Inf(-1), math.Inf(1)},
		{"NDVI", o.NDVI, -1, 1},
	}
	for _, c := range checks {
		if c.v == nil {
			continue
		}
		v := *c.v
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return dErrors.Newf(dErrors.CodeValidation, "%s must be a finite number", c.name)
		}
		if v < c.min || v > c.max {
			return dErrors.Newf(dErrors.CodeValidation, "%s is out of range", c.name)
		}
	}
	return nil
}

// ApplicationGetter loads a base application for SimulateByID.
type ApplicationGetter interface {
	Get(ctx context.Context, id string) (*models.LoanApplication, error)
}

// Simulator re-scores what-if variants of an application. It never writes
// anything and keeps no cache.
type Simulator struct {
	apps   ApplicationGetter
	scorer Scorer
	deps
}

// NewSimulator builds a Simulator.
func NewSimulator(apps ApplicationGetter, scorer Scorer, opts ...Option) *Simulator {
	return &Simulator{apps: apps, scorer: scorer, deps: newDeps(opts)}
}

// Merge builds the payload for a what-if run: the base FarmerInput with the
// overridden price, total yield recomputed from the original farm size and
// yield per m², and the environmental features taken from the overrides or
// the base application's model features.
func (s *Simulator) Merge(base *models.LoanApplication, ov Overrides) (models.SimulationPayload, error) {
	if err := ov.Validate(); err != nil {
		return models.SimulationPayload{}, err
	}

	recorded := base.Output.FeaturesUsedByModel
	payload := models.SimulationPayload{
		FarmerInput: base.User,
		AvgRainfall: pick(ov.AvgRainfall, recorded.AvgRainfall),
		AvgTemp:     pick(ov.AvgTemp, recorded.AvgTemp),
		NDVI:        pick(ov.NDVI, recorded.NDVI),
	}
	payload.PriceOfCrop = pick(ov.PriceOfCrop, base.User.PriceOfCrop)
	payload.TotalYieldKsh = features.TotalYield(base.User.FarmSizeSqm, payload.PriceOfCrop, base.User.CropYieldPerSqm)
	return payload, nil
}

// Simulate scores a what-if variant of base and returns only the
// predictions. Gateway errors are returned unchanged.
func (s *Simulator) Simulate(ctx context.Context, base *models.LoanApplication, ov Overrides) (*models.ModelPredictions, error) {
	payload, err := s.Merge(base, ov)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := s.scorer.Score(ctx, scoring.Request{Purpose: scoring.PurposeSimulate, Input: payload})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementSimulations()
	s.logger.InfoContext(ctx, "what-if simulation scored",
		"request_id", requestcontext.RequestID(ctx),
		"application_id", base.ID,
		"credit_score", out.Predictions.CreditScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	predictions := out.Predictions
	return &predictions, nil
}

// SimulateByID loads the base application and simulates against it.
func (s *Simulator) SimulateByID(ctx context.Context, id string, ov Overrides) (*models.ModelPredictions, error) {
	if err := ov.Validate(); err != nil {
		return nil, err
	}
	base, err := s.apps.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Simulate(ctx, base, ov)
}

func pick(override *float64, fallback float64) float64 {
	if override != nil {
		return *override
	}
	return fallback
}
