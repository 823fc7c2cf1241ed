// Package service holds the loan evaluation use cases: submission, the
// application repository with its status life cycle, and what-if simulation.
package service

import (
	"context"

	"kilimokredo/internal/loan/features"
	"kilimokredo/internal/loan/models"
	"kilimokredo/internal/loan/scoring"
	dErrors "kilimokredo/pkg/domain-errors"
	"kilimokredo/pkg/requestcontext"
)

// SubmitRequest is a farmer's loan application as entered.
type SubmitRequest struct {
	FarmerID            string
	Raw                 models.RawInput
	Profile             models.FarmProfile
	LoanAmountRequested models.FlexNumber
}

// Service is the facade the HTTP layer talks to. Repository and Simulator
// methods are promoted.
type Service struct {
	*Repository
	*Simulator
	scorer Scorer
	deps
}

// New wires the repository, simulator and scorer together.
func New(repo *Repository, scorer Scorer, opts ...Option) *Service {
	return &Service{
		Repository: repo,
		Simulator:  NewSimulator(repo, scorer, opts...),
		scorer:     scorer,
		deps:       newDeps(opts),
	}
}

// Submit derives the scoring payload, scores it once and stores the result
// as a Pending application. Nothing is stored if any step fails, and no
// derivation or scoring happens without a farmer identity.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.LoanApplication, error) {
	if req.FarmerID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "Not Authenticated")
	}

	input, err := features.Derive(req.Raw, req.Profile)
	if err != nil {
		return nil, err
	}
	amount, err := features.LoanAmount(req.LoanAmountRequested)
	if err != nil {
		return nil, err
	}

	out, err := s.scorer.Score(ctx, scoring.Request{Purpose: scoring.PurposeSubmit, Input: input})
	if err != nil {
		s.logger.WarnContext(ctx, "loan application not stored",
			"request_id", requestcontext.RequestID(ctx),
			"farmer_id", req.FarmerID,
			"reason", dErrors.CodeOf(err),
		)
		return nil, err
	}

	return s.Create(ctx, req.FarmerID, input, *out, amount)
}
