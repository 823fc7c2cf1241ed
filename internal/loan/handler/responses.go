package handler

import "kilimokredo/internal/loan/models"

// ListResponse wraps application listings.
type ListResponse struct {
	Applications []*models.LoanApplication `json:"applications"`
	Count        int                       `json:"count"`
}

func newListResponse(apps []*models.LoanApplication) *ListResponse {
	if apps == nil {
		apps = []*models.LoanApplication{}
	}
	return &ListResponse{Applications: apps, Count: len(apps)}
}

// SimulateResponse carries what-if predictions. Nothing is stored.
type SimulateResponse struct {
	Predictions *models.ModelPredictions `json:"predictions"`
}
