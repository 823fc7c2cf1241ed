package handler

import (
	"strings"

	"kilimokredo/internal/loan/models"
	"kilimokredo/internal/loan/service"
	dErrors "kilimokredo/pkg/domain-errors"
)

// SubmitRequest is the body of POST /applications. FarmerID is only honoured
// in placeholder auth mode.
type SubmitRequest struct {
	ApplicationData     models.RawInput    `json:"applicationData"`
	FarmProfile         models.FarmProfile `json:"farmProfile"`
	LoanAmountRequested models.FlexNumber  `json:"loanAmountRequested"`
	FarmerID            string             `json:"farmerId,omitempty"`
}

// Validate trims identifiers. Field checks belong to the feature deriver.
func (r *SubmitRequest) Validate() error {
	r.FarmerID = strings.TrimSpace(r.FarmerID)
	r.ApplicationData.CropType = strings.TrimSpace(r.ApplicationData.CropType)
	return nil
}

// UpdateStatusRequest is the body of PATCH /applications/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`

	parsed models.LoanStatus
}

func (r *UpdateStatusRequest) Validate() error {
	status, ok := models.ParseLoanStatus(r.Status)
	if !ok {
		return dErrors.Newf(dErrors.CodeValidation, "invalid status %q", r.Status)
	}
	r.parsed = status
	return nil
}

// ParsedStatus is valid after Validate.
func (r *UpdateStatusRequest) ParsedStatus() models.LoanStatus {
	return r.parsed
}

// SimulateRequest is the body of POST /applications/{id}/simulate.
type SimulateRequest struct {
	service.Overrides
}

func (r *SimulateRequest) Validate() error {
	return r.Overrides.Validate()
}
