package models

import "time"

// LoanApplication is the aggregate root for one scored loan request.
//
// Invariants:
//   - User.TotalYieldKsh equals FarmSizeSqm * PriceOfCrop * CropYieldPerSqm
//   - Output comes from exactly one successful scoring call
//   - Others.LoanStatus starts Pending and changes at most once
//   - Applications are never deleted
type LoanApplication struct {
	ID        string      `json:"id"`
	FarmerID  string      `json:"farmerId"`
	User      FarmerInput `json:"user"`
	Output    ModelOutput `json:"output"`
	Others    Others      `json:"others"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
	DecidedAt *time.Time  `json:"decidedAt,omitempty"`
}

// Others carries the loan request terms and its decision.
type Others struct {
	LoanAmountRequested float64    `json:"loanAmountRequested"`
	LoanStatus          LoanStatus `json:"loanStatus"`
}

// NewLoanApplication builds a Pending application.
func NewLoanApplication(id, farmerID string, input FarmerInput, output ModelOutput, amount float64, now time.Time) *LoanApplication {
	return &LoanApplication{
		ID:       id,
		FarmerID: farmerID,
		User:     input,
		Output:   output,
		Others: Others{
			LoanAmountRequested: amount,
			LoanStatus:          LoanStatusPending,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Status is shorthand for Others.LoanStatus.
func (a *LoanApplication) Status() LoanStatus {
	return a.Others.LoanStatus
}

// ApplyDecision records a terminal status. Callers check CanTransitionTo first.
func (a *LoanApplication) ApplyDecision(status LoanStatus, now time.Time) {
	a.Others.LoanStatus = status
	a.UpdatedAt = now
	decided := now
	a.DecidedAt = &decided
}

// Stats are dashboard counts by status.
type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// Add counts n applications with the given status.
func (s *Stats) Add(status LoanStatus, n int) {
	s.Total += n
	switch status {
	case LoanStatusPending:
		s.Pending += n
	case LoanStatusApproved:
		s.Approved += n
	case LoanStatusRejected:
		s.Rejected += n
	}
}
