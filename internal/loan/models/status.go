package models

// LoanStatus is the officer decision attached to an application.
type LoanStatus string

const (
	LoanStatusPending  LoanStatus = "Pending"
	LoanStatusApproved LoanStatus = "Approved"
	LoanStatusRejected LoanStatus = "Rejected"
)

// ParseLoanStatus returns the status matching s exactly. Matching is case
// sensitive because the stored documents use these spellings.
func ParseLoanStatus(s string) (LoanStatus, bool) {
	switch LoanStatus(s) {
	case LoanStatusPending, LoanStatusApproved, LoanStatusRejected:
		return LoanStatus(s), true
	default:
		return "", false
	}
}

// IsTerminal reports whether no further transition is possible.
func (s LoanStatus) IsTerminal() bool {
	return s == LoanStatusApproved || s == LoanStatusRejected
}

// IsDecision reports whether s is a status an officer may set.
func (s LoanStatus) IsDecision() bool {
	return s.IsTerminal()
}

// CanTransitionTo encodes the life cycle:
//
//	Pending -> Approved
//	Pending -> Rejected
//
// Approved and Rejected are terminal. Nothing returns to Pending.
func (s LoanStatus) CanTransitionTo(next LoanStatus) bool {
	return s == LoanStatusPending && next.IsTerminal()
}
