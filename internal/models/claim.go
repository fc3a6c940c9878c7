package models

import "time"

// Claim statuses. A claim moves submitted -> in_review -> approved|rejected,
// and approved claims move to paid once settled.
const (
	ClaimStatusSubmitted = "submitted"
	ClaimStatusInReview  = "in_review"
	ClaimStatusApproved  = "approved"
	ClaimStatusRejected  = "rejected"
	ClaimStatusPaid      = "paid"
)

type Claim struct {
	ID          string
	ClaimNumber string
	PolicyID    string
	Amount      float64
	Status      string
	Description string
	FiledBy     string // user id of the filer
	FiledAt     time.Time
	ResolvedAt  *time.Time
}

// ClaimStatusTotal aggregates claims of one status.
type ClaimStatusTotal struct {
	Count  int64   `json:"count"`
	Amount float64 `json:"amount"`
}

// ValidClaimStatus reports whether s is a recognized claim status.
func ValidClaimStatus(s string) bool {
	switch s {
	case ClaimStatusSubmitted, ClaimStatusInReview, ClaimStatusApproved, ClaimStatusRejected, ClaimStatusPaid:
		return true
	}
	return false
}
