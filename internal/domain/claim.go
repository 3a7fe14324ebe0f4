package domain

import (
	"time"

	"github.com/google/uuid"
)

type ClaimStatus string

const (
	ClaimActive     ClaimStatus = "active"
	ClaimExtended   ClaimStatus = "extended"
	ClaimFact       ClaimStatus = "fact"
	ClaimFalse      ClaimStatus = "false"
	ClaimUnverified ClaimStatus = "unverified"
	ClaimOpposed    ClaimStatus = "opposed"
	ClaimGhost      ClaimStatus = "ghost"
)

// Open reports whether the claim is still collecting votes and may be
// resolved by the scheduler.
func (s ClaimStatus) Open() bool {
	return s == ClaimActive || s == ClaimExtended
}

// Frozen reports whether the claim's trust score and aggregates are
// immutable. Opposed claims resolved as fact first, so their score is
// frozen too even though the status may still flip once.
func (s ClaimStatus) Frozen() bool {
	switch s {
	case ClaimFact, ClaimFalse, ClaimUnverified, ClaimOpposed, ClaimGhost:
		return true
	}
	return false
}

func ValidClaimStatus(s string) bool {
	switch ClaimStatus(s) {
	case ClaimActive, ClaimExtended, ClaimFact, ClaimFalse, ClaimUnverified, ClaimOpposed, ClaimGhost:
		return true
	}
	return false
}

type Claim struct {
	ID             uuid.UUID   `json:"id"`
	Community      string      `json:"community"`
	AuthorID       string      `json:"author_id"`
	Body           string      `json:"body"`
	ParentClaimID  *uuid.UUID  `json:"parent_claim_id,omitempty"`
	Status         ClaimStatus `json:"status"`
	WindowClosesAt time.Time   `json:"window_closes_at"`
	ExtendedOnce   bool        `json:"extended_once"`

	// TrustScore is undefined while the claim is open and frozen the
	// moment it resolves.
	TrustScore    float64 `json:"trust_score"`
	WeightedTrue  float64 `json:"weighted_true"`
	WeightedFalse float64 `json:"weighted_false"`
	TotalVoters   int     `json:"total_voters"`
	TotalWeight   float64 `json:"total_weight"`

	// OppositionID references the single opposition ever permitted
	// against this claim. Never cleared once set.
	OppositionID *uuid.UUID `json:"opposition_id,omitempty"`

	VotesNullified bool       `json:"votes_nullified"`
	GhostedAt      *time.Time `json:"ghosted_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
