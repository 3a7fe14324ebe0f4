package domain

import (
	"time"

	"github.com/google/uuid"
)

type OppositionStatus string

const (
	OppositionActive    OppositionStatus = "active"
	OppositionSucceeded OppositionStatus = "succeeded"
	OppositionFailed    OppositionStatus = "failed"
)

func ValidOppositionStatus(s string) bool {
	switch OppositionStatus(s) {
	case OppositionActive, OppositionSucceeded, OppositionFailed:
		return true
	}
	return false
}

// Opposition is the one-shot challenge permitted against a resolved fact
// claim. It collects its own vote set over its own window but resolves by
// comparing challenge support against the original claim's frozen
// weighted-true score.
type Opposition struct {
	ID              uuid.UUID        `json:"id"`
	Community       string           `json:"community"`
	OriginalClaimID uuid.UUID        `json:"original_claim_id"`
	ChallengerID    string           `json:"challenger_id"`
	Status          OppositionStatus `json:"status"`
	WindowClosesAt  time.Time        `json:"window_closes_at"`

	// Frozen at resolution.
	ChallengeWeight float64 `json:"challenge_weight"`
	TotalVoters     int     `json:"total_voters"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
