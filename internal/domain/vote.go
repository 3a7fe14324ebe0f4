package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	VoteTrue  = 1
	VoteFalse = -1
)

func ValidVoteValue(v int) bool {
	return v == VoteTrue || v == VoteFalse
}

// Vote is one participant's weighted position on a claim or an
// opposition. Identity is (subject, voter), so a second vote from the
// same participant overwrites the first instead of adding an entry.
type Vote struct {
	Community string    `json:"community"`
	SubjectID uuid.UUID `json:"subject_id"`
	VoterID   string    `json:"voter_id"`
	Value     int       `json:"value"`

	// Weight is sqrt of the voter's karma at cast time. Kept for audit;
	// tallies re-derive weight from live karma.
	Weight float64   `json:"weight"`
	CastAt time.Time `json:"cast_at"`
}
