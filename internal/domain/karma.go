package domain

import (
	"math"
	"time"
)

const (
	// KarmaFloor is the hard lower bound on any participant's karma.
	KarmaFloor = 0.1
	// KarmaInitial is granted lazily on a participant's first appearance
	// in a community.
	KarmaInitial = 1.0
)

// Karma is a participant's reputation, scoped per community. Created
// lazily, never deleted, floored at KarmaFloor.
type Karma struct {
	Community     string    `json:"community"`
	ParticipantID string    `json:"participant_id"`
	Value         float64   `json:"value"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// VoteWeight maps karma to vote weight: sqrt(max(k, 0)).
// karma 100 -> 10, karma 1 -> 1, karma 0.1 -> ~0.316.
func VoteWeight(karma float64) float64 {
	return math.Sqrt(math.Max(karma, 0))
}
