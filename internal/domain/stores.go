package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ClaimStore interface {
	Create(ctx context.Context, c *Claim) error
	GetByID(ctx context.Context, community string, id uuid.UUID) (*Claim, error)
	// ListByCommunity returns the community's claims with ghosted claims
	// filtered out. Ghosts remain addressable through GetByID.
	ListByCommunity(ctx context.Context, community string) ([]Claim, error)
	// ListExpiring returns open claims across all communities whose
	// voting window closed at or before now.
	ListExpiring(ctx context.Context, now time.Time) ([]Claim, error)
	// ListReferencing returns claims that point at the given claim via
	// parent or opposition references.
	ListReferencing(ctx context.Context, community string, id uuid.UUID) ([]Claim, error)

	// ExtendWindow grants the claim its single extension. Only applies
	// while the claim is open.
	ExtendWindow(ctx context.Context, id uuid.UUID, closesAt time.Time) error
	// MarkResolved freezes the verdict and aggregates. Only applies while
	// the claim is open; returns ErrConflict otherwise.
	MarkResolved(ctx context.Context, id uuid.UUID, status ClaimStatus, trustScore, weightedTrue, weightedFalse float64, totalVoters int, totalWeight float64) error
	// MarkOpposed records the single permitted opposition and moves the
	// claim fact -> opposed.
	MarkOpposed(ctx context.Context, id uuid.UUID, oppositionID uuid.UUID) error
	// MarkOverturned flips an opposed claim to false with a new frozen
	// score. The opposition reference stays set.
	MarkOverturned(ctx context.Context, id uuid.UUID, trustScore float64) error
	// MarkRestored returns an opposed claim to fact after a failed
	// challenge. The opposition reference stays set, locking the claim
	// against further opposition.
	MarkRestored(ctx context.Context, id uuid.UUID) error
	// MarkGhosted soft-deletes the claim and nullifies its votes.
	MarkGhosted(ctx context.Context, id uuid.UUID, ghostedAt time.Time) error
}

type VoteStore interface {
	// Put inserts or overwrites the (subject, voter) vote.
	Put(ctx context.Context, v *Vote) error
	ListBySubject(ctx context.Context, community string, subjectID uuid.UUID) ([]Vote, error)
}

type OppositionStore interface {
	Create(ctx context.Context, o *Opposition) error
	GetByID(ctx context.Context, community string, id uuid.UUID) (*Opposition, error)
	ListExpiring(ctx context.Context, now time.Time) ([]Opposition, error)
	// MarkResolved freezes the challenge outcome. Only applies while the
	// opposition is active; returns ErrConflict otherwise.
	MarkResolved(ctx context.Context, id uuid.UUID, status OppositionStatus, challengeWeight float64, totalVoters int) error
}

type KarmaStore interface {
	// Get returns the participant's karma, KarmaInitial if absent.
	Get(ctx context.Context, community, participantID string) (float64, error)
	// Add atomically applies max(KarmaFloor, old+delta) and returns the
	// new value, creating the record at KarmaInitial+delta if absent.
	Add(ctx context.Context, community, participantID string, delta float64) (float64, error)
}
