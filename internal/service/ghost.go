package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rumornet/arbiter/internal/domain"
	"github.com/rumornet/arbiter/internal/store"
	"go.uber.org/zap"
)

// GhostService soft-deletes claims. A ghosted claim keeps its identity
// for referential integrity but its votes stop counting toward anything,
// and any karma its resolution disbursed is reversed delta-for-delta.
type GhostService struct {
	claims domain.ClaimStore
	votes  domain.VoteStore
	karma  *KarmaService
	logger *zap.Logger
	locks  *lockTable
}

func NewGhostService(claims domain.ClaimStore, votes domain.VoteStore, karma *KarmaService, logger *zap.Logger) *GhostService {
	return &GhostService{
		claims: claims,
		votes:  votes,
		karma:  karma,
		logger: logger,
		locks:  newLockTable(),
	}
}

// Ghost soft-deletes the claim. Idempotent: ghosting a ghost is a no-op.
func (s *GhostService) Ghost(ctx context.Context, community string, claimID uuid.UUID) error {
	unlock := s.locks.Lock(community + "/" + claimID.String())
	defer unlock()

	claim, err := s.claims.GetByID(ctx, community, claimID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrClaimNotFound
		}
		return err
	}
	if claim.Status == domain.ClaimGhost {
		s.logger.Warn("claim already ghosted, skipping",
			zap.String("claim_id", claimID.String()))
		return nil
	}

	// Read the vote set before the transition goes durable: once the
	// claim is ghost a retry no-ops, so the reversal must not depend on
	// any read that can still fail.
	var votes []domain.Vote
	if disbursed(claim) {
		votes, err = s.votes.ListBySubject(ctx, community, claimID)
		if err != nil {
			return err
		}
	}

	if err := s.claims.MarkGhosted(ctx, claimID, time.Now()); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil
		}
		return err
	}

	if disbursed(claim) {
		s.reverseDisbursement(ctx, claim, votes)
	}

	s.logger.Info("claim ghosted",
		zap.String("community", community),
		zap.String("claim_id", claimID.String()),
		zap.String("prior_status", string(claim.Status)))

	return s.cascade(ctx, claim)
}

// disbursed reports whether the claim's resolution paid out karma.
// Fact and false verdicts disburse; unverified does not. Opposed claims
// resolved as fact before the challenge opened, so they disbursed too.
func disbursed(c *domain.Claim) bool {
	switch c.Status {
	case domain.ClaimFact, domain.ClaimFalse, domain.ClaimOpposed:
		return c.TotalWeight > 0
	}
	return false
}

// originallyFact derives the resolution-time verdict from the frozen
// aggregates. A claim overturned to false by an opposition still carries
// the fact-era aggregates, and it is the fact disbursement that must be
// inverted.
func originallyFact(c *domain.Claim) bool {
	return c.WeightedTrue/c.TotalWeight >= FactThreshold
}

// reverseDisbursement is a compensating transaction, not a
// recomputation: each party receives exactly the inverse of the delta
// resolution granted them, with the same karma floor applied.
func (s *GhostService) reverseDisbursement(ctx context.Context, claim *domain.Claim, votes []domain.Vote) {
	majority := domain.VoteTrue
	authorDelta := AuthorReward
	if !originallyFact(claim) {
		majority = domain.VoteFalse
		authorDelta = AuthorPenalty
	}

	for _, v := range votes {
		delta := -MajorityReward
		if v.Value != majority {
			delta = -MinorityPenalty
		}
		if _, err := s.karma.Add(ctx, claim.Community, v.VoterID, delta); err != nil {
			s.logger.Error("karma reversal failed for voter",
				zap.String("claim_id", claim.ID.String()),
				zap.String("voter_id", v.VoterID),
				zap.Error(err))
		}
	}
	if _, err := s.karma.Add(ctx, claim.Community, claim.AuthorID, -authorDelta); err != nil {
		s.logger.Error("karma reversal failed for author",
			zap.String("claim_id", claim.ID.String()),
			zap.String("author_id", claim.AuthorID),
			zap.Error(err))
	}

	s.logger.Info("karma disbursement reversed",
		zap.String("community", claim.Community),
		zap.String("claim_id", claim.ID.String()),
		zap.Int("voters", len(votes)))
}

// cascade inspects claims referencing the ghosted one. Frozen dependents
// keep their scores untouched; open dependents keep collecting votes on
// their own merits. Both cases are only logged. Recomputing frozen
// dependents is deliberately not done here.
func (s *GhostService) cascade(ctx context.Context, claim *domain.Claim) error {
	deps, err := s.claims.ListReferencing(ctx, claim.Community, claim.ID)
	if err != nil {
		return err
	}

	for _, dep := range deps {
		if dep.Status.Open() {
			s.logger.Warn("open claim lost a referenced claim to ghosting",
				zap.String("community", claim.Community),
				zap.String("ghosted_id", claim.ID.String()),
				zap.String("dependent_id", dep.ID.String()),
				zap.String("dependent_status", string(dep.Status)))
		} else {
			s.logger.Info("frozen claim references ghosted claim, score left frozen",
				zap.String("community", claim.Community),
				zap.String("ghosted_id", claim.ID.String()),
				zap.String("dependent_id", dep.ID.String()),
				zap.String("dependent_status", string(dep.Status)))
		}
	}
	return nil
}
