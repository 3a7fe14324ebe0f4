package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rumornet/arbiter/internal/domain"
	"github.com/rumornet/arbiter/internal/store"
	"go.uber.org/zap"
)

const (
	// MinChallengerKarma is the absolute karma floor to open a challenge;
	// the effective requirement is max of this and the stake fraction of
	// the target's frozen weighted-true score.
	MinChallengerKarma      = 10.0
	ChallengerStakeFraction = 0.20

	// Payouts on a successful challenge.
	OverturnedVoterPenalty  = -4.0
	OverturnedAuthorPenalty = -4.0
	ChallengerSideReward    = 3.0

	// Payouts on a failed challenge. Engaging a challenge and losing
	// costs more than having voted for the overturned fact; the
	// asymmetry is deliberate.
	FailedChallengePenalty = -5.0
	RestoredVoterReward    = 1.0
)

var (
	ErrOppositionNotFound = errors.New("opposition not found")
	ErrClaimNotFact       = errors.New("claim is not a resolved fact")
	ErrAlreadyOpposed     = errors.New("claim has already been opposed")
	ErrInsufficientKarma  = errors.New("insufficient karma to oppose")
	ErrInvalidWindow      = errors.New("opposition window must be 24 or 48 hours")
	ErrOppositionClosed   = errors.New("opposition voting window has closed")
)

// OppositionOutcome is the result of resolving a challenge.
type OppositionOutcome struct {
	Status domain.OppositionStatus
	// ChallengeWeight is the frozen weighted support for the challenge.
	ChallengeWeight float64
}

// OppositionService manages the one-shot challenge against a resolved
// fact: active -> succeeded | failed, flipping the original claim
// fact -> opposed -> false | fact.
type OppositionService struct {
	oppositions domain.OppositionStore
	claims      domain.ClaimStore
	votes       domain.VoteStore
	tally       *TallyService
	karma       *KarmaService
	logger      *zap.Logger
	locks       *lockTable
}

func NewOppositionService(oppositions domain.OppositionStore, claims domain.ClaimStore, votes domain.VoteStore, tally *TallyService, karma *KarmaService, logger *zap.Logger) *OppositionService {
	return &OppositionService{
		oppositions: oppositions,
		claims:      claims,
		votes:       votes,
		tally:       tally,
		karma:       karma,
		logger:      logger,
		locks:       newLockTable(),
	}
}

// Create opens a challenge against a resolved fact claim. All
// preconditions must hold or the request is rejected outright with the
// unmet condition; nothing is queued and no state moves on rejection.
func (s *OppositionService) Create(ctx context.Context, community string, claimID uuid.UUID, challengerID string, windowHours int) (*domain.Opposition, error) {
	if windowHours != 24 && windowHours != 48 {
		return nil, ErrInvalidWindow
	}

	unlock := s.locks.Lock(community + "/" + claimID.String())
	defer unlock()

	claim, err := s.claims.GetByID(ctx, community, claimID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	if claim.OppositionID != nil {
		return nil, ErrAlreadyOpposed
	}
	if claim.Status != domain.ClaimFact {
		return nil, fmt.Errorf("%w: status is %s", ErrClaimNotFact, claim.Status)
	}

	required := math.Max(MinChallengerKarma, ChallengerStakeFraction*claim.WeightedTrue)
	k, err := s.karma.Get(ctx, community, challengerID)
	if err != nil {
		return nil, err
	}
	if k < required {
		return nil, fmt.Errorf("%w: need %.2f, have %.2f (short %.2f)",
			ErrInsufficientKarma, required, k, required-k)
	}

	opp := &domain.Opposition{
		Community:       community,
		OriginalClaimID: claimID,
		ChallengerID:    challengerID,
		Status:          domain.OppositionActive,
		WindowClosesAt:  time.Now().Add(time.Duration(windowHours) * time.Hour),
	}
	if err := s.oppositions.Create(ctx, opp); err != nil {
		return nil, err
	}
	if err := s.claims.MarkOpposed(ctx, claimID, opp.ID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrAlreadyOpposed
		}
		return nil, err
	}

	s.logger.Info("opposition created",
		zap.String("community", community),
		zap.String("claim_id", claimID.String()),
		zap.String("opposition_id", opp.ID.String()),
		zap.String("challenger_id", challengerID),
		zap.Int("window_hours", windowHours))
	return opp, nil
}

func (s *OppositionService) Get(ctx context.Context, community string, oppositionID uuid.UUID) (*domain.Opposition, error) {
	opp, err := s.oppositions.GetByID(ctx, community, oppositionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOppositionNotFound
		}
		return nil, err
	}
	return opp, nil
}

// Vote records a participant's position on an active challenge.
func (s *OppositionService) Vote(ctx context.Context, community string, oppositionID uuid.UUID, voterID string, value int) (*domain.Vote, error) {
	if !domain.ValidVoteValue(value) {
		return nil, ErrInvalidVote
	}

	opp, err := s.oppositions.GetByID(ctx, community, oppositionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOppositionNotFound
		}
		return nil, err
	}
	if opp.Status != domain.OppositionActive || time.Now().After(opp.WindowClosesAt) {
		return nil, fmt.Errorf("%w: closed at %s", ErrOppositionClosed, opp.WindowClosesAt.Format(time.RFC3339))
	}

	k, err := s.karma.Get(ctx, community, voterID)
	if err != nil {
		return nil, err
	}
	v := &domain.Vote{
		Community: community,
		SubjectID: oppositionID,
		VoterID:   voterID,
		Value:     value,
		Weight:    domain.VoteWeight(k),
	}
	if err := s.votes.Put(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Resolve adjudicates an expired challenge. The challenge's weighted
// support is compared against the original claim's frozen weighted-true
// score; the original tally is never recomputed. Retryable end to end:
// a frozen challenge whose claim is still opposed (an earlier attempt
// died between the two writes) has its claim-side work completed here,
// and anything fully resolved no-ops.
func (s *OppositionService) Resolve(ctx context.Context, community string, oppositionID uuid.UUID) (*OppositionOutcome, error) {
	unlock := s.locks.Lock(community + "/" + oppositionID.String())
	defer unlock()

	opp, err := s.oppositions.GetByID(ctx, community, oppositionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOppositionNotFound
		}
		return nil, err
	}
	if opp.Status != domain.OppositionActive {
		return s.complete(ctx, opp)
	}

	claim, err := s.claims.GetByID(ctx, community, opp.OriginalClaimID)
	if err != nil {
		return nil, err
	}

	t, err := s.tally.Tally(ctx, community, oppositionID)
	if err != nil {
		return nil, err
	}
	challengeWeight := t.WeightedTrue

	if claim.Status != domain.ClaimOpposed {
		// The original claim left the opposed state underneath us,
		// normally because it was ghosted. Close the challenge without
		// payouts.
		s.logger.Warn("original claim no longer opposed, failing challenge without payouts",
			zap.String("opposition_id", oppositionID.String()),
			zap.String("claim_id", claim.ID.String()),
			zap.String("claim_status", string(claim.Status)))
		if err := s.oppositions.MarkResolved(ctx, oppositionID, domain.OppositionFailed, challengeWeight, t.TotalVoters); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return nil, nil
			}
			return nil, err
		}
		return &OppositionOutcome{Status: domain.OppositionFailed, ChallengeWeight: challengeWeight}, nil
	}

	if challengeWeight > claim.WeightedTrue {
		return s.succeed(ctx, opp, claim, t)
	}
	return s.fail(ctx, opp, claim, t)
}

func (s *OppositionService) succeed(ctx context.Context, opp *domain.Opposition, claim *domain.Claim, t *Tally) (*OppositionOutcome, error) {
	if err := s.oppositions.MarkResolved(ctx, opp.ID, domain.OppositionSucceeded, t.WeightedTrue, t.TotalVoters); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, nil
		}
		return nil, err
	}
	if err := s.overturn(ctx, opp, claim, t); err != nil {
		return nil, err
	}
	return &OppositionOutcome{Status: domain.OppositionSucceeded, ChallengeWeight: t.WeightedTrue}, nil
}

func (s *OppositionService) fail(ctx context.Context, opp *domain.Opposition, claim *domain.Claim, t *Tally) (*OppositionOutcome, error) {
	if err := s.oppositions.MarkResolved(ctx, opp.ID, domain.OppositionFailed, t.WeightedTrue, t.TotalVoters); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, nil
		}
		return nil, err
	}
	if err := s.restore(ctx, opp, claim, t); err != nil {
		return nil, err
	}
	return &OppositionOutcome{Status: domain.OppositionFailed, ChallengeWeight: t.WeightedTrue}, nil
}

// complete handles a challenge that is already frozen. Normally the
// claim has moved on too and this is the idempotent no-op, but a crash
// between freezing the challenge and flipping the claim strands the
// claim in opposed; re-deriving the claim-side work from the frozen
// challenge status lets the next pass finish the resolution instead of
// abandoning it half-applied.
func (s *OppositionService) complete(ctx context.Context, opp *domain.Opposition) (*OppositionOutcome, error) {
	claim, err := s.claims.GetByID(ctx, opp.Community, opp.OriginalClaimID)
	if err != nil {
		return nil, err
	}
	if claim.Status != domain.ClaimOpposed {
		s.logger.Warn("opposition already resolved, skipping",
			zap.String("opposition_id", opp.ID.String()),
			zap.String("status", string(opp.Status)))
		return nil, nil
	}

	s.logger.Warn("resolved challenge left claim opposed, completing",
		zap.String("community", opp.Community),
		zap.String("opposition_id", opp.ID.String()),
		zap.String("claim_id", claim.ID.String()),
		zap.String("challenge_status", string(opp.Status)))

	t, err := s.tally.Tally(ctx, opp.Community, opp.ID)
	if err != nil {
		return nil, err
	}

	if opp.Status == domain.OppositionSucceeded {
		if err := s.overturn(ctx, opp, claim, t); err != nil {
			return nil, err
		}
	} else {
		if err := s.restore(ctx, opp, claim, t); err != nil {
			return nil, err
		}
	}
	return &OppositionOutcome{Status: opp.Status, ChallengeWeight: opp.ChallengeWeight}, nil
}

// overturn flips the opposed claim to false and disburses the overturn
// payouts. A conflict on the claim transition means another actor moved
// the claim, and the payouts stay with whoever won that race.
func (s *OppositionService) overturn(ctx context.Context, opp *domain.Opposition, claim *domain.Claim, t *Tally) error {
	// Read the vote set before the transition so the only failures left
	// after the claim flips are individually-logged karma updates.
	claimVotes, err := s.votes.ListBySubject(ctx, opp.Community, claim.ID)
	if err != nil {
		return err
	}

	if err := s.claims.MarkOverturned(ctx, claim.ID, 1-claim.TrustScore); err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.logger.Warn("claim left opposed state underneath overturn, skipping payouts",
				zap.String("opposition_id", opp.ID.String()),
				zap.String("claim_id", claim.ID.String()))
			return nil
		}
		return err
	}

	for _, v := range claimVotes {
		if v.Value == domain.VoteTrue {
			if _, err := s.karma.Add(ctx, opp.Community, v.VoterID, OverturnedVoterPenalty); err != nil {
				s.logger.Error("overturned voter penalty failed",
					zap.String("voter_id", v.VoterID), zap.Error(err))
			}
		}
	}
	if _, err := s.karma.Add(ctx, opp.Community, claim.AuthorID, OverturnedAuthorPenalty); err != nil {
		s.logger.Error("overturned author penalty failed",
			zap.String("author_id", claim.AuthorID), zap.Error(err))
	}
	for _, v := range t.Votes {
		if v.Value == domain.VoteTrue {
			if _, err := s.karma.Add(ctx, opp.Community, v.VoterID, ChallengerSideReward); err != nil {
				s.logger.Error("challenge supporter reward failed",
					zap.String("voter_id", v.VoterID), zap.Error(err))
			}
		}
	}

	s.logger.Info("opposition succeeded, fact overturned",
		zap.String("community", opp.Community),
		zap.String("opposition_id", opp.ID.String()),
		zap.String("claim_id", claim.ID.String()),
		zap.Float64("challenge_weight", t.WeightedTrue),
		zap.Float64("original_weighted_true", claim.WeightedTrue))
	return nil
}

// restore returns the opposed claim to fact and disburses the
// failed-challenge payouts. Same conflict handling as overturn.
func (s *OppositionService) restore(ctx context.Context, opp *domain.Opposition, claim *domain.Claim, t *Tally) error {
	claimVotes, err := s.votes.ListBySubject(ctx, opp.Community, claim.ID)
	if err != nil {
		return err
	}

	if err := s.claims.MarkRestored(ctx, claim.ID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.logger.Warn("claim left opposed state underneath restore, skipping payouts",
				zap.String("opposition_id", opp.ID.String()),
				zap.String("claim_id", claim.ID.String()))
			return nil
		}
		return err
	}

	// Everyone who engaged the challenge pays, whichever way they voted.
	for _, v := range t.Votes {
		if _, err := s.karma.Add(ctx, opp.Community, v.VoterID, FailedChallengePenalty); err != nil {
			s.logger.Error("failed challenge penalty failed",
				zap.String("voter_id", v.VoterID), zap.Error(err))
		}
	}

	for _, v := range claimVotes {
		if v.Value == domain.VoteTrue {
			if _, err := s.karma.Add(ctx, opp.Community, v.VoterID, RestoredVoterReward); err != nil {
				s.logger.Error("restored voter reward failed",
					zap.String("voter_id", v.VoterID), zap.Error(err))
			}
		}
	}

	s.logger.Info("opposition failed, fact restored",
		zap.String("community", opp.Community),
		zap.String("opposition_id", opp.ID.String()),
		zap.String("claim_id", claim.ID.String()),
		zap.Float64("challenge_weight", t.WeightedTrue),
		zap.Float64("original_weighted_true", claim.WeightedTrue))
	return nil
}
