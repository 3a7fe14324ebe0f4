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

const (
	// MinVoters is the quorum: claims with fewer voters cannot resolve.
	MinVoters = 5
	// MinTotalWeight is the minimum combined vote weight to resolve.
	MinTotalWeight = 10.0
	// FactThreshold and FalseThreshold are inclusive: a ratio of exactly
	// 0.60 resolves fact, exactly 0.40 resolves false.
	FactThreshold  = 0.60
	FalseThreshold = 0.40
	// ExtensionWindow is the single extension granted to an inconclusive
	// or underweight claim.
	ExtensionWindow = 24 * time.Hour

	// Karma deltas disbursed on fact/false verdicts.
	MajorityReward  = 1.0
	MinorityPenalty = -1.5
	AuthorReward    = 2.0
	AuthorPenalty   = -2.0
)

var ErrClaimNotFound = errors.New("claim not found")

// Resolution is the outcome of one resolution attempt.
type Resolution struct {
	Status     domain.ClaimStatus
	TrustScore float64
	// Extended is set when the claim was granted its single extension
	// instead of resolving.
	Extended bool
	// Pending is set when quorum was not met and no extension has been
	// consumed: the claim stays open for a later pass.
	Pending bool
}

// ResolutionService drives the claim state machine:
// active -> [extended ->] fact | false | unverified.
type ResolutionService struct {
	claims domain.ClaimStore
	tally  *TallyService
	karma  *KarmaService
	logger *zap.Logger
	locks  *lockTable
}

func NewResolutionService(claims domain.ClaimStore, tally *TallyService, karma *KarmaService, logger *zap.Logger) *ResolutionService {
	return &ResolutionService{
		claims: claims,
		tally:  tally,
		karma:  karma,
		logger: logger,
		locks:  newLockTable(),
	}
}

// Resolve runs one resolution attempt for the claim. It is idempotent:
// a claim that is no longer open yields (nil, nil). Steps are strictly
// ordered: quorum gate, weight gate, threshold, freeze, then karma.
func (s *ResolutionService) Resolve(ctx context.Context, community string, claimID uuid.UUID) (*Resolution, error) {
	unlock := s.locks.Lock(community + "/" + claimID.String())
	defer unlock()

	claim, err := s.claims.GetByID(ctx, community, claimID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	if !claim.Status.Open() {
		// Lost a race with another resolution attempt. Not a fault.
		s.logger.Warn("claim already resolved, skipping",
			zap.String("claim_id", claimID.String()),
			zap.String("status", string(claim.Status)))
		return nil, nil
	}

	t, err := s.tally.Tally(ctx, community, claimID)
	if err != nil {
		return nil, err
	}

	// Quorum gate. Unlike the weight gate this does not consume the
	// extension: an underpopulated claim simply waits for more voters.
	if t.TotalVoters < MinVoters {
		if claim.ExtendedOnce {
			return s.finalize(ctx, claim, domain.ClaimUnverified, 0, t)
		}
		s.logger.Info("quorum not met, claim stays open",
			zap.String("claim_id", claimID.String()),
			zap.Int("voters", t.TotalVoters),
			zap.Int("required", MinVoters))
		return &Resolution{Status: claim.Status, Pending: true}, nil
	}

	// Weight gate.
	if t.TotalWeight() < MinTotalWeight {
		if claim.ExtendedOnce {
			return s.finalize(ctx, claim, domain.ClaimUnverified, 0, t)
		}
		return s.extend(ctx, claim, t)
	}

	r := t.Ratio()
	switch {
	case r >= FactThreshold:
		return s.finalizeWithKarma(ctx, claim, domain.ClaimFact, r, t)
	case r <= FalseThreshold:
		return s.finalizeWithKarma(ctx, claim, domain.ClaimFalse, r, t)
	}

	// Inconclusive.
	if claim.ExtendedOnce {
		return s.finalize(ctx, claim, domain.ClaimUnverified, r, t)
	}
	return s.extend(ctx, claim, t)
}

func (s *ResolutionService) extend(ctx context.Context, claim *domain.Claim, t *Tally) (*Resolution, error) {
	closesAt := time.Now().Add(ExtensionWindow)
	if err := s.claims.ExtendWindow(ctx, claim.ID, closesAt); err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.logger.Warn("extension lost race, skipping",
				zap.String("claim_id", claim.ID.String()))
			return nil, nil
		}
		return nil, err
	}

	s.logger.Info("claim window extended",
		zap.String("community", claim.Community),
		zap.String("claim_id", claim.ID.String()),
		zap.Time("window_closes_at", closesAt),
		zap.Int("voters", t.TotalVoters),
		zap.Float64("total_weight", t.TotalWeight()))
	return &Resolution{Status: domain.ClaimExtended, Extended: true}, nil
}

// finalize freezes the verdict without touching karma (unverified path).
func (s *ResolutionService) finalize(ctx context.Context, claim *domain.Claim, status domain.ClaimStatus, score float64, t *Tally) (*Resolution, error) {
	err := s.claims.MarkResolved(ctx, claim.ID, status, score,
		t.WeightedTrue, t.WeightedFalse, t.TotalVoters, t.TotalWeight())
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.logger.Warn("resolution lost race, skipping",
				zap.String("claim_id", claim.ID.String()))
			return nil, nil
		}
		return nil, err
	}

	s.logger.Info("claim resolved",
		zap.String("community", claim.Community),
		zap.String("claim_id", claim.ID.String()),
		zap.String("status", string(status)),
		zap.Float64("trust_score", score),
		zap.Int("voters", t.TotalVoters))
	return &Resolution{Status: status, TrustScore: score}, nil
}

// finalizeWithKarma freezes a fact/false verdict, then disburses karma.
// The status transition is made durable before any karma moves so a
// failure cannot leave a half-applied resolution that a later pass would
// re-run.
func (s *ResolutionService) finalizeWithKarma(ctx context.Context, claim *domain.Claim, status domain.ClaimStatus, score float64, t *Tally) (*Resolution, error) {
	res, err := s.finalize(ctx, claim, status, score, t)
	if err != nil || res == nil {
		return res, err
	}

	majority := domain.VoteTrue
	if status == domain.ClaimFalse {
		majority = domain.VoteFalse
	}

	for _, v := range t.Votes {
		delta := MajorityReward
		if v.Value != majority {
			delta = MinorityPenalty
		}
		if _, err := s.karma.Add(ctx, claim.Community, v.VoterID, delta); err != nil {
			s.logger.Error("voter karma update failed",
				zap.String("claim_id", claim.ID.String()),
				zap.String("voter_id", v.VoterID),
				zap.Error(err))
		}
	}

	authorDelta := AuthorReward
	if status == domain.ClaimFalse {
		authorDelta = AuthorPenalty
	}
	if _, err := s.karma.Add(ctx, claim.Community, claim.AuthorID, authorDelta); err != nil {
		s.logger.Error("author karma update failed",
			zap.String("claim_id", claim.ID.String()),
			zap.String("author_id", claim.AuthorID),
			zap.Error(err))
	}

	return res, nil
}
