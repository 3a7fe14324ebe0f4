package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rumornet/arbiter/internal/domain"
	"go.uber.org/zap"
)

// WeightedVote is a stored vote paired with the weight derived from the
// voter's karma at tally time.
type WeightedVote struct {
	domain.Vote
	LiveWeight float64
}

// Tally holds the aggregate weighted position on one voting subject.
type Tally struct {
	WeightedTrue  float64
	WeightedFalse float64
	TotalVoters   int
	Votes         []WeightedVote
}

func (t *Tally) TotalWeight() float64 {
	return t.WeightedTrue + t.WeightedFalse
}

// Ratio is WeightedTrue over total weight. Callers must gate on
// TotalWeight() > 0 first.
func (t *Tally) Ratio() float64 {
	return t.WeightedTrue / t.TotalWeight()
}

// TallyService aggregates a subject's votes, re-weighting each by the
// voter's current karma. The weight recorded at cast time is ignored:
// karma may have moved between casting and resolution, and the live value
// is the one that counts.
type TallyService struct {
	votes  domain.VoteStore
	karma  *KarmaService
	logger *zap.Logger
}

func NewTallyService(votes domain.VoteStore, karma *KarmaService, logger *zap.Logger) *TallyService {
	return &TallyService{votes: votes, karma: karma, logger: logger}
}

func (s *TallyService) Tally(ctx context.Context, community string, subjectID uuid.UUID) (*Tally, error) {
	votes, err := s.votes.ListBySubject(ctx, community, subjectID)
	if err != nil {
		return nil, err
	}

	t := &Tally{TotalVoters: len(votes)}
	for _, v := range votes {
		k, err := s.karma.Get(ctx, community, v.VoterID)
		if err != nil {
			return nil, err
		}
		w := domain.VoteWeight(k)

		wv := WeightedVote{Vote: v, LiveWeight: w}
		t.Votes = append(t.Votes, wv)
		if v.Value == domain.VoteTrue {
			t.WeightedTrue += w
		} else {
			t.WeightedFalse += w
		}

		s.logger.Debug("tallied vote",
			zap.String("community", community),
			zap.String("subject_id", subjectID.String()),
			zap.String("voter_id", v.VoterID),
			zap.Int("value", v.Value),
			zap.Float64("weight", w))
	}
	return t, nil
}
