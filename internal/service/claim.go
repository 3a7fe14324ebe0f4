package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rumornet/arbiter/internal/domain"
	"github.com/rumornet/arbiter/internal/store"
	"go.uber.org/zap"
)

const (
	// DefaultClaimWindow applies when the author does not pick one.
	DefaultClaimWindow = 24 * time.Hour
	// MaxClaimWindowHours bounds the author-selected voting window.
	MaxClaimWindowHours = 168
)

var (
	ErrClaimBodyEmpty  = errors.New("claim body is required")
	ErrInvalidVote     = errors.New("vote value must be +1 or -1")
	ErrWindowClosed    = errors.New("voting window has closed")
	ErrInvalidWindowHours = errors.New("window_hours out of range")
)

// ClaimService covers the write surface outside the engines: posting
// claims and casting votes. Both write straight to the store; resolution
// is exclusively the scheduler's job.
type ClaimService struct {
	claims domain.ClaimStore
	votes  domain.VoteStore
	karma  *KarmaService
	logger *zap.Logger
}

func NewClaimService(claims domain.ClaimStore, votes domain.VoteStore, karma *KarmaService, logger *zap.Logger) *ClaimService {
	return &ClaimService{claims: claims, votes: votes, karma: karma, logger: logger}
}

func (s *ClaimService) Post(ctx context.Context, community, authorID, body string, parentID *uuid.UUID, windowHours int) (*domain.Claim, error) {
	if body == "" {
		return nil, ErrClaimBodyEmpty
	}
	window := DefaultClaimWindow
	if windowHours != 0 {
		if windowHours < 1 || windowHours > MaxClaimWindowHours {
			return nil, fmt.Errorf("%w: got %d, want 1-%d", ErrInvalidWindowHours, windowHours, MaxClaimWindowHours)
		}
		window = time.Duration(windowHours) * time.Hour
	}

	claim := &domain.Claim{
		Community:      community,
		AuthorID:       authorID,
		Body:           body,
		ParentClaimID:  parentID,
		Status:         domain.ClaimActive,
		WindowClosesAt: time.Now().Add(window),
	}
	if err := s.claims.Create(ctx, claim); err != nil {
		return nil, err
	}

	s.logger.Info("claim posted",
		zap.String("community", community),
		zap.String("claim_id", claim.ID.String()),
		zap.String("author_id", authorID),
		zap.Time("window_closes_at", claim.WindowClosesAt))
	return claim, nil
}

// Vote casts or overwrites the voter's position on an open claim. A vote
// landing after the scheduler's tally read is silently excluded from that
// resolution; votes against a closed window are rejected with the reason.
func (s *ClaimService) Vote(ctx context.Context, community string, claimID uuid.UUID, voterID string, value int) (*domain.Vote, error) {
	if !domain.ValidVoteValue(value) {
		return nil, ErrInvalidVote
	}

	claim, err := s.claims.GetByID(ctx, community, claimID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	if !claim.Status.Open() {
		return nil, fmt.Errorf("%w: claim is %s", ErrWindowClosed, claim.Status)
	}
	if time.Now().After(claim.WindowClosesAt) {
		return nil, fmt.Errorf("%w: closed at %s", ErrWindowClosed, claim.WindowClosesAt.Format(time.RFC3339))
	}

	k, err := s.karma.Get(ctx, community, voterID)
	if err != nil {
		return nil, err
	}
	v := &domain.Vote{
		Community: community,
		SubjectID: claimID,
		VoterID:   voterID,
		Value:     value,
		Weight:    domain.VoteWeight(k),
	}
	if err := s.votes.Put(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *ClaimService) Get(ctx context.Context, community string, claimID uuid.UUID) (*domain.Claim, error) {
	claim, err := s.claims.GetByID(ctx, community, claimID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	return claim, nil
}

// List returns the community's claims, ghosts filtered out by the store.
func (s *ClaimService) List(ctx context.Context, community string) ([]domain.Claim, error) {
	return s.claims.ListByCommunity(ctx, community)
}
