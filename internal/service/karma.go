package service

import (
	"context"

	"github.com/rumornet/arbiter/internal/domain"
	"go.uber.org/zap"
)

// KarmaService is the only mutation path for karma. Every engine that
// awards or penalizes reputation funnels through Add, which serializes
// read-modify-write per participant on top of whatever atomicity the
// store itself provides.
type KarmaService struct {
	store  domain.KarmaStore
	logger *zap.Logger
	locks  *lockTable
}

func NewKarmaService(store domain.KarmaStore, logger *zap.Logger) *KarmaService {
	return &KarmaService{
		store:  store,
		logger: logger,
		locks:  newLockTable(),
	}
}

func (s *KarmaService) Get(ctx context.Context, community, participantID string) (float64, error) {
	return s.store.Get(ctx, community, participantID)
}

func (s *KarmaService) Add(ctx context.Context, community, participantID string, delta float64) (float64, error) {
	unlock := s.locks.Lock(community + "/" + participantID)
	defer unlock()

	value, err := s.store.Add(ctx, community, participantID, delta)
	if err != nil {
		return 0, err
	}

	s.logger.Debug("karma adjusted",
		zap.String("community", community),
		zap.String("participant_id", participantID),
		zap.Float64("delta", delta),
		zap.Float64("value", value))
	return value, nil
}
