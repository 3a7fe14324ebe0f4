package service

import (
	"context"
	"sync"
	"time"

	"github.com/rumornet/arbiter/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSchedulerInterval    = 30 * time.Second
	defaultSchedulerConcurrency = 8
	schedulerPassTimeout        = 60 * time.Second
)

// SchedulerService is the sole driver of resolution: a periodic pass
// over every community's expired claims and oppositions. Idempotency
// lives in the engines' status guards, not here; a pass may safely see
// work an earlier pass already finished.
type SchedulerService struct {
	claims      domain.ClaimStore
	oppositions domain.OppositionStore
	resolution  *ResolutionService
	opposition  *OppositionService
	logger      *zap.Logger

	interval    time.Duration
	concurrency int
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

func NewSchedulerService(claims domain.ClaimStore, oppositions domain.OppositionStore, resolution *ResolutionService, opposition *OppositionService, logger *zap.Logger) *SchedulerService {
	return &SchedulerService{
		claims:      claims,
		oppositions: oppositions,
		resolution:  resolution,
		opposition:  opposition,
		logger:      logger,
		interval:    defaultSchedulerInterval,
		concurrency: defaultSchedulerConcurrency,
		stopCh:      make(chan struct{}),
	}
}

func (s *SchedulerService) SetInterval(d time.Duration) {
	s.interval = d
}

func (s *SchedulerService) SetConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

// Start runs the reconciliation loop in a background goroutine.
func (s *SchedulerService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("resolution scheduler started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), schedulerPassTimeout)
				s.RunPass(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("resolution scheduler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *SchedulerService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// RunPass resolves everything whose window has closed. Work fans out
// with bounded concurrency; one item's failure is logged and retried on
// a later pass without halting the rest.
func (s *SchedulerService) RunPass(ctx context.Context) {
	now := time.Now()

	claims, err := s.claims.ListExpiring(ctx, now)
	if err != nil {
		s.logger.Error("failed to list expiring claims", zap.Error(err))
	} else {
		g := &errgroup.Group{}
		g.SetLimit(s.concurrency)
		for _, c := range claims {
			c := c
			g.Go(func() error {
				if _, err := s.resolution.Resolve(ctx, c.Community, c.ID); err != nil {
					s.logger.Error("claim resolution failed, will retry next pass",
						zap.String("community", c.Community),
						zap.String("claim_id", c.ID.String()),
						zap.Error(err))
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	opps, err := s.oppositions.ListExpiring(ctx, now)
	if err != nil {
		s.logger.Error("failed to list expiring oppositions", zap.Error(err))
		return
	}
	g := &errgroup.Group{}
	g.SetLimit(s.concurrency)
	for _, o := range opps {
		o := o
		g.Go(func() error {
			if _, err := s.opposition.Resolve(ctx, o.Community, o.ID); err != nil {
				s.logger.Error("opposition resolution failed, will retry next pass",
					zap.String("community", o.Community),
					zap.String("opposition_id", o.ID.String()),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}
