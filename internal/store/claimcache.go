package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rumornet/arbiter/internal/domain"
)

const (
	claimCacheTTL     = 5 * time.Minute
	claimCacheCleanup = 10 * time.Minute
)

// CachedClaimStore is a read-through decorator over a ClaimStore. Only
// claims in a frozen state are cached: their score and aggregates cannot
// change, so a stale read is impossible. Any transition that can still
// touch a frozen claim (opposition flip, restore, ghost) evicts the entry.
type CachedClaimStore struct {
	inner domain.ClaimStore
	cache *gocache.Cache
}

func NewCachedClaimStore(inner domain.ClaimStore) *CachedClaimStore {
	return &CachedClaimStore{
		inner: inner,
		cache: gocache.New(claimCacheTTL, claimCacheCleanup),
	}
}

func cacheKey(community string, id uuid.UUID) string {
	return community + "/" + id.String()
}

func (s *CachedClaimStore) GetByID(ctx context.Context, community string, id uuid.UUID) (*domain.Claim, error) {
	key := cacheKey(community, id)
	if v, ok := s.cache.Get(key); ok {
		c := v.(domain.Claim)
		return &c, nil
	}

	c, err := s.inner.GetByID(ctx, community, id)
	if err != nil {
		return nil, err
	}
	if c.Status.Frozen() && c.Status != domain.ClaimOpposed {
		s.cache.Set(key, *c, gocache.DefaultExpiration)
	}
	return c, nil
}

func (s *CachedClaimStore) evict(id uuid.UUID) {
	// Community is not known at every call site; keys embed it, so scan.
	for key := range s.cache.Items() {
		if len(key) >= 36 && key[len(key)-36:] == id.String() {
			s.cache.Delete(key)
		}
	}
}

func (s *CachedClaimStore) Create(ctx context.Context, c *domain.Claim) error {
	return s.inner.Create(ctx, c)
}

func (s *CachedClaimStore) ListByCommunity(ctx context.Context, community string) ([]domain.Claim, error) {
	return s.inner.ListByCommunity(ctx, community)
}

func (s *CachedClaimStore) ListExpiring(ctx context.Context, now time.Time) ([]domain.Claim, error) {
	return s.inner.ListExpiring(ctx, now)
}

func (s *CachedClaimStore) ListReferencing(ctx context.Context, community string, id uuid.UUID) ([]domain.Claim, error) {
	return s.inner.ListReferencing(ctx, community, id)
}

func (s *CachedClaimStore) ExtendWindow(ctx context.Context, id uuid.UUID, closesAt time.Time) error {
	return s.inner.ExtendWindow(ctx, id, closesAt)
}

func (s *CachedClaimStore) MarkResolved(ctx context.Context, id uuid.UUID, status domain.ClaimStatus, trustScore, weightedTrue, weightedFalse float64, totalVoters int, totalWeight float64) error {
	return s.inner.MarkResolved(ctx, id, status, trustScore, weightedTrue, weightedFalse, totalVoters, totalWeight)
}

func (s *CachedClaimStore) MarkOpposed(ctx context.Context, id uuid.UUID, oppositionID uuid.UUID) error {
	err := s.inner.MarkOpposed(ctx, id, oppositionID)
	s.evict(id)
	return err
}

func (s *CachedClaimStore) MarkOverturned(ctx context.Context, id uuid.UUID, trustScore float64) error {
	err := s.inner.MarkOverturned(ctx, id, trustScore)
	s.evict(id)
	return err
}

func (s *CachedClaimStore) MarkRestored(ctx context.Context, id uuid.UUID) error {
	err := s.inner.MarkRestored(ctx, id)
	s.evict(id)
	return err
}

func (s *CachedClaimStore) MarkGhosted(ctx context.Context, id uuid.UUID, ghostedAt time.Time) error {
	err := s.inner.MarkGhosted(ctx, id, ghostedAt)
	s.evict(id)
	return err
}
