package service

import (
	"context"
	"testing"
	"time"

	"github.com/rumornet/arbiter/internal/domain"
	"go.uber.org/zap"
)

func newScheduler(f *fixture) *SchedulerService {
	s := NewSchedulerService(f.claims, f.oppositions, f.resolution, f.opposition, zap.NewNop())
	s.SetConcurrency(4)
	return s
}

func TestScheduler_ResolvesExpiredClaims(t *testing.T) {
	f := newFixture()
	expired := f.addClaim(t, "author", true)
	live := f.addClaim(t, "author", false)
	for _, voter := range []string{"v1", "v2", "v3", "v4", "v5"} {
		f.karmaStore.set(testCommunity, voter, 100)
		f.castVote(t, expired.ID, voter, domain.VoteTrue)
		f.castVote(t, live.ID, voter, domain.VoteTrue)
	}

	newScheduler(f).RunPass(context.Background())

	got, _ := f.claims.GetByID(context.Background(), testCommunity, expired.ID)
	if got.Status != domain.ClaimFact {
		t.Errorf("expired claim status = %s, want fact", got.Status)
	}
	got, _ = f.claims.GetByID(context.Background(), testCommunity, live.ID)
	if got.Status != domain.ClaimActive {
		t.Errorf("live claim status = %s, want active (window still open)", got.Status)
	}
}

func TestScheduler_ResolvesExpiredOppositions(t *testing.T) {
	f := newFixture()
	claim := resolveFact(t, f)
	f.karmaStore.set(testCommunity, "challenger", 100)
	opp, err := f.opposition.Create(context.Background(), testCommunity, claim.ID, "challenger", 24)
	if err != nil {
		t.Fatalf("create opposition: %v", err)
	}
	f.oppositions.opps[opp.ID].WindowClosesAt = time.Now().Add(-time.Minute)

	newScheduler(f).RunPass(context.Background())

	got, err := f.oppositions.GetByID(context.Background(), testCommunity, opp.ID)
	if err != nil {
		t.Fatalf("get opposition: %v", err)
	}
	if got.Status != domain.OppositionFailed {
		t.Errorf("opposition status = %s, want failed (no challenge support)", got.Status)
	}
}

func TestScheduler_OneFailureDoesNotHaltPass(t *testing.T) {
	f := newFixture()
	broken := f.addClaim(t, "author", true)
	healthy := f.addClaim(t, "author", true)
	for _, voter := range []string{"v1", "v2", "v3", "v4", "v5"} {
		f.karmaStore.set(testCommunity, voter, 100)
		f.castVote(t, broken.ID, voter, domain.VoteTrue)
		f.castVote(t, healthy.ID, voter, domain.VoteTrue)
	}
	f.votes.failFor = broken.ID

	newScheduler(f).RunPass(context.Background())

	got, _ := f.claims.GetByID(context.Background(), testCommunity, broken.ID)
	if !got.Status.Open() {
		t.Errorf("broken claim should stay open for retry, got %s", got.Status)
	}
	got, _ = f.claims.GetByID(context.Background(), testCommunity, healthy.ID)
	if got.Status != domain.ClaimFact {
		t.Errorf("healthy claim status = %s, want fact", got.Status)
	}
}

func TestScheduler_SecondPassIsNoop(t *testing.T) {
	f := newFixture()
	claim := f.addClaim(t, "author", true)
	for _, voter := range []string{"v1", "v2", "v3", "v4", "v5"} {
		f.karmaStore.set(testCommunity, voter, 100)
		f.castVote(t, claim.ID, voter, domain.VoteTrue)
	}

	sched := newScheduler(f)
	sched.RunPass(context.Background())
	karmaAfter := f.karmaOf(t, "v1")

	sched.RunPass(context.Background())
	if got := f.karmaOf(t, "v1"); got != karmaAfter {
		t.Errorf("second pass re-disbursed karma: %v -> %v", karmaAfter, got)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	f := newFixture()
	sched := newScheduler(f)
	sched.SetInterval(10 * time.Millisecond)
	sched.Start()
	time.Sleep(30 * time.Millisecond)
	sched.Stop()
}
