package service

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/rumornet/arbiter/internal/domain"
)

// resolveFact drives a claim through a real fact resolution so the
// ghost's reversal has an actual disbursement to undo.
func resolveFact(t *testing.T, f *fixture) *domain.Claim {
	t.Helper()
	claim := f.addClaim(t, "author", true)
	for _, voter := range []string{"t1", "t2", "t3", "t4"} {
		f.karmaStore.set(testCommunity, voter, 100)
		f.castVote(t, claim.ID, voter, domain.VoteTrue)
	}
	f.karmaStore.set(testCommunity, "f1", 100)
	f.castVote(t, claim.ID, "f1", domain.VoteFalse)

	res, err := f.resolution.Resolve(context.Background(), testCommunity, claim.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Status != domain.ClaimFact {
		t.Fatalf("setup: status = %s, want fact", res.Status)
	}
	c, _ := f.claims.GetByID(context.Background(), testCommunity, claim.ID)
	return c
}

func TestGhost_ReversesFactDisbursement(t *testing.T) {
	f := newFixture()
	claim := resolveFact(t, f)
	ctx := context.Background()

	// Post-resolution: majority 101, minority 98.5, author 3.
	if err := f.ghost.Ghost(ctx, testCommunity, claim.ID); err != nil {
		t.Fatalf("ghost: %v", err)
	}

	for _, voter := range []string{"t1", "t2", "t3", "t4"} {
		if got := f.karmaOf(t, voter); got != 100 {
			t.Errorf("majority voter %s karma = %v, want 100", voter, got)
		}
	}
	if got := f.karmaOf(t, "f1"); got != 100 {
		t.Errorf("minority voter karma = %v, want 100", got)
	}
	if got := f.karmaOf(t, "author"); got != 1 {
		t.Errorf("author karma = %v, want 1", got)
	}

	got, _ := f.claims.GetByID(ctx, testCommunity, claim.ID)
	if got.Status != domain.ClaimGhost {
		t.Errorf("status = %s, want ghost", got.Status)
	}
	if got.TrustScore != 0 {
		t.Errorf("trust score = %v, want 0", got.TrustScore)
	}
	if !got.VotesNullified {
		t.Error("votes_nullified must be set")
	}
	if got.GhostedAt == nil {
		t.Error("ghosted_at must be set")
	}
}

func TestGhost_ReversalRespectsFloor(t *testing.T) {
	f := newFixture()
	claim := f.addClaim(t, "author", true)
	// Minority voter at the floor cannot go below it when the +1.5
	// reversal is later undone, and a majority voter near the floor
	// cannot be driven under it by the -1.0 reversal.
	for _, voter := range []string{"t1", "t2", "t3", "t4"} {
		f.karmaStore.set(testCommunity, voter, 100)
		f.castVote(t, claim.ID, voter, domain.VoteTrue)
	}
	f.karmaStore.set(testCommunity, "f1", 100)
	f.castVote(t, claim.ID, "f1", domain.VoteFalse)

	if _, err := f.resolution.Resolve(context.Background(), testCommunity, claim.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Drain a majority voter to the floor before the ghost lands.
	f.karmaStore.set(testCommunity, "t1", 0.5)
	if err := f.ghost.Ghost(context.Background(), testCommunity, claim.ID); err != nil {
		t.Fatalf("ghost: %v", err)
	}
	if got := f.karmaOf(t, "t1"); got != domain.KarmaFloor {
		t.Errorf("karma = %v, want floor %v", got, domain.KarmaFloor)
	}
}

func TestGhost_Idempotent(t *testing.T) {
	f := newFixture()
	claim := resolveFact(t, f)
	ctx := context.Background()

	if err := f.ghost.Ghost(ctx, testCommunity, claim.ID); err != nil {
		t.Fatalf("first ghost: %v", err)
	}
	afterFirst := f.karmaOf(t, "t1")

	if err := f.ghost.Ghost(ctx, testCommunity, claim.ID); err != nil {
		t.Fatalf("second ghost: %v", err)
	}
	if got := f.karmaOf(t, "t1"); got != afterFirst {
		t.Errorf("second ghost changed karma: %v -> %v", afterFirst, got)
	}
}

func TestGhost_VoteReadFailure_LeavesClaimUnghosted(t *testing.T) {
	f := newFixture()
	claim := resolveFact(t, f)
	ctx := context.Background()

	// If the vote set cannot be read, the ghost transition must not go
	// durable: a ghosted claim no-ops on retry, which would strand the
	// reversal forever.
	f.votes.failFor = claim.ID
	if err := f.ghost.Ghost(ctx, testCommunity, claim.ID); err == nil {
		t.Fatal("expected ghost to fail when votes cannot be read")
	}

	got, _ := f.claims.GetByID(ctx, testCommunity, claim.ID)
	if got.Status != domain.ClaimFact {
		t.Fatalf("status = %s, want fact after failed ghost", got.Status)
	}
	if karma := f.karmaOf(t, "t1"); karma != 101 {
		t.Errorf("majority voter karma = %v, want untouched 101", karma)
	}

	// The retry completes the full ghost including the reversal.
	f.votes.failFor = uuid.Nil
	if err := f.ghost.Ghost(ctx, testCommunity, claim.ID); err != nil {
		t.Fatalf("retry ghost: %v", err)
	}
	got, _ = f.claims.GetByID(ctx, testCommunity, claim.ID)
	if got.Status != domain.ClaimGhost {
		t.Errorf("status = %s, want ghost", got.Status)
	}
	if karma := f.karmaOf(t, "t1"); karma != 100 {
		t.Errorf("majority voter karma = %v, want reversed to 100", karma)
	}
	if karma := f.karmaOf(t, "author"); karma != 1 {
		t.Errorf("author karma = %v, want reversed to 1", karma)
	}
}

func TestGhost_UnresolvedClaim_NoKarmaChange(t *testing.T) {
	f := newFixture()
	claim := f.addClaim(t, "author", false)
	f.karmaStore.set(testCommunity, "v1", 50)
	f.castVote(t, claim.ID, "v1", domain.VoteTrue)

	if err := f.ghost.Ghost(context.Background(), testCommunity, claim.ID); err != nil {
		t.Fatalf("ghost: %v", err)
	}
	if got := f.karmaOf(t, "v1"); got != 50 {
		t.Errorf("karma = %v, want 50 (no disbursement to reverse)", got)
	}
	if got := f.karmaOf(t, "author"); got != domain.KarmaInitial {
		t.Errorf("author karma = %v, want untouched", got)
	}
}

func TestGhost_UnverifiedClaim_NoKarmaChange(t *testing.T) {
	f := newFixture()
	claim := f.addClaim(t, "author", true)
	f.claims.claims[claim.ID].ExtendedOnce = true
	for _, voter := range []string{"v1", "v2", "v3"} {
		f.castVote(t, claim.ID, voter, domain.VoteTrue)
	}
	if _, err := f.resolution.Resolve(context.Background(), testCommunity, claim.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if err := f.ghost.Ghost(context.Background(), testCommunity, claim.ID); err != nil {
		t.Fatalf("ghost: %v", err)
	}
	if got := f.karmaOf(t, "v1"); got != domain.KarmaInitial {
		t.Errorf("karma = %v, want untouched after unverified ghost", got)
	}
}

func TestGhost_ReversesFalseDisbursement(t *testing.T) {
	f := newFixture()
	claim := f.addClaim(t, "author", true)
	// R = 0.2: false verdict. Majority here is the false side.
	f.karmaStore.set(testCommunity, "t1", 100)
	f.castVote(t, claim.ID, "t1", domain.VoteTrue)
	for _, voter := range []string{"f1", "f2", "f3", "f4"} {
		f.karmaStore.set(testCommunity, voter, 400)
		f.castVote(t, claim.ID, voter, domain.VoteFalse)
	}

	res, err := f.resolution.Resolve(context.Background(), testCommunity, claim.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Status != domain.ClaimFalse {
		t.Fatalf("setup: status = %s, want false", res.Status)
	}

	if err := f.ghost.Ghost(context.Background(), testCommunity, claim.ID); err != nil {
		t.Fatalf("ghost: %v", err)
	}
	if got := f.karmaOf(t, "t1"); got != 100 {
		t.Errorf("minority voter karma = %v, want 100", got)
	}
	if got := f.karmaOf(t, "f1"); got != 400 {
		t.Errorf("majority voter karma = %v, want 400", got)
	}
	// The -2.0 penalty hit the floor (1.0 -> 0.1); the reversal adds the
	// inverse delta from there, not a recomputed history.
	if got := f.karmaOf(t, "author"); math.Abs(got-2.1) > 1e-9 {
		t.Errorf("author karma = %v, want 2.1", got)
	}
}

func TestGhost_CascadeLeavesDependentsUntouched(t *testing.T) {
	f := newFixture()
	parent := resolveFact(t, f)
	ctx := context.Background()

	// A frozen child and an open child both reference the parent.
	frozen := &domain.Claim{
		Community:      testCommunity,
		AuthorID:       "other",
		Body:           "follow-up",
		ParentClaimID:  &parent.ID,
		WindowClosesAt: parent.WindowClosesAt,
	}
	if err := f.claims.Create(ctx, frozen); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.claims.MarkResolved(ctx, frozen.ID, domain.ClaimFact, 0.7, 7, 3, 5, 10); err != nil {
		t.Fatalf("mark resolved: %v", err)
	}
	open := f.addClaim(t, "other", false)
	f.claims.claims[open.ID].ParentClaimID = &parent.ID

	if err := f.ghost.Ghost(ctx, testCommunity, parent.ID); err != nil {
		t.Fatalf("ghost: %v", err)
	}

	gotFrozen, _ := f.claims.GetByID(ctx, testCommunity, frozen.ID)
	if gotFrozen.Status != domain.ClaimFact || math.Abs(gotFrozen.TrustScore-0.7) > 1e-9 {
		t.Errorf("frozen dependent changed: %s %v", gotFrozen.Status, gotFrozen.TrustScore)
	}
	gotOpen, _ := f.claims.GetByID(ctx, testCommunity, open.ID)
	if gotOpen.Status != domain.ClaimActive {
		t.Errorf("open dependent changed: %s", gotOpen.Status)
	}
}

func TestGhost_FilteredFromListings(t *testing.T) {
	f := newFixture()
	claim := resolveFact(t, f)
	ctx := context.Background()

	if err := f.ghost.Ghost(ctx, testCommunity, claim.ID); err != nil {
		t.Fatalf("ghost: %v", err)
	}

	list, err := f.claimSvc.List(ctx, testCommunity)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, c := range list {
		if c.ID == claim.ID {
			t.Error("ghosted claim must be filtered from listings")
		}
	}

	// Still addressable by id.
	got, err := f.claimSvc.Get(ctx, testCommunity, claim.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.ClaimGhost {
		t.Errorf("status = %s, want ghost", got.Status)
	}
}

func TestGhost_NotFound(t *testing.T) {
	f := newFixture()
	err := f.ghost.Ghost(context.Background(), testCommunity, uuid.New())
	if err != ErrClaimNotFound {
		t.Fatalf("expected ErrClaimNotFound, got %v", err)
	}
}
