package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb)
}

func testContest() *Contest {
	return &Contest{
		CommunityID: "guild-1",
		ChannelID:   "chan-1",
		Title:       "Weekly Giveaway",
		PrizeAmount: decimal.RequireFromString("100"),
		Currency:    "USD",
		WinnerCount: 2,
		MaxEntries:  100,
		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
	}
}

func TestCreateContest_GetContest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := testContest()
	id, err := s.CreateContest(ctx, c)
	if err != nil {
		t.Fatalf("CreateContest: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	got, err := s.GetContest(ctx, id)
	if err != nil {
		t.Fatalf("GetContest: %v", err)
	}
	if got.Status != StatusActive {
		t.Errorf("Status: got %q want %q", got.Status, StatusActive)
	}
	if got.Title != c.Title {
		t.Errorf("Title: got %q want %q", got.Title, c.Title)
	}
	if !got.PrizeAmount.Equal(c.PrizeAmount) {
		t.Errorf("PrizeAmount: got %s want %s", got.PrizeAmount, c.PrizeAmount)
	}
	if got.WinnerCount != 2 {
		t.Errorf("WinnerCount: got %d want 2", got.WinnerCount)
	}
}

func TestGetContest_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetContest(context.Background(), 404)
	if !errors.Is(err, ErrContestNotFound) {
		t.Fatalf("expected ErrContestNotFound, got %v", err)
	}
}

func TestAddEntry_DuplicateAndCap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := testContest()
	c.MaxEntries = 2
	id, _ := s.CreateContest(ctx, c)

	if err := s.AddEntry(ctx, id, "alice"); err != nil {
		t.Fatalf("AddEntry alice: %v", err)
	}
	if err := s.AddEntry(ctx, id, "alice"); !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}
	if err := s.AddEntry(ctx, id, "bob"); err != nil {
		t.Fatalf("AddEntry bob: %v", err)
	}
	if err := s.AddEntry(ctx, id, "carol"); !errors.Is(err, ErrEntryCapReached) {
		t.Fatalf("expected ErrEntryCapReached, got %v", err)
	}

	entries, err := s.GetEntries(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestAddEntry_ClosedContest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.CreateContest(ctx, testContest())
	if err := s.TransitionStatus(ctx, id, StatusActive, StatusEnded); err != nil {
		t.Fatal(err)
	}
	if err := s.AddEntry(ctx, id, "late"); !errors.Is(err, ErrContestClosed) {
		t.Fatalf("expected ErrContestClosed, got %v", err)
	}
}

func TestTransitionStatus_CAS(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.CreateContest(ctx, testContest())

	if err := s.TransitionStatus(ctx, id, StatusActive, StatusEnded); err != nil {
		t.Fatalf("active→ended: %v", err)
	}
	// A second settlement attempt must see the conflict.
	if err := s.TransitionStatus(ctx, id, StatusActive, StatusEnded); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
	if err := s.TransitionStatus(ctx, id, StatusEnded, StatusCompleted); err != nil {
		t.Fatalf("ended→completed: %v", err)
	}
	if err := s.TransitionStatus(ctx, id, StatusEnded, StatusCompleted); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}

	got, _ := s.GetContest(ctx, id)
	if got.Status != StatusCompleted {
		t.Fatalf("status: got %q want %q", got.Status, StatusCompleted)
	}
}

func TestSetWinners_WriteOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.CreateContest(ctx, testContest())

	if err := s.SetWinners(ctx, id, []string{"alice", "bob"}); err != nil {
		t.Fatalf("SetWinners: %v", err)
	}
	// A duplicate settlement attempt must not alter the winner set.
	if err := s.SetWinners(ctx, id, []string{"mallory"}); err != nil {
		t.Fatalf("SetWinners (second): %v", err)
	}

	got, err := s.GetWinners(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Fatalf("winners altered: %v", got)
	}
}

func TestGetWinners_Unset(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetWinners(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestDueContests(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	past := testContest()
	past.ExpiresAt = now.Add(-time.Minute).Unix()
	pastID, _ := s.CreateContest(ctx, past)

	future := testContest()
	future.ExpiresAt = now.Add(time.Hour).Unix()
	futureID, _ := s.CreateContest(ctx, future)

	due, err := s.DueContests(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 || due[0] != pastID {
		t.Fatalf("expected [%d], got %v", pastID, due)
	}

	if err := s.RemoveDue(ctx, pastID); err != nil {
		t.Fatal(err)
	}
	due, _ = s.DueContests(ctx, now)
	if len(due) != 0 {
		t.Fatalf("expected no due contests, got %v", due)
	}

	due, _ = s.DueContests(ctx, now.Add(2*time.Hour))
	if len(due) != 1 || due[0] != futureID {
		t.Fatalf("expected [%d], got %v", futureID, due)
	}
}

func TestListContests(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.CreateContest(ctx, testContest()); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.ListContests(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 contests, got %d", len(got))
	}
}
