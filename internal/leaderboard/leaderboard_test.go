package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/example/uniride/internal/kvstore"
	"github.com/example/uniride/internal/models"
	"github.com/example/uniride/internal/ratings"
)

func putUser(t *testing.T, kv kvstore.KV, u models.User) {
	t.Helper()
	if err := kv.Set(context.Background(), "user:"+u.ID, &u); err != nil {
		t.Fatal(err)
	}
}

func TestComputeSelectionAndOrder(t *testing.T) {
	kv := kvstore.NewMemoryKV()
	ctx := context.Background()

	putUser(t, kv, models.User{ID: "a", UserType: models.UserHybrid, Points: 500, Rating: 4.5, TotalRides: 30})
	putUser(t, kv, models.User{ID: "b", UserType: models.UserHybrid, Points: 500, Rating: 4.7, TotalRides: 20})
	putUser(t, kv, models.User{ID: "c", UserType: models.UserHybrid, Points: 900, Rating: 3.0, TotalRides: 12})
	// Excluded: passenger, and hybrid with no rides.
	putUser(t, kv, models.User{ID: "p", UserType: models.UserPassenger, Points: 9999, TotalRides: 50})
	putUser(t, kv, models.User{ID: "z", UserType: models.UserHybrid, Points: 9999, TotalRides: 0})
	// Email index entries share the prefix and must be skipped.
	if err := kv.Set(ctx, "user:email:a@eng.jfn.ac.lk", "a"); err != nil {
		t.Fatal(err)
	}

	got, err := Compute(ctx, kv, 50)
	if err != nil {
		t.Fatal(err)
	}
	wantOrder := []string{"c", "b", "a"}
	if len(got) != len(wantOrder) {
		t.Fatalf("len = %d, want %d (%+v)", len(got), len(wantOrder), got)
	}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Fatalf("rank %d = %s, want %s", i+1, got[i].ID, id)
		}
		if got[i].Rank != i+1 {
			t.Fatalf("rank annotation = %d, want %d", got[i].Rank, i+1)
		}
	}
	if got[0].Badge != ratings.Badge(12, 3.0) {
		t.Fatalf("badge = %s", got[0].Badge)
	}
}

func TestComputeTiebreaks(t *testing.T) {
	kv := kvstore.NewMemoryKV()
	putUser(t, kv, models.User{ID: "fewRides", UserType: models.UserHybrid, Points: 100, Rating: 4.0, TotalRides: 5})
	putUser(t, kv, models.User{ID: "manyRides", UserType: models.UserHybrid, Points: 100, Rating: 4.0, TotalRides: 15})

	got, err := Compute(context.Background(), kv, 50)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].ID != "manyRides" {
		t.Fatalf("totalRides tiebreak failed: %+v", got)
	}
}

func TestComputeTruncates(t *testing.T) {
	kv := kvstore.NewMemoryKV()
	for i := 0; i < 60; i++ {
		putUser(t, kv, models.User{ID: string(rune('A'+i%26)) + string(rune('a'+i/26)),
			UserType: models.UserHybrid, Points: i, TotalRides: 1})
	}
	got, err := Compute(context.Background(), kv, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 50 {
		t.Fatalf("len = %d, want 50", len(got))
	}
	if got[49].Rank != 50 {
		t.Fatalf("last rank = %d, want 50", got[49].Rank)
	}
}

func TestTopUsesFreshSnapshot(t *testing.T) {
	kv := kvstore.NewMemoryKV()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	s := NewService(kv, 50, 30*time.Second)
	s.Now = func() time.Time { return now }

	cached := Snapshot{
		Entries:     []models.LeaderboardEntry{{Rank: 1, ID: "cached"}},
		GeneratedAt: now.Add(-10 * time.Second),
	}
	if err := kv.Set(context.Background(), "leaderboard:snapshot", cached); err != nil {
		t.Fatal(err)
	}
	putUser(t, kv, models.User{ID: "live", UserType: models.UserHybrid, Points: 1, TotalRides: 1})

	got, err := s.Top(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "cached" {
		t.Fatalf("fresh snapshot not served: %+v", got)
	}

	// Stale snapshot falls back to the live scan.
	s.Now = func() time.Time { return now.Add(time.Minute) }
	got, err = s.Top(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "live" {
		t.Fatalf("stale snapshot served: %+v", got)
	}
}

func TestRefreshWritesSnapshot(t *testing.T) {
	kv := kvstore.NewMemoryKV()
	putUser(t, kv, models.User{ID: "a", UserType: models.UserHybrid, Points: 10, TotalRides: 3})
	s := NewService(kv, 50, 30*time.Second)

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	var snap Snapshot
	found, err := kv.Get(context.Background(), "leaderboard:snapshot", &snap)
	if err != nil || !found {
		t.Fatalf("snapshot: found=%v err=%v", found, err)
	}
	if len(snap.Entries) != 1 || snap.Entries[0].ID != "a" {
		t.Fatalf("snapshot = %+v", snap)
	}
}
