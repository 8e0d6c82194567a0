package leaderboard

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/example/uniride/internal/kvstore"
	"github.com/example/uniride/internal/models"
	"github.com/example/uniride/internal/ratings"
)

const snapshotKey = "leaderboard:snapshot"

// Snapshot is the cached board the consumer process maintains.
type Snapshot struct {
	Entries     []models.LeaderboardEntry `json:"entries"`
	GeneratedAt time.Time                 `json:"generatedAt"`
}

type Service struct {
	KV   kvstore.KV
	Size int
	TTL  time.Duration
	Now  func() time.Time
}

func NewService(kv kvstore.KV, size int, ttl time.Duration) *Service {
	return &Service{KV: kv, Size: size, TTL: ttl, Now: time.Now}
}

// Top serves the cached snapshot when it is fresh enough, falling back
// to a live profile scan.
func (s *Service) Top(ctx context.Context) ([]models.LeaderboardEntry, error) {
	var snap Snapshot
	found, err := s.KV.Get(ctx, snapshotKey, &snap)
	if err == nil && found && s.TTL > 0 && s.Now().Sub(snap.GeneratedAt) <= s.TTL {
		return snap.Entries, nil
	}
	return Compute(ctx, s.KV, s.Size)
}

// Refresh recomputes the board and stores it as the snapshot. Called by
// the event consumer after it sees a rating event.
func (s *Service) Refresh(ctx context.Context) error {
	entries, err := Compute(ctx, s.KV, s.Size)
	if err != nil {
		return err
	}
	return s.KV.Set(ctx, snapshotKey, Snapshot{Entries: entries, GeneratedAt: s.Now()})
}

// Compute scans all profiles and builds the board: hybrid users with at
// least one ride, ordered by points, then rating, then ride count, cut
// to size and annotated with rank and badge.
func Compute(ctx context.Context, kv kvstore.KV, size int) ([]models.LeaderboardEntry, error) {
	raw, err := kv.GetByPrefix(ctx, "user:")
	if err != nil {
		return nil, err
	}
	riders := make([]models.User, 0, len(raw))
	for _, b := range raw {
		var u models.User
		// The user: prefix also matches user:email:* id mappings;
		// those fail to decode as profiles and are skipped.
		if err := json.Unmarshal(b, &u); err != nil || u.ID == "" {
			continue
		}
		if u.UserType == models.UserHybrid && u.TotalRides > 0 {
			riders = append(riders, u)
		}
	}

	sort.SliceStable(riders, func(i, j int) bool {
		a, b := riders[i], riders[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		return a.TotalRides > b.TotalRides
	})
	if len(riders) > size {
		riders = riders[:size]
	}

	entries := make([]models.LeaderboardEntry, len(riders))
	for i, r := range riders {
		entries[i] = models.LeaderboardEntry{
			Rank:       i + 1,
			ID:         r.ID,
			Name:       r.Name,
			Batch:      r.Batch,
			Rating:     r.Rating,
			TotalRides: r.TotalRides,
			Points:     r.Points,
			Badge:      ratings.Badge(r.TotalRides, r.Rating),
		}
	}
	return entries, nil
}
