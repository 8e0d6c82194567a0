package ratings

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/example/uniride/internal/apperrors"
	"github.com/example/uniride/internal/kvstore"
	"github.com/example/uniride/internal/models"
	"github.com/example/uniride/internal/observability"
	"github.com/example/uniride/internal/storage"
)

// Publisher emits rating events, best-effort.
type Publisher interface {
	Publish(ctx context.Context, ev models.RideEvent) error
}

type Service struct {
	KV      kvstore.KV
	Archive storage.RatingArchive // optional durable audit trail
	Events  Publisher
	Now     func() time.Time
	Logger  *slog.Logger

	locks *kvstore.KeyLock
}

func NewService(kv kvstore.KV, archive storage.RatingArchive, events Publisher, logger *slog.Logger) *Service {
	return &Service{
		KV:      kv,
		Archive: archive,
		Events:  events,
		Now:     time.Now,
		Logger:  logger,
		locks:   kvstore.NewKeyLock(),
	}
}

func ratingKey(rideID, raterID string) string { return "rating:" + rideID + ":" + raterID }
func userKey(uid string) string               { return "user:" + uid }
func rideKey(id string) string                { return "ride:" + id }

func round1(x float64) float64 { return math.Round(x*10) / 10 }

// Rate records rater's 1-5 rating for a ride and folds it into the
// ride author's running average, ride count, and points.
//
// Re-rating the same ride overwrites the stored record but still
// increments totalRides, so a corrected rating counts twice in the
// average. Kept until product decides otherwise;
// TestReRatingDoubleCounts pins it.
func (s *Service) Rate(ctx context.Context, rater *models.User, rideID string, rating int, review string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", apperrors.ErrInvalidInput)
	}

	var ride models.Ride
	found, err := s.KV.Get(ctx, rideKey(rideID), &ride)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: ride %s", apperrors.ErrNotFound, rideID)
	}
	if ride.AuthorID == rater.ID {
		return fmt.Errorf("%w: cannot rate your own ride", apperrors.ErrInvalidInput)
	}

	now := s.Now()
	rec := &models.RatingRecord{
		RideID:    rideID,
		RaterID:   rater.ID,
		TargetID:  ride.AuthorID,
		Rating:    rating,
		Review:    review,
		CreatedAt: now,
	}
	if err := s.KV.Set(ctx, ratingKey(rideID, rater.ID), rec); err != nil {
		return err
	}
	if s.Archive != nil {
		if err := s.Archive.SaveRating(ctx, rec); err != nil && s.Logger != nil {
			s.Logger.Warn("rating archive write failed", "ride", rideID, "error", err)
		}
	}

	unlock := s.locks.Lock("user:" + ride.AuthorID)
	defer unlock()

	var target models.User
	found, err = s.KV.Get(ctx, userKey(ride.AuthorID), &target)
	if err != nil {
		return err
	}
	if found {
		target.Rating = round1((target.Rating*float64(target.TotalRides) + float64(rating)) / float64(target.TotalRides+1))
		target.TotalRides++
		target.Points += rating * 10
		target.UpdatedAt = now
		if err := s.KV.Set(ctx, userKey(target.ID), &target); err != nil {
			return err
		}
	}

	observability.RatingsTotal.Inc()
	if s.Events != nil {
		ev := models.RideEvent{
			Type: models.EventRideRated, RideID: rideID, ActorID: rater.ID, At: now,
			Payload: map[string]any{"rating": rating, "targetId": ride.AuthorID},
		}
		if err := s.Events.Publish(ctx, ev); err != nil && s.Logger != nil {
			s.Logger.Warn("event publish failed", "type", ev.Type, "error", err)
		}
	}
	return nil
}
