package rides

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/uniride/internal/apperrors"
	"github.com/example/uniride/internal/kvstore"
	"github.com/example/uniride/internal/models"
	"github.com/example/uniride/internal/observability"
	"github.com/example/uniride/internal/ranking"
)

// Publisher emits ride lifecycle events. Best-effort: a nil Publisher
// and a failed publish are both fine.
type Publisher interface {
	Publish(ctx context.Context, ev models.RideEvent) error
}

// Notifier pushes an event to a connected user, if any.
type Notifier interface {
	Notify(userID string, ev models.RideEvent) error
}

type Service struct {
	KV         kvstore.KV
	Events     Publisher
	Notify     Notifier
	Now        func() time.Time
	DailyLimit int
	Logger     *slog.Logger

	locks *kvstore.KeyLock
}

func NewService(kv kvstore.KV, events Publisher, notify Notifier, logger *slog.Logger) *Service {
	return &Service{
		KV:         kv,
		Events:     events,
		Notify:     notify,
		Now:        time.Now,
		DailyLimit: 2,
		Logger:     logger,
		locks:      kvstore.NewKeyLock(),
	}
}

func rideKey(id string) string              { return "ride:" + id }
func userRideKey(uid, rideID string) string { return "user_rides:" + uid + ":" + rideID }

func dailyKey(uid string, day time.Time) string {
	return "daily_requests:" + uid + ":" + day.UTC().Format("2006-01-02")
}

func newID(prefix string) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return prefix + "_" + hex.EncodeToString(b)
}

// OfferInput is the body of POST /rides/offer.
type OfferInput struct {
	From           string         `json:"from"`
	To             string         `json:"to"`
	DepartureTime  string         `json:"departureTime"`
	AvailableSeats int            `json:"availableSeats"`
	Vehicle        models.Vehicle `json:"vehicle"`
	Notes          string         `json:"notes"`
}

// RequestInput is the body of POST /rides/request.
type RequestInput struct {
	From          string `json:"from"`
	To            string `json:"to"`
	DepartureTime string `json:"departureTime"`
	IsUrgent      bool   `json:"isUrgent"`
	Notes         string `json:"notes"`
}

func validateRoute(from, to string) error {
	if from == "" || to == "" {
		return fmt.Errorf("%w: from and to are required", apperrors.ErrInvalidInput)
	}
	if from == to {
		return fmt.Errorf("%w: from and to must differ", apperrors.ErrInvalidInput)
	}
	return nil
}

// PostOffer creates an offer-kind ride. Hybrid users only; the author's
// current rating is snapshotted so the feed does not need a profile
// lookup per row.
func (s *Service) PostOffer(ctx context.Context, user *models.User, in OfferInput) (*models.Ride, error) {
	if user.UserType != models.UserHybrid {
		return nil, fmt.Errorf("%w: only verified riders can post ride offers", apperrors.ErrForbidden)
	}
	if err := validateRoute(in.From, in.To); err != nil {
		return nil, err
	}
	if in.AvailableSeats < 1 {
		return nil, fmt.Errorf("%w: availableSeats must be at least 1", apperrors.ErrInvalidInput)
	}
	switch in.Vehicle {
	case models.VehicleBicycle, models.VehicleBike, models.VehicleCar:
	default:
		return nil, fmt.Errorf("%w: unknown vehicle %q", apperrors.ErrInvalidInput, in.Vehicle)
	}

	now := s.Now()
	ride := &models.Ride{
		ID:            newID("ride"),
		Kind:          models.KindOffer,
		AuthorID:      user.ID,
		AuthorName:    user.Name,
		AuthorBatch:   user.Batch,
		From:          in.From,
		To:            in.To,
		DepartureTime: in.DepartureTime,
		Notes:         in.Notes,
		Status:        models.RideActive,
		CreatedAt:     now,
		Offer: &models.OfferDetails{
			AvailableSeats: in.AvailableSeats,
			Vehicle:        in.Vehicle,
			DriverRating:   user.Rating,
			Passengers:     []models.Passenger{},
		},
	}
	if err := s.KV.Set(ctx, rideKey(ride.ID), ride); err != nil {
		return nil, err
	}
	if err := s.KV.Set(ctx, userRideKey(user.ID, ride.ID), ride.ID); err != nil {
		return nil, err
	}
	observability.RidesPostedTotal.WithLabelValues(string(models.KindOffer)).Inc()
	s.publish(ctx, models.RideEvent{Type: models.EventRidePosted, RideID: ride.ID, ActorID: user.ID, At: now})
	return ride, nil
}

// PostRequest creates a request-kind ride. Passenger users are held to
// the daily quota; hybrid users are not metered.
func (s *Service) PostRequest(ctx context.Context, user *models.User, in RequestInput) (*models.Ride, error) {
	if err := validateRoute(in.From, in.To); err != nil {
		return nil, err
	}

	now := s.Now()
	metered := user.UserType == models.UserPassenger
	if metered {
		unlock := s.locks.Lock("quota:" + user.ID)
		defer unlock()
		var count int64
		if _, err := s.KV.Get(ctx, dailyKey(user.ID, now), &count); err != nil {
			return nil, err
		}
		if count >= int64(s.DailyLimit) {
			observability.QuotaRejectedTotal.Inc()
			return nil, fmt.Errorf("%w (%d requests per day)", apperrors.ErrRateLimited, s.DailyLimit)
		}
	}

	ride := &models.Ride{
		ID:            newID("request"),
		Kind:          models.KindRequest,
		AuthorID:      user.ID,
		AuthorName:    user.Name,
		AuthorBatch:   user.Batch,
		From:          in.From,
		To:            in.To,
		DepartureTime: in.DepartureTime,
		Notes:         in.Notes,
		Status:        models.RideActive,
		CreatedAt:     now,
		Request: &models.RequestDetails{
			IsUrgent:  in.IsUrgent,
			Responses: []string{},
		},
	}
	if err := s.KV.Set(ctx, rideKey(ride.ID), ride); err != nil {
		return nil, err
	}
	if err := s.KV.Set(ctx, userRideKey(user.ID, ride.ID), ride.ID); err != nil {
		return nil, err
	}
	if metered {
		if _, err := s.KV.Incr(ctx, dailyKey(user.ID, now)); err != nil {
			return nil, err
		}
	}
	observability.RidesPostedTotal.WithLabelValues(string(models.KindRequest)).Inc()
	s.publish(ctx, models.RideEvent{Type: models.EventRequestPosted, RideID: ride.ID, ActorID: user.ID, At: now})
	return ride, nil
}

// Feed returns the viewer's ranked ride list.
func (s *Service) Feed(ctx context.Context, viewer *models.User) ([]models.Ride, error) {
	all, err := s.allRides(ctx)
	if err != nil {
		return nil, err
	}
	return ranking.FeedFor(all, viewer), nil
}

// MyRides returns rides the user authored or joined, newest first.
func (s *Service) MyRides(ctx context.Context, uid string) ([]models.Ride, error) {
	raw, err := s.KV.GetByPrefix(ctx, "user_rides:"+uid+":")
	if err != nil {
		return nil, err
	}
	out := make([]models.Ride, 0, len(raw))
	for _, b := range raw {
		var rideID string
		if err := json.Unmarshal(b, &rideID); err != nil {
			continue
		}
		var ride models.Ride
		found, err := s.KV.Get(ctx, rideKey(rideID), &ride)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, ride)
		}
	}
	return out, nil
}

// Get returns one ride by id.
func (s *Service) Get(ctx context.Context, rideID string) (*models.Ride, error) {
	var ride models.Ride
	found, err := s.KV.Get(ctx, rideKey(rideID), &ride)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: ride %s", apperrors.ErrNotFound, rideID)
	}
	return &ride, nil
}

// Join appends a pending passenger entry for user on an active offer.
func (s *Service) Join(ctx context.Context, user *models.User, rideID string) (*models.Ride, error) {
	unlock := s.locks.Lock("ride:" + rideID)
	defer unlock()

	ride, err := s.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != models.RideActive {
		return nil, fmt.Errorf("%w: ride no longer active", apperrors.ErrNotFound)
	}
	if ride.Kind != models.KindOffer || ride.Offer == nil {
		return nil, fmt.Errorf("%w: can only join ride offers", apperrors.ErrConflict)
	}
	if ride.AuthorID == user.ID {
		return nil, fmt.Errorf("%w: cannot join your own ride", apperrors.ErrConflict)
	}
	if ride.HasPassenger(user.ID) {
		return nil, fmt.Errorf("%w: already requested to join", apperrors.ErrConflict)
	}
	if ride.Offer.OccupiedSeats() >= ride.Offer.AvailableSeats {
		return nil, fmt.Errorf("%w: ride is full", apperrors.ErrConflict)
	}

	now := s.Now()
	ride.Offer.Passengers = append(ride.Offer.Passengers, models.Passenger{
		ID:       user.ID,
		Name:     user.Name,
		Batch:    user.Batch,
		Status:   models.PassengerPending,
		JoinedAt: now,
	})
	ride.UpdatedAt = now
	if err := s.KV.Set(ctx, rideKey(ride.ID), ride); err != nil {
		return nil, err
	}
	if err := s.KV.Set(ctx, userRideKey(user.ID, ride.ID), ride.ID); err != nil {
		return nil, err
	}

	observability.JoinsTotal.Inc()
	ev := models.RideEvent{
		Type: models.EventPassengerJoined, RideID: ride.ID, ActorID: user.ID, At: now,
		Payload: map[string]any{"passengerName": user.Name},
	}
	s.publish(ctx, ev)
	s.notify(ride.AuthorID, ev)
	return ride, nil
}

// Decide applies the author's accept or reject to one pending passenger
// entry. Entries are terminal once decided: a repeat decision, same or
// different, leaves the entry untouched.
func (s *Service) Decide(ctx context.Context, callerID, rideID, passengerID, action string) (*models.Ride, error) {
	if action != "accept" && action != "reject" {
		return nil, fmt.Errorf("%w: action must be accept or reject", apperrors.ErrInvalidInput)
	}

	unlock := s.locks.Lock("ride:" + rideID)
	defer unlock()

	ride, err := s.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	// Non-authors get the same 404 as a missing ride so the endpoint
	// does not leak ride ownership.
	if ride.AuthorID != callerID {
		return nil, fmt.Errorf("%w: ride not found or unauthorized", apperrors.ErrNotFound)
	}
	if ride.Offer == nil {
		return nil, fmt.Errorf("%w: ride has no passengers", apperrors.ErrNotFound)
	}

	idx := -1
	for i, p := range ride.Offer.Passengers {
		if p.ID == passengerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: passenger %s", apperrors.ErrNotFound, passengerID)
	}

	target := models.PassengerAccepted
	evType := models.EventPassengerAccepted
	if action == "reject" {
		target = models.PassengerRejected
		evType = models.EventPassengerRejected
	}

	if ride.Offer.Passengers[idx].Status != models.PassengerPending {
		return ride, nil
	}

	now := s.Now()
	ride.Offer.Passengers[idx].Status = target
	ride.UpdatedAt = now
	if err := s.KV.Set(ctx, rideKey(ride.ID), ride); err != nil {
		return nil, err
	}

	observability.PassengerDecisionsTotal.WithLabelValues(action).Inc()
	ev := models.RideEvent{Type: evType, RideID: ride.ID, ActorID: callerID, At: now}
	s.publish(ctx, ev)
	s.notify(passengerID, ev)
	return ride, nil
}

func (s *Service) allRides(ctx context.Context) ([]models.Ride, error) {
	raw, err := s.KV.GetByPrefix(ctx, "ride:")
	if err != nil {
		return nil, err
	}
	out := make([]models.Ride, 0, len(raw))
	for _, b := range raw {
		var r models.Ride
		if err := json.Unmarshal(b, &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) publish(ctx context.Context, ev models.RideEvent) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, ev); err != nil && s.Logger != nil {
		s.Logger.Warn("event publish failed", "type", ev.Type, "ride", ev.RideID, "error", err)
	}
}

func (s *Service) notify(userID string, ev models.RideEvent) {
	if s.Notify == nil {
		return
	}
	_ = s.Notify.Notify(userID, ev)
}
