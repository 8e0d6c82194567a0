package rides

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/uniride/internal/apperrors"
	"github.com/example/uniride/internal/kvstore"
	"github.com/example/uniride/internal/models"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func newTestService(now time.Time) *Service {
	s := NewService(kvstore.NewMemoryKV(), nil, nil, nil)
	s.Now = fixedClock(now)
	return s
}

func hybrid(id string) *models.User {
	return &models.User{ID: id, Name: "Driver " + id, Batch: "2022", UserType: models.UserHybrid, Rating: 4.2}
}

func passenger(id string) *models.User {
	return &models.User{ID: id, Name: "Pax " + id, Batch: "2023", UserType: models.UserPassenger}
}

var offerIn = OfferInput{From: "Campus", To: "Town", DepartureTime: "8:00 AM", AvailableSeats: 2, Vehicle: models.VehicleCar}

func TestPostOfferForbiddenForPassengers(t *testing.T) {
	s := newTestService(time.Now())
	_, err := s.PostOffer(context.Background(), passenger("p1"), offerIn)
	if !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestPostOfferSnapshotsRatingAndIndexes(t *testing.T) {
	s := newTestService(time.Now())
	u := hybrid("d1")
	ride, err := s.PostOffer(context.Background(), u, offerIn)
	if err != nil {
		t.Fatal(err)
	}
	if ride.Offer.DriverRating != u.Rating {
		t.Fatalf("driverRating = %v, want snapshot %v", ride.Offer.DriverRating, u.Rating)
	}
	if ride.Status != models.RideActive || len(ride.Offer.Passengers) != 0 {
		t.Fatalf("new offer not active/empty: %+v", ride)
	}
	mine, err := s.MyRides(context.Background(), u.ID)
	if err != nil || len(mine) != 1 || mine[0].ID != ride.ID {
		t.Fatalf("MyRides = %v, %v", mine, err)
	}
}

func TestPostOfferValidation(t *testing.T) {
	s := newTestService(time.Now())
	u := hybrid("d1")
	cases := []OfferInput{
		{From: "Campus", To: "Campus", AvailableSeats: 2, Vehicle: models.VehicleCar},
		{From: "", To: "Town", AvailableSeats: 2, Vehicle: models.VehicleCar},
		{From: "Campus", To: "Town", AvailableSeats: 0, Vehicle: models.VehicleCar},
		{From: "Campus", To: "Town", AvailableSeats: 2, Vehicle: "skateboard"},
	}
	for i, in := range cases {
		if _, err := s.PostOffer(context.Background(), u, in); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Fatalf("case %d: err = %v, want ErrInvalidInput", i, err)
		}
	}
}

func TestDailyQuotaForPassengers(t *testing.T) {
	day1 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s := newTestService(day1)
	p := passenger("p1")
	in := RequestInput{From: "Hostel", To: "Campus"}

	for i := 0; i < 2; i++ {
		if _, err := s.PostRequest(context.Background(), p, in); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
	if _, err := s.PostRequest(context.Background(), p, in); !errors.Is(err, apperrors.ErrRateLimited) {
		t.Fatalf("3rd same-day request: err = %v, want ErrRateLimited", err)
	}

	// Date rollover opens a fresh counter.
	s.Now = fixedClock(day1.Add(24 * time.Hour))
	if _, err := s.PostRequest(context.Background(), p, in); err != nil {
		t.Fatalf("next-day request: %v", err)
	}
}

func TestHybridUsersNotMetered(t *testing.T) {
	s := newTestService(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	h := hybrid("d1")
	in := RequestInput{From: "Hostel", To: "Campus", IsUrgent: true}
	for i := 0; i < 5; i++ {
		if _, err := s.PostRequest(context.Background(), h, in); err != nil {
			t.Fatalf("hybrid request %d: %v", i+1, err)
		}
	}
}

func TestJoinLifecycle(t *testing.T) {
	s := newTestService(time.Now())
	ctx := context.Background()
	driver := hybrid("d1")
	ride, err := s.PostOffer(ctx, driver, offerIn) // 2 seats
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Join(ctx, driver, ride.ID); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("self-join: err = %v, want ErrConflict", err)
	}

	if _, err := s.Join(ctx, passenger("p1"), ride.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Join(ctx, passenger("p1"), ride.ID); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("duplicate join: err = %v, want ErrConflict", err)
	}
	if _, err := s.Join(ctx, passenger("p2"), ride.ID); err != nil {
		t.Fatal(err)
	}
	// Both seats held by pending entries.
	if _, err := s.Join(ctx, passenger("p3"), ride.ID); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("full ride: err = %v, want ErrConflict", err)
	}

	// Rejecting p1 frees the seat.
	if _, err := s.Decide(ctx, driver.ID, ride.ID, "p1", "reject"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Join(ctx, passenger("p3"), ride.ID); err != nil {
		t.Fatalf("join after reject should succeed: %v", err)
	}
}

func TestJoinOnlyOffers(t *testing.T) {
	s := newTestService(time.Now())
	ctx := context.Background()
	req, err := s.PostRequest(ctx, hybrid("d1"), RequestInput{From: "A", To: "B"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Join(ctx, passenger("p1"), req.ID); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("join request-kind ride: err = %v, want ErrConflict", err)
	}
	if _, err := s.Join(ctx, passenger("p1"), "ride_missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("join missing ride: err = %v, want ErrNotFound", err)
	}
}

func TestDecideAuthorization(t *testing.T) {
	s := newTestService(time.Now())
	ctx := context.Background()
	ride, _ := s.PostOffer(ctx, hybrid("d1"), offerIn)
	if _, err := s.Join(ctx, passenger("p1"), ride.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Decide(ctx, "stranger", ride.ID, "p1", "accept"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("non-author decide: err = %v, want ErrNotFound", err)
	}
	if _, err := s.Decide(ctx, "d1", ride.ID, "ghost", "accept"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("missing passenger: err = %v, want ErrNotFound", err)
	}
	if _, err := s.Decide(ctx, "d1", ride.ID, "p1", "promote"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("bad action: err = %v, want ErrInvalidInput", err)
	}
}

func TestDecideSetsOnlyTargetAndIsTerminal(t *testing.T) {
	s := newTestService(time.Now())
	ctx := context.Background()
	ride, _ := s.PostOffer(ctx, hybrid("d1"), offerIn)
	_, _ = s.Join(ctx, passenger("p1"), ride.ID)
	_, _ = s.Join(ctx, passenger("p2"), ride.ID)

	got, err := s.Decide(ctx, "d1", ride.ID, "p1", "accept")
	if err != nil {
		t.Fatal(err)
	}
	statuses := map[string]models.PassengerStatus{}
	for _, p := range got.Offer.Passengers {
		statuses[p.ID] = p.Status
	}
	if statuses["p1"] != models.PassengerAccepted || statuses["p2"] != models.PassengerPending {
		t.Fatalf("statuses = %v", statuses)
	}

	// Terminal: a repeat or contradictory decision is a no-op.
	got, err = s.Decide(ctx, "d1", ride.ID, "p1", "reject")
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range got.Offer.Passengers {
		if p.ID == "p1" && p.Status != models.PassengerAccepted {
			t.Fatalf("terminal entry mutated to %s", p.Status)
		}
	}
}

func TestFeedExcludesOwnRides(t *testing.T) {
	s := newTestService(time.Now())
	ctx := context.Background()
	d1, d2 := hybrid("d1"), hybrid("d2")
	_, _ = s.PostOffer(ctx, d1, offerIn)
	_, _ = s.PostOffer(ctx, d2, offerIn)

	feed, err := s.Feed(ctx, d1)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range feed {
		if r.AuthorID == d1.ID {
			t.Fatalf("own ride %s in feed", r.ID)
		}
	}
	if len(feed) != 1 {
		t.Fatalf("feed size = %d, want 1", len(feed))
	}
}

func TestMyRidesIncludesJoined(t *testing.T) {
	s := newTestService(time.Now())
	ctx := context.Background()
	ride, _ := s.PostOffer(ctx, hybrid("d1"), offerIn)
	p := passenger("p1")
	if _, err := s.Join(ctx, p, ride.ID); err != nil {
		t.Fatal(err)
	}
	mine, err := s.MyRides(ctx, p.ID)
	if err != nil || len(mine) != 1 || mine[0].ID != ride.ID {
		t.Fatalf("MyRides = %v, %v", mine, err)
	}
}
