package ranking

import (
	"sort"

	"github.com/example/uniride/internal/models"
)

// Visible filters the feed for one viewer: only active rides, never the
// viewer's own postings or rides they already joined, and passengers
// never see request-kind rides.
func Visible(rides []models.Ride, viewer *models.User) []models.Ride {
	out := make([]models.Ride, 0, len(rides))
	for _, r := range rides {
		if r.Status != models.RideActive {
			continue
		}
		if viewer.UserType == models.UserPassenger && r.Kind != models.KindOffer {
			continue
		}
		if r.AuthorID == viewer.ID || r.HasPassenger(viewer.ID) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Rank orders rides by the feed priority policy. Precedence is fixed:
// same-batch first, then urgent, then (offers only) higher driver
// rating, then most recent. The sort is stable so equal rides keep
// their input order.
func Rank(rides []models.Ride, viewer *models.User) []models.Ride {
	out := make([]models.Ride, len(rides))
	copy(out, rides)
	sort.SliceStable(out, func(i, j int) bool {
		return Less(&out[i], &out[j], viewer.Batch)
	})
	return out
}

// Less is the feed comparator; exported so tests can probe individual
// key precedence.
func Less(a, b *models.Ride, viewerBatch string) bool {
	aBatch := a.AuthorBatch == viewerBatch
	bBatch := b.AuthorBatch == viewerBatch
	if aBatch != bBatch {
		return aBatch
	}

	aUrgent := a.IsUrgent()
	bUrgent := b.IsUrgent()
	if aUrgent != bUrgent {
		return aUrgent
	}

	if a.Offer != nil && b.Offer != nil && a.Offer.DriverRating != b.Offer.DriverRating {
		return a.Offer.DriverRating > b.Offer.DriverRating
	}

	return a.CreatedAt.After(b.CreatedAt)
}

// FeedFor is Visible followed by Rank.
func FeedFor(rides []models.Ride, viewer *models.User) []models.Ride {
	return Rank(Visible(rides, viewer), viewer)
}
