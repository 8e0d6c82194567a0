package models

import "time"

// UserType distinguishes who may post what. Passengers only join and
// request rides; hybrid users additionally offer them.
type UserType string

const (
	UserPassenger UserType = "passenger"
	UserHybrid    UserType = "hybrid"
)

type VerificationStatus string

const (
	VerificationVerified VerificationStatus = "verified"
	VerificationPending  VerificationStatus = "pending"
)

// User is the profile stored under user:<id>.
type User struct {
	ID                 string             `json:"id"`
	Email              string             `json:"email"`
	Name               string             `json:"name"`
	StudentID          string             `json:"studentId"`
	Batch              string             `json:"batch"`
	Department         string             `json:"department"`
	UserType           UserType           `json:"userType"`
	Rating             float64            `json:"rating"` // 0..5, one decimal
	TotalRides         int                `json:"totalRides"`
	Points             int                `json:"points"`
	Verified           bool               `json:"verified"`
	VerificationStatus VerificationStatus `json:"verificationStatus"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt,omitempty"`
}

type RideKind string

const (
	KindOffer   RideKind = "offer"
	KindRequest RideKind = "request"
)

type RideStatus string

const (
	RideActive    RideStatus = "active"
	RideCompleted RideStatus = "completed"
	RideCancelled RideStatus = "cancelled"
)

type Vehicle string

const (
	VehicleBicycle Vehicle = "bicycle"
	VehicleBike    Vehicle = "bike"
	VehicleCar     Vehicle = "car"
)

type PassengerStatus string

const (
	PassengerPending  PassengerStatus = "pending"
	PassengerAccepted PassengerStatus = "accepted"
	PassengerRejected PassengerStatus = "rejected"
)

// Passenger is one join entry on an offer. Status moves pending ->
// accepted|rejected and is terminal after that.
type Passenger struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Batch    string          `json:"batch"`
	Status   PassengerStatus `json:"status"`
	JoinedAt time.Time       `json:"joinedAt"`
}

// OfferDetails carries the fields only offer-kind rides have.
type OfferDetails struct {
	AvailableSeats int         `json:"availableSeats"`
	Vehicle        Vehicle     `json:"vehicle"`
	DriverRating   float64     `json:"driverRating"` // author rating snapshot at posting time
	Passengers     []Passenger `json:"passengers"`
}

// RequestDetails carries the fields only request-kind rides have.
type RequestDetails struct {
	IsUrgent  bool     `json:"isUrgent"`
	Responses []string `json:"responses"`
}

// Ride is a tagged union over offer and request postings: the common
// header plus exactly one of Offer/Request populated according to Kind.
type Ride struct {
	ID            string     `json:"id"`
	Kind          RideKind   `json:"type"`
	AuthorID      string     `json:"authorId"`
	AuthorName    string     `json:"authorName"`
	AuthorBatch   string     `json:"authorBatch"`
	From          string     `json:"from"`
	To            string     `json:"to"`
	DepartureTime string     `json:"departureTime"`
	Notes         string     `json:"notes,omitempty"`
	Status        RideStatus `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt,omitempty"`

	Offer   *OfferDetails   `json:"offer,omitempty"`
	Request *RequestDetails `json:"request,omitempty"`
}

// OccupiedSeats counts passengers still holding a seat, i.e. pending or
// accepted. Rejected entries free their seat.
func (o *OfferDetails) OccupiedSeats() int {
	n := 0
	for _, p := range o.Passengers {
		if p.Status != PassengerRejected {
			n++
		}
	}
	return n
}

// HasPassenger reports whether uid holds a non-rejected entry on the ride.
func (r *Ride) HasPassenger(uid string) bool {
	if r.Offer == nil {
		return false
	}
	for _, p := range r.Offer.Passengers {
		if p.ID == uid && p.Status != PassengerRejected {
			return true
		}
	}
	return false
}

// IsUrgent is false for offers; requests report their flag.
func (r *Ride) IsUrgent() bool {
	return r.Request != nil && r.Request.IsUrgent
}

// RatingRecord is stored under rating:<rideId>:<raterId>. Re-rating the
// same ride overwrites it (last write wins).
type RatingRecord struct {
	RideID    string    `json:"rideId"`
	RaterID   string    `json:"raterId"`
	TargetID  string    `json:"targetId"`
	Rating    int       `json:"rating"` // 1..5
	Review    string    `json:"review,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// LeaderboardEntry is one annotated row of the top-50 board.
type LeaderboardEntry struct {
	Rank       int     `json:"rank"`
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Batch      string  `json:"batch"`
	Rating     float64 `json:"rating"`
	TotalRides int     `json:"totalRides"`
	Points     int     `json:"points"`
	Badge      string  `json:"badge"`
}

// Ride lifecycle event types published to Kafka.
const (
	EventRidePosted        = "ride_posted"
	EventRequestPosted     = "request_posted"
	EventPassengerJoined   = "passenger_joined"
	EventPassengerAccepted = "passenger_accepted"
	EventPassengerRejected = "passenger_rejected"
	EventRideRated         = "ride_rated"
)

// RideEvent is the envelope written to the ride-events topic.
type RideEvent struct {
	Type    string         `json:"type"`
	RideID  string         `json:"ride_id"`
	ActorID string         `json:"actor_id"`
	At      time.Time      `json:"at"`
	Payload map[string]any `json:"payload,omitempty"`
}
