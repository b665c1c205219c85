package domain

import "time"

// TripStatus represents the current status of a trip.
type TripStatus string

const (
	TripStatusRequested  TripStatus = "REQUESTED"
	TripStatusStarted    TripStatus = "STARTED"
	TripStatusInProgress TripStatus = "IN_PROGRESS"
	TripStatusCompleted  TripStatus = "COMPLETED"
)

// tripStatusOrder is the lifecycle order; a trip only ever moves forward.
var tripStatusOrder = map[TripStatus]int{
	TripStatusRequested:  0,
	TripStatusStarted:    1,
	TripStatusInProgress: 2,
	TripStatusCompleted:  3,
}

// Valid reports whether s is a known trip status.
func (s TripStatus) Valid() bool {
	_, ok := tripStatusOrder[s]
	return ok
}

// CanTransitionTo reports whether a trip in status s may move to next.
func (s TripStatus) CanTransitionTo(next TripStatus) bool {
	from, ok := tripStatusOrder[s]
	if !ok {
		return false
	}
	to, ok := tripStatusOrder[next]
	if !ok {
		return false
	}
	return to > from
}

// Trip represents a ride request and its lifecycle.
type Trip struct {
	ID             string
	PickUpAddress  string
	DropOffAddress string
	Status         TripStatus
	RiderID        string
	DriverID       string // Empty until a driver takes the trip
	Rider          *User
	Driver         *User
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasParticipant reports whether userID is the rider or the driver of the trip.
func (t *Trip) HasParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	return t.RiderID == userID || t.DriverID == userID
}
