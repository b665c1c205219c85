package session

import (
	"encoding/json"
	"time"

	"taxi/internal/domain"
)

// Message types carried in the envelope's type tag.
const (
	TypeCreateTrip = "create.trip"
	TypeUpdateTrip = "update.trip"
)

// Message is the outbound envelope.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Encode serializes msg for the wire.
func Encode(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// UserPayload is the public summary of a rider or driver.
type UserPayload struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Group     string `json:"group"`
}

// TripPayload is the trip representation sent to clients.
type TripPayload struct {
	ID             string       `json:"id"`
	PickUpAddress  string       `json:"pick_up_address"`
	DropOffAddress string       `json:"drop_off_address"`
	Status         string       `json:"status"`
	Driver         *UserPayload `json:"driver"`
	Rider          *UserPayload `json:"rider"`
	Created        string       `json:"created"`
	Updated        string       `json:"updated"`
}

// NewTripPayload builds the client representation of trip.
// Driver is null until a driver takes the trip.
func NewTripPayload(trip *domain.Trip) TripPayload {
	p := TripPayload{
		ID:             trip.ID,
		PickUpAddress:  trip.PickUpAddress,
		DropOffAddress: trip.DropOffAddress,
		Status:         string(trip.Status),
		Driver:         NewUserPayload(trip.Driver),
		Rider:          NewUserPayload(trip.Rider),
		Created:        trip.CreatedAt.UTC().Format(time.RFC3339),
		Updated:        trip.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if p.Rider == nil && trip.RiderID != "" {
		p.Rider = &UserPayload{ID: trip.RiderID}
	}
	return p
}

// NewUserPayload returns nil for a nil user.
func NewUserPayload(u *domain.User) *UserPayload {
	if u == nil {
		return nil
	}
	return &UserPayload{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Group:     string(u.Group),
	}
}

// InboundMessage is one of CreateTripMessage, UpdateTripMessage or
// UnknownMessage.
type InboundMessage interface {
	MessageType() string
}

// CreateTripMessage asks to request a new trip.
type CreateTripMessage struct {
	PickUpAddress  string `json:"pick_up_address"`
	DropOffAddress string `json:"drop_off_address"`
	Rider          string `json:"rider"`
}

func (CreateTripMessage) MessageType() string { return TypeCreateTrip }

// UpdateTripMessage asks to move a trip to a new status.
type UpdateTripMessage struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (UpdateTripMessage) MessageType() string { return TypeUpdateTrip }

// UnknownMessage carries a type tag nothing handles.
type UnknownMessage struct {
	Type string
}

func (m UnknownMessage) MessageType() string { return m.Type }

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode parses an inbound envelope into its message kind.
func Decode(raw []byte) (InboundMessage, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}

	switch env.Type {
	case TypeCreateTrip:
		var m CreateTripMessage
		if err := decodeData(env.Data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeUpdateTrip:
		var m UpdateTripMessage
		if err := decodeData(env.Data, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return UnknownMessage{Type: env.Type}, nil
	}
}

// decodeData leaves v zero-valued when data is missing or null.
func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
