package session

import (
	"context"
	"errors"
	"testing"
)

type recordingHandler struct {
	creates []CreateTripMessage
	updates []UpdateTripMessage

	CreateError error
}

func (h *recordingHandler) CreateTrip(ctx context.Context, msg CreateTripMessage) error {
	h.creates = append(h.creates, msg)
	return h.CreateError
}

func (h *recordingHandler) UpdateTrip(ctx context.Context, msg UpdateTripMessage) error {
	h.updates = append(h.updates, msg)
	return nil
}

func TestRouter_DispatchesByType(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{}
	r := NewRouter(h, nil)

	err := r.Dispatch(context.Background(), []byte(`{"type":"create.trip","data":{"pick_up_address":"A","drop_off_address":"B","rider":"rider-1"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = r.Dispatch(context.Background(), []byte(`{"type":"update.trip","data":{"id":"trip-1","status":"STARTED"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(h.creates) != 1 {
		t.Fatalf("expected 1 create, got %d", len(h.creates))
	}
	want := CreateTripMessage{PickUpAddress: "A", DropOffAddress: "B", Rider: "rider-1"}
	if h.creates[0] != want {
		t.Errorf("expected %+v, got %+v", want, h.creates[0])
	}
	if len(h.updates) != 1 || h.updates[0].ID != "trip-1" || h.updates[0].Status != "STARTED" {
		t.Errorf("unexpected updates: %+v", h.updates)
	}
}

func TestRouter_IgnoresUnknownAndMalformed(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		raw  string
	}{
		{name: "unknown type", raw: `{"type":"delete.trip","data":{}}`},
		{name: "missing type", raw: `{"data":{}}`},
		{name: "not json", raw: `hello`},
		{name: "wrong data shape", raw: `{"type":"create.trip","data":"oops"}`},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := &recordingHandler{}
			r := NewRouter(h, nil)

			if err := r.Dispatch(context.Background(), []byte(tc.raw)); err != nil {
				t.Errorf("expected message ignored, got %v", err)
			}
			if len(h.creates)+len(h.updates) != 0 {
				t.Error("expected no handler calls")
			}
		})
	}
}

func TestRouter_ReturnsHandlerError(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{CreateError: errors.New("invalid trip")}
	r := NewRouter(h, nil)

	err := r.Dispatch(context.Background(), []byte(`{"type":"create.trip","data":{}}`))

	if !errors.Is(err, h.CreateError) {
		t.Errorf("expected handler error, got %v", err)
	}
}

func TestDecode_MissingDataIsZeroValue(t *testing.T) {
	t.Parallel()

	msg, err := Decode([]byte(`{"type":"create.trip"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := msg.(CreateTripMessage); !ok {
		t.Errorf("expected CreateTripMessage, got %T", msg)
	}
}
