package session

import (
	"context"
	"fmt"
	"log"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// Handler handles the inbound messages a Router recognizes.
type Handler interface {
	CreateTrip(ctx context.Context, msg CreateTripMessage) error
	UpdateTrip(ctx context.Context, msg UpdateTripMessage) error
}

// Router decodes inbound frames and dispatches them to a Handler.
type Router struct {
	handler Handler
	nrApp   *newrelic.Application
}

// NewRouter creates a Router. nrApp may be nil.
func NewRouter(handler Handler, nrApp *newrelic.Application) *Router {
	return &Router{handler: handler, nrApp: nrApp}
}

// Dispatch handles one inbound frame. Malformed frames and unknown message
// types are logged and ignored; only handler errors are returned.
func (r *Router) Dispatch(ctx context.Context, raw []byte) error {
	msg, err := Decode(raw)
	if err != nil {
		log.Printf("[WS] ignoring malformed message: err=%v", err)
		return nil
	}

	if _, ok := msg.(UnknownMessage); ok {
		log.Printf("[WS] ignoring message: type=%q", msg.MessageType())
		return nil
	}

	var txn *newrelic.Transaction
	if r.nrApp != nil {
		txn = r.nrApp.StartTransaction("WebSocket/" + msg.MessageType())
		defer txn.End()
		ctx = newrelic.NewContext(ctx, txn)
	}

	switch m := msg.(type) {
	case CreateTripMessage:
		err = r.handler.CreateTrip(ctx, m)
	case UpdateTripMessage:
		err = r.handler.UpdateTrip(ctx, m)
	default:
		return nil
	}

	if err != nil {
		if txn != nil {
			txn.NoticeError(err)
		}
		return fmt.Errorf("%s: %w", msg.MessageType(), err)
	}
	return nil
}
