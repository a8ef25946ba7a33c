// Package transport is the client's bidirectional channel to the game
// authority: request/acknowledgement pairs correlated by ID, plus
// server-pushed events decoded once at this boundary into a closed set
// of payload shapes.
package transport

import (
	"context"
	"errors"

	"casino-client/internal/models"
)

var (
	// ErrTimeout is returned when a request is not acknowledged within
	// the configured window.
	ErrTimeout = errors.New("transport: request timed out")
	// ErrClosed is returned once the connection is gone.
	ErrClosed = errors.New("transport: connection closed")
)

// Event is a server-pushed message. Exactly one payload field is set,
// according to Type.
type Event struct {
	Game  models.GameType
	Type  models.MsgType
	Roll  *models.RollResultPayload
	Flip  *models.FlipResultPayload
	Ended *models.GameEndedPayload
}

// Transport sends requests and exposes pushed events. Implementations
// must deliver acks and events in the order the authority sent them.
type Transport interface {
	// Request sends a message and blocks until the matching ack, the
	// context is done, or the transport's timeout elapses.
	Request(ctx context.Context, game models.GameType, msgType models.MsgType, payload any) (*models.Envelope, error)
	// Events returns the pushed-event stream. Closed when the
	// connection drops.
	Events() <-chan Event
	Close() error
}
