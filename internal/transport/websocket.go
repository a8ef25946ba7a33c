package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"casino-client/internal/models"
)

const DefaultRequestTimeout = 10 * time.Second

// WebSocket is the production Transport: a single persistent
// connection, one reader goroutine, writes serialized by a mutex.
type WebSocket struct {
	conn    *websocket.Conn
	log     *logrus.Entry
	timeout time.Duration

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan *models.Envelope

	events    chan Event
	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects to the authority's websocket endpoint, presenting the
// auth token as a query parameter.
func Dial(ctx context.Context, endpoint, token string, timeout time.Duration, logger *logrus.Logger) (*WebSocket, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}

	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	ws := &WebSocket{
		conn:    conn,
		log:     logger.WithField("component", "transport"),
		timeout: timeout,
		pending: make(map[string]chan *models.Envelope),
		events:  make(chan Event, 32),
		closed:  make(chan struct{}),
	}

	go ws.readLoop()

	return ws, nil
}

func (ws *WebSocket) Request(ctx context.Context, game models.GameType, msgType models.MsgType, payload any) (*models.Envelope, error) {
	env := models.Envelope{
		ID:   uuid.New().String(),
		Type: msgType,
		Game: game,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
		}
		env.Payload = data
	}

	ackCh := make(chan *models.Envelope, 1)
	ws.mu.Lock()
	ws.pending[env.ID] = ackCh
	ws.mu.Unlock()
	defer func() {
		ws.mu.Lock()
		delete(ws.pending, env.ID)
		ws.mu.Unlock()
	}()

	ws.writeMu.Lock()
	err := ws.conn.WriteJSON(&env)
	ws.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClosed, err)
	}

	timer := time.NewTimer(ws.timeout)
	defer timer.Stop()

	select {
	case ack := <-ackCh:
		return ack, nil
	case <-timer.C:
		ws.log.WithFields(logrus.Fields{"type": msgType, "id": env.ID}).Warn("request not acknowledged in time")
		return nil, ErrTimeout
	case <-ws.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (ws *WebSocket) Events() <-chan Event {
	return ws.events
}

func (ws *WebSocket) Close() error {
	var err error
	ws.closeOnce.Do(func() {
		close(ws.closed)
		err = ws.conn.Close()
	})
	return err
}

// readLoop is the sole sender on events and the only place that
// closes it.
func (ws *WebSocket) readLoop() {
	defer close(ws.events)

	for {
		var env models.Envelope
		if err := ws.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.log.WithError(err).Warn("connection lost")
			}
			ws.Close()
			return
		}

		if env.Type == models.MsgAck {
			ws.mu.Lock()
			ch, ok := ws.pending[env.ID]
			ws.mu.Unlock()
			if ok {
				ch <- &env
			} else {
				ws.log.WithField("id", env.ID).Debug("ack for unknown request")
			}
			continue
		}

		ev, err := decodeEvent(&env)
		if err != nil {
			ws.log.WithError(err).WithField("type", env.Type).Warn("discarding malformed event")
			continue
		}

		select {
		case ws.events <- ev:
		case <-ws.closed:
			return
		}
	}
}

// decodeEvent narrows a pushed envelope into one of the closed event
// shapes. Unknown types are an error so they get logged, not silently
// dropped.
func decodeEvent(env *models.Envelope) (Event, error) {
	ev := Event{Game: env.Game, Type: env.Type}
	switch env.Type {
	case models.MsgRollResult:
		var p models.RollResultPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return ev, err
		}
		ev.Roll = &p
	case models.MsgFlipResult:
		var p models.FlipResultPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return ev, err
		}
		ev.Flip = &p
	case models.MsgGameEnded:
		var p models.GameEndedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return ev, err
		}
		ev.Ended = &p
	default:
		return ev, fmt.Errorf("unknown event type %q", env.Type)
	}
	return ev, nil
}
