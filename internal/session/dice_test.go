package session_test

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-client/internal/fair"
	"casino-client/internal/models"
	"casino-client/internal/session"
	"casino-client/internal/transport"
)

// fakeTransport records every request and answers via a scripted
// handler.
type fakeTransport struct {
	mu       sync.Mutex
	requests []fakeRequest
	handler  func(req fakeRequest) (*models.Envelope, error)
}

type fakeRequest struct {
	Game    models.GameType
	Type    models.MsgType
	Payload []byte
}

func (f *fakeTransport) Request(ctx context.Context, game models.GameType, msgType models.MsgType, payload any) (*models.Envelope, error) {
	req := fakeRequest{Game: game, Type: msgType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		req.Payload = data
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	handler := f.handler
	f.mu.Unlock()
	return handler(req)
}

func (f *fakeTransport) Events() <-chan transport.Event { return nil }
func (f *fakeTransport) Close() error                   { return nil }

func (f *fakeTransport) requestCount(msgType models.MsgType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, req := range f.requests {
		if req.Type == msgType {
			n++
		}
	}
	return n
}

func ackSuccess(t *testing.T, payload any) *models.Envelope {
	t.Helper()
	env := &models.Envelope{Type: models.MsgAck, Status: models.AckSuccess}
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		env.Payload = data
	}
	return env
}

func ackError(message string) *models.Envelope {
	return &models.Envelope{Type: models.MsgAck, Status: models.AckError, Message: message}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func sessionAck(t *testing.T, seedHash string) *models.Envelope {
	return ackSuccess(t, models.SessionInfo{
		SessionID:      "sess-1",
		ServerSeedHash: seedHash,
	})
}

func startedDiceSession(t *testing.T, tr *fakeTransport, seedHash string) *session.DiceSession {
	t.Helper()
	tr.handler = func(req fakeRequest) (*models.Envelope, error) {
		return sessionAck(t, seedHash), nil
	}
	dice := session.NewDiceSession(tr, 2, quietLogger())
	require.NoError(t, dice.Start(context.Background()))
	return dice
}

func diceBetAck(t *testing.T, roll int, nonce int64) *models.Envelope {
	return ackSuccess(t, models.BetAckPayload{
		Session: models.SessionInfo{SessionID: "sess-1", Nonce: nonce + 1},
		Roll:    &models.RollResultPayload{SessionID: "sess-1", Roll: roll, Nonce: nonce},
	})
}

func TestDiceStart(t *testing.T) {
	tr := &fakeTransport{}
	dice := startedDiceSession(t, tr, "hash-1")

	snap := dice.Snapshot()
	assert.Equal(t, session.PhaseSessionActive, snap.Phase)
	assert.Equal(t, "sess-1", snap.SessionID)
	assert.Equal(t, "hash-1", snap.ServerSeedHash)
	assert.NotEmpty(t, snap.ClientSeed)
}

func TestDiceStartRejectedOutsideUninitialized(t *testing.T) {
	tr := &fakeTransport{}
	dice := startedDiceSession(t, tr, "hash-1")

	err := dice.Start(context.Background())
	var perr *session.PhaseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, tr.requestCount(models.MsgGetSession))
}

func TestDicePlaceBetResolvesFromAck(t *testing.T) {
	tr := &fakeTransport{}
	dice := startedDiceSession(t, tr, "hash-1")

	tr.handler = func(req fakeRequest) (*models.Envelope, error) {
		return diceBetAck(t, 70, 0), nil
	}

	bet := models.DiceBet{Amount: models.AmountFromFloat(10), Condition: models.DiceOver, Target: 50}
	outcome, err := dice.PlaceBet(context.Background(), bet)
	require.NoError(t, err)
	require.NotNil(t, outcome)

	assert.Equal(t, 70, outcome.Roll)
	assert.True(t, outcome.Win)
	assert.InDelta(t, 1.96, outcome.Multiplier, 1e-12)
	assert.Equal(t, models.AmountFromFloat(9.6), outcome.Profit)

	history := dice.History()
	require.Len(t, history, 1)
	assert.Equal(t, 70, history[0].Roll)
	assert.Equal(t, "hash-1", history[0].ServerSeedHash)

	// Dice has no decision step; the next bet is immediately allowed.
	assert.Equal(t, session.PhaseSessionActive, dice.Snapshot().Phase)

	select {
	case n := <-dice.Events():
		assert.Equal(t, session.NotifyResolved, n.Kind)
		require.NotNil(t, n.Roll)
	default:
		t.Fatal("expected a resolved notification")
	}
}

func TestDicePlaceBetLocalValidation(t *testing.T) {
	tr := &fakeTransport{}
	dice := startedDiceSession(t, tr, "hash-1")

	invalid := []models.DiceBet{
		{Amount: 0, Condition: models.DiceOver, Target: 50},
		{Amount: models.AmountFromFloat(1), Condition: models.DiceOver, Target: 0},
		{Amount: models.AmountFromFloat(1), Condition: "SIDEWAYS", Target: 50},
	}

	for _, bet := range invalid {
		_, err := dice.PlaceBet(context.Background(), bet)
		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr, "bet %+v", bet)
	}

	// Nothing reached the transport and the machine is untouched.
	assert.Equal(t, 0, tr.requestCount(models.MsgPlaceBet))
	snap := dice.Snapshot()
	assert.Equal(t, session.PhaseSessionActive, snap.Phase)
	assert.Nil(t, snap.PendingBet)
	assert.Empty(t, dice.History())
}

func TestDiceRejectsSecondBetWhilePending(t *testing.T) {
	tr := &fakeTransport{}
	dice := startedDiceSession(t, tr, "hash-1")

	release := make(chan struct{})
	tr.handler = func(req fakeRequest) (*models.Envelope, error) {
		<-release
		return diceBetAck(t, 70, 0), nil
	}

	bet := models.DiceBet{Amount: models.AmountFromFloat(10), Condition: models.DiceOver, Target: 50}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := dice.PlaceBet(context.Background(), bet)
		assert.NoError(t, err)
	}()

	require.Eventually(t, func() bool {
		return dice.Snapshot().Phase == session.PhaseBetPending
	}, time.Second, time.Millisecond)

	pendingBefore := dice.Snapshot().PendingBet
	_, err := dice.PlaceBet(context.Background(), bet)
	assert.ErrorIs(t, err, session.ErrBetPending)

	// The rejection sent nothing and left the pending bet alone.
	assert.Equal(t, 1, tr.requestCount(models.MsgPlaceBet))
	assert.Equal(t, pendingBefore, dice.Snapshot().PendingBet)

	close(release)
	<-done
	assert.Equal(t, 1, tr.requestCount(models.MsgPlaceBet))
}

func TestDiceServerErrorReturnsToActive(t *testing.T) {
	tr := &fakeTransport{}
	dice := startedDiceSession(t, tr, "hash-1")

	tr.handler = func(req fakeRequest) (*models.Envelope, error) {
		return ackError("insufficient balance"), nil
	}

	bet := models.DiceBet{Amount: models.AmountFromFloat(10), Condition: models.DiceOver, Target: 50}
	_, err := dice.PlaceBet(context.Background(), bet)

	var serr *session.SessionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "insufficient balance", serr.Message)

	snap := dice.Snapshot()
	assert.Equal(t, session.PhaseSessionActive, snap.Phase)
	assert.Equal(t, "insufficient balance", snap.LastError)
	assert.Nil(t, snap.PendingBet)
	assert.Empty(t, dice.History())
}

func TestDiceTransportFailureDrivesTimeout(t *testing.T) {
	tr := &fakeTransport{}
	dice := startedDiceSession(t, tr, "hash-1")

	tr.handler = func(req fakeRequest) (*models.Envelope, error) {
		return nil, transport.ErrTimeout
	}

	bet := models.DiceBet{Amount: models.AmountFromFloat(10), Condition: models.DiceOver, Target: 50}
	_, err := dice.PlaceBet(context.Background(), bet)

	var tf *session.TransportFailure
	require.ErrorAs(t, err, &tf)
	assert.ErrorIs(t, err, transport.ErrTimeout)
	assert.Equal(t, session.PhaseTimeout, dice.Snapshot().Phase)

	// Bets are rejected until an explicit reconnect.
	_, err = dice.PlaceBet(context.Background(), bet)
	var perr *session.PhaseError
	require.ErrorAs(t, err, &perr)

	require.NoError(t, dice.Reconnect())
	snap := dice.Snapshot()
	assert.Equal(t, session.PhaseUninitialized, snap.Phase)
	assert.Empty(t, snap.SessionID)
	assert.Empty(t, snap.ServerSeedHash)
}

func TestDiceSetClientSeed(t *testing.T) {
	tr := &fakeTransport{}
	dice := session.NewDiceSession(tr, 2, quietLogger())

	require.Error(t, dice.SetClientSeed(""))
	require.NoError(t, dice.SetClientSeed("my-seed"))

	tr.handler = func(req fakeRequest) (*models.Envelope, error) {
		return sessionAck(t, "hash-1"), nil
	}
	require.NoError(t, dice.Start(context.Background()))
	assert.Equal(t, "my-seed", dice.Snapshot().ClientSeed)

	// Immutable during an active session.
	err := dice.SetClientSeed("other")
	var perr *session.PhaseError
	require.ErrorAs(t, err, &perr)
}

func TestDiceSeedRevealVerifiesCommitment(t *testing.T) {
	serverSeed := "the-secret-seed"
	tr := &fakeTransport{}
	dice := startedDiceSession(t, tr, fair.Commitment(serverSeed))

	tr.handler = func(req fakeRequest) (*models.Envelope, error) {
		switch req.Type {
		case models.MsgPlaceBet:
			return diceBetAck(t, 70, 0), nil
		default:
			return ackSuccess(t, nil), nil
		}
	}

	bet := models.DiceBet{Amount: models.AmountFromFloat(10), Condition: models.DiceOver, Target: 50}
	_, err := dice.PlaceBet(context.Background(), bet)
	require.NoError(t, err)

	require.NoError(t, dice.End(context.Background()))
	dice.HandleEvent(transport.Event{
		Game:  models.GameTypeDice,
		Type:  models.MsgGameEnded,
		Ended: &models.GameEndedPayload{SessionID: "sess-1", ServerSeed: serverSeed},
	})

	snap := dice.Snapshot()
	assert.Equal(t, session.PhaseEnded, snap.Phase)
	assert.False(t, snap.FairnessViolated)
	assert.Equal(t, serverSeed, snap.ServerSeed)

	history := dice.History()
	require.Len(t, history, 1)
	assert.Equal(t, serverSeed, history[0].ServerSeed)
}

func TestDiceSeedRevealMismatchIsViolation(t *testing.T) {
	tr := &fakeTransport{}
	dice := startedDiceSession(t, tr, fair.Commitment("honest-seed"))

	dice.HandleEvent(transport.Event{
		Game:  models.GameTypeDice,
		Type:  models.MsgGameEnded,
		Ended: &models.GameEndedPayload{SessionID: "sess-1", ServerSeed: "swapped-seed"},
	})

	snap := dice.Snapshot()
	assert.Equal(t, session.PhaseEnded, snap.Phase)
	assert.True(t, snap.FairnessViolated)

	found := false
	for len(dice.Events()) > 0 {
		if n := <-dice.Events(); n.Kind == session.NotifyFairnessViolation {
			found = true
			assert.ErrorIs(t, n.Err, session.ErrFairnessViolation)
		}
	}
	assert.True(t, found, "expected a fairness violation notification")
}
