package autobet_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-client/internal/autobet"
	"casino-client/internal/models"
	"casino-client/internal/session"
)

// scriptedBettor resolves each bet from a fixed win/loss script and
// records the stake of every submitted bet.
type scriptedBettor struct {
	wins       []bool
	multiplier float64
	stakes     []models.Amount
	err        error
}

func (b *scriptedBettor) PlaceBet(ctx context.Context, bet models.DiceBet) (*session.DiceOutcome, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.stakes = append(b.stakes, bet.Amount)
	win := false
	if len(b.wins) > 0 {
		win, b.wins = b.wins[0], b.wins[1:]
	}
	profit := -bet.Amount
	if win {
		profit = models.AmountFromFloat(bet.Amount.Float() * (b.multiplier - 1))
	}
	return &session.DiceOutcome{
		Roll:       50,
		Bet:        bet,
		Win:        win,
		Multiplier: b.multiplier,
		Profit:     profit,
	}, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func baseBet() models.DiceBet {
	return models.DiceBet{Amount: models.AmountFromFloat(10), Condition: models.DiceOver, Target: 50}
}

func resetPolicy() autobet.Policy {
	return autobet.Policy{
		OnWin:       autobet.StakeRule{Action: autobet.ActionReset},
		OnLoss:      autobet.StakeRule{Action: autobet.ActionReset},
		SettleDelay: time.Millisecond,
	}
}

func TestRunStopsAtBetLimit(t *testing.T) {
	bettor := &scriptedBettor{wins: []bool{true, false, true}, multiplier: 1.96}
	policy := resetPolicy()
	policy.NumberOfBets = 3

	ctrl, err := autobet.New(bettor, policy, testLogger())
	require.NoError(t, err)

	result := ctrl.Run(context.Background(), baseBet())

	assert.Equal(t, autobet.StopBetLimit, result.Reason)
	assert.Equal(t, 3, result.BetsPlaced)
	assert.NoError(t, result.Err)

	// Reset on both outcomes keeps every stake at the base.
	require.Len(t, bettor.stakes, 3)
	for _, stake := range bettor.stakes {
		assert.Equal(t, models.AmountFromFloat(10), stake)
	}

	want := models.AmountFromFloat(10*0.96) - models.AmountFromFloat(10) + models.AmountFromFloat(10*0.96)
	assert.Equal(t, want, result.Profit)
}

func TestRunStopsOnProfitTargetBeforeBetLimit(t *testing.T) {
	bettor := &scriptedBettor{wins: []bool{true, true, true, true, true}, multiplier: 2.0}
	policy := resetPolicy()
	policy.NumberOfBets = 5
	policy.StopOnProfit = models.AmountFromFloat(25)

	ctrl, err := autobet.New(bettor, policy, testLogger())
	require.NoError(t, err)

	result := ctrl.Run(context.Background(), baseBet())

	// 10 profit per win; the target of 25 is crossed on bet three.
	assert.Equal(t, autobet.StopProfitTarget, result.Reason)
	assert.Equal(t, 3, result.BetsPlaced)
	assert.Equal(t, models.AmountFromFloat(30), result.Profit)
}

func TestRunStopsOnLossLimit(t *testing.T) {
	bettor := &scriptedBettor{wins: []bool{false, false, false, false}, multiplier: 1.96}
	policy := resetPolicy()
	policy.StopOnLoss = models.AmountFromFloat(20)

	ctrl, err := autobet.New(bettor, policy, testLogger())
	require.NoError(t, err)

	result := ctrl.Run(context.Background(), baseBet())

	assert.Equal(t, autobet.StopLossLimit, result.Reason)
	assert.Equal(t, 2, result.BetsPlaced)
	assert.Equal(t, models.AmountFromFloat(-20), result.Profit)
}

func TestRunIncreaseCompoundsStakeOnLoss(t *testing.T) {
	bettor := &scriptedBettor{wins: []bool{false, false, true}, multiplier: 1.96}
	policy := resetPolicy()
	policy.NumberOfBets = 3
	policy.OnLoss = autobet.StakeRule{Action: autobet.ActionIncrease, Percent: 100}

	ctrl, err := autobet.New(bettor, policy, testLogger())
	require.NoError(t, err)

	result := ctrl.Run(context.Background(), baseBet())
	require.Equal(t, autobet.StopBetLimit, result.Reason)

	// Martingale doubling after each loss.
	require.Len(t, bettor.stakes, 3)
	assert.Equal(t, models.AmountFromFloat(10), bettor.stakes[0])
	assert.Equal(t, models.AmountFromFloat(20), bettor.stakes[1])
	assert.Equal(t, models.AmountFromFloat(40), bettor.stakes[2])
}

func TestRunWinResetsAfterIncrease(t *testing.T) {
	bettor := &scriptedBettor{wins: []bool{false, true, false}, multiplier: 1.96}
	policy := resetPolicy()
	policy.NumberOfBets = 3
	policy.OnLoss = autobet.StakeRule{Action: autobet.ActionIncrease, Percent: 50}

	ctrl, err := autobet.New(bettor, policy, testLogger())
	require.NoError(t, err)

	result := ctrl.Run(context.Background(), baseBet())
	require.Equal(t, autobet.StopBetLimit, result.Reason)

	require.Len(t, bettor.stakes, 3)
	assert.Equal(t, models.AmountFromFloat(10), bettor.stakes[0])
	assert.Equal(t, models.AmountFromFloat(15), bettor.stakes[1])
	// The win resets back to base, not to the inflated stake.
	assert.Equal(t, models.AmountFromFloat(10), bettor.stakes[2])
}

func TestRunHaltsOnBettorError(t *testing.T) {
	fatal := errors.New("session in phase TIMEOUT")
	bettor := &scriptedBettor{err: fatal}

	ctrl, err := autobet.New(bettor, resetPolicy(), testLogger())
	require.NoError(t, err)

	result := ctrl.Run(context.Background(), baseBet())

	assert.Equal(t, autobet.StopError, result.Reason)
	assert.ErrorIs(t, result.Err, fatal)
	assert.Equal(t, 0, result.BetsPlaced)
}

func TestRunHonorsCancellation(t *testing.T) {
	bettor := &scriptedBettor{wins: []bool{true, true, true}, multiplier: 1.96}
	policy := resetPolicy()
	policy.SettleDelay = time.Hour

	ctrl, err := autobet.New(bettor, policy, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	result := ctrl.Run(ctx, baseBet())

	assert.Equal(t, autobet.StopCancelled, result.Reason)
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Equal(t, 1, result.BetsPlaced)
}

func TestRunRejectsInvalidBaseBet(t *testing.T) {
	bettor := &scriptedBettor{}
	ctrl, err := autobet.New(bettor, resetPolicy(), testLogger())
	require.NoError(t, err)

	result := ctrl.Run(context.Background(), models.DiceBet{Amount: 0, Condition: models.DiceOver, Target: 50})

	assert.Equal(t, autobet.StopError, result.Reason)
	var verr *models.ValidationError
	assert.ErrorAs(t, result.Err, &verr)
	assert.Empty(t, bettor.stakes)
}

func TestPolicyValidate(t *testing.T) {
	bad := []autobet.Policy{
		{OnWin: autobet.StakeRule{Action: "martingale"}, OnLoss: autobet.StakeRule{Action: autobet.ActionReset}},
		{OnWin: autobet.StakeRule{Action: autobet.ActionReset}, OnLoss: autobet.StakeRule{Action: autobet.ActionIncrease, Percent: -5}},
		{OnWin: autobet.StakeRule{Action: autobet.ActionReset}, OnLoss: autobet.StakeRule{Action: autobet.ActionReset}, NumberOfBets: -1},
	}
	for _, policy := range bad {
		_, err := autobet.New(&scriptedBettor{}, policy, testLogger())
		var verr *models.ValidationError
		assert.ErrorAs(t, err, &verr, "%+v", policy)
	}
}
