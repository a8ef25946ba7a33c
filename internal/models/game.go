package models

type GameType string

const (
	GameTypeDice     GameType = "dice"
	GameTypeCoinflip GameType = "coinflip"
)

type DiceCondition string

const (
	DiceOver  DiceCondition = "OVER"
	DiceUnder DiceCondition = "UNDER"
)

type CoinSide string

const (
	CoinHeads CoinSide = "heads"
	CoinTails CoinSide = "tails"
)

// NextOption is the player decision after a winning coinflip round.
type NextOption string

const (
	NextCashout  NextOption = "CASHOUT"
	NextContinue NextOption = "CONTINUE"
)

// DiceBet is a single dice wager: win if the roll lands on the chosen
// side of the target. Roll equal to target wins for both conditions.
type DiceBet struct {
	Amount    Amount        `json:"amount"`
	Condition DiceCondition `json:"condition"`
	Target    int           `json:"target"`
}

func (b *DiceBet) Validate() error {
	if b.Amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "stake must be positive"}
	}
	if b.Target < 1 || b.Target > 99 {
		return &ValidationError{Field: "target", Reason: "target must be between 1 and 99"}
	}
	switch b.Condition {
	case DiceOver, DiceUnder:
	default:
		return &ValidationError{Field: "condition", Reason: "condition must be OVER or UNDER"}
	}
	return nil
}

// Win reports whether roll wins this bet. Comparisons are inclusive on
// both sides, matching the authority's tie-break rule.
func (b *DiceBet) Win(roll int) bool {
	if b.Condition == DiceOver {
		return roll >= b.Target
	}
	return roll <= b.Target
}

// FlipBet is a single coinflip wager on heads or tails.
type FlipBet struct {
	Amount Amount   `json:"amount"`
	Side   CoinSide `json:"side"`
}

func (b *FlipBet) Validate() error {
	if b.Amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "stake must be positive"}
	}
	switch b.Side {
	case CoinHeads, CoinTails:
	default:
		return &ValidationError{Field: "side", Reason: "side must be heads or tails"}
	}
	return nil
}
