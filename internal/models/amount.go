package models

import (
	"fmt"
	"math"
	"strconv"
)

// SubunitsPerUnit is the number of integer subunits in one unit of the
// base currency. Eight decimal places, satoshi-style.
const SubunitsPerUnit = 100_000_000

// Amount is a currency amount in integer subunits. Amounts cross the
// wire string-encoded to avoid floating-point precision loss.
type Amount int64

func AmountFromFloat(units float64) Amount {
	return Amount(math.Round(units * SubunitsPerUnit))
}

// ParseAmount decodes a wire-encoded amount: integer subunits as a
// decimal string.
func ParseAmount(s string) (Amount, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &ValidationError{Field: "amount", Reason: fmt.Sprintf("malformed amount %q", s)}
	}
	return Amount(v), nil
}

func (a Amount) String() string {
	return strconv.FormatInt(int64(a), 10)
}

// Float converts to major units for payout math and display.
func (a Amount) Float() float64 {
	return float64(a) / SubunitsPerUnit
}
