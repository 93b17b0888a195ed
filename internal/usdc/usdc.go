// Package usdc converts between the 6-decimal integer amounts used on-chain
// and human-readable decimal values. All arithmetic elsewhere in the module
// happens on Amount; decimals and floats appear only at the render step.
package usdc

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits of the USDC token.
const Decimals = 6

// Amount is a USDC quantity in micro units (10^-6 USDC).
type Amount int64

// Unit is one whole USDC.
const Unit Amount = 1_000_000

// ErrInvalidAmount is returned for negative, non-finite, over-precise or
// out-of-range inputs.
var ErrInvalidAmount = errors.New("invalid usdc amount")

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// ToDisplay divides n by 10^6 exactly.
func ToDisplay(n Amount) decimal.Decimal {
	return decimal.New(int64(n), -Decimals)
}

// ToInteger scales a display value to micro units. The float goes through its
// shortest decimal representation first, so 0.1 becomes exactly 100000 and not
// 99999 from binary rounding.
func ToInteger(v float64) (Amount, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("usdc: %w: %v is not finite", ErrInvalidAmount, v)
	}
	if v < 0 {
		return 0, fmt.Errorf("usdc: %w: %v is negative", ErrInvalidAmount, v)
	}
	return fromDecimal(decimal.NewFromFloat(v).Round(Decimals))
}

// FromDecimal scales an exact decimal to micro units. More than six fractional
// digits is rejected rather than silently rounded.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	if d.IsNegative() {
		return 0, fmt.Errorf("usdc: %w: %s is negative", ErrInvalidAmount, d)
	}
	if !d.Equal(d.Truncate(Decimals)) {
		return 0, fmt.Errorf("usdc: %w: %s has more than %d decimals", ErrInvalidAmount, d, Decimals)
	}
	return fromDecimal(d)
}

// Parse reads a user-typed decimal string such as "12.5".
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("usdc: %w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("usdc: %w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

func fromDecimal(d decimal.Decimal) (Amount, error) {
	scaled := d.Shift(Decimals).Round(0)
	if scaled.GreaterThan(maxAmount) {
		return 0, fmt.Errorf("usdc: %w: %s out of range", ErrInvalidAmount, d)
	}
	return Amount(scaled.IntPart()), nil
}

// FromBig converts a uint256 contract value.
func FromBig(n *big.Int) (Amount, error) {
	if n == nil {
		return 0, nil
	}
	if n.Sign() < 0 || !n.IsInt64() {
		return 0, fmt.Errorf("usdc: %w: %s out of range", ErrInvalidAmount, n)
	}
	return Amount(n.Int64()), nil
}

// MustFromBig is FromBig for values already known to fit, such as contract
// constants. It panics on overflow.
func MustFromBig(n *big.Int) Amount {
	a, err := FromBig(n)
	if err != nil {
		panic(err)
	}
	return a
}

// Big returns the amount as a contract argument.
func (a Amount) Big() *big.Int {
	return big.NewInt(int64(a))
}

// Decimal is ToDisplay(a).
func (a Amount) Decimal() decimal.Decimal {
	return ToDisplay(a)
}

// Float64 is for rendering only; never compare or add the result.
func (a Amount) Float64() float64 {
	return ToDisplay(a).InexactFloat64()
}

// String renders at least two decimals, e.g. "12.50" or "0.000001".
func (a Amount) String() string {
	d := ToDisplay(a)
	s := d.StringFixed(Decimals)
	s = strings.TrimRight(s, "0")
	if i := strings.IndexByte(s, '.'); i >= 0 && len(s)-i-1 < 2 {
		s += strings.Repeat("0", 2-(len(s)-i-1))
	}
	return s
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Amount) Amount {
	if a > b {
		return a
	}
	return b
}
