// Package pool computes the funding figures behind pool creation,
// contribution and completion. Every comparison is done on usdc.Amount, so no
// floating-point tolerance is needed anywhere.
package pool

import (
	"github.com/shopspring/decimal"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
)

// Platform constants.
const (
	CreationFee     usdc.Amount = 5 * usdc.Unit
	MinPoolPrice    usdc.Amount = 100 * usdc.Unit
	EarlyPenaltyBps int64       = 2000
)

var hundred = decimal.NewFromInt(100)

// Params are the inputs to a contribution.
type Params struct {
	Target  usdc.Amount
	Current usdc.Amount
	Input   usdc.Amount
	Balance usdc.Amount
	Fee     usdc.Amount
}

// Funding is the derived state of a contribution.
type Funding struct {
	Target             usdc.Amount     `json:"target"`
	Current            usdc.Amount     `json:"current"`
	Input              usdc.Amount     `json:"input"`
	Balance            usdc.Amount     `json:"balance"`
	Fee                usdc.Amount     `json:"fee"`
	RemainingNeeded    usdc.Amount     `json:"remaining_needed"`
	MaxContribution    usdc.Amount     `json:"max_contribution"`
	ActualContribution usdc.Amount     `json:"actual_contribution"`
	RequiredTotal      usdc.Amount     `json:"required_total"`
	WouldComplete      bool            `json:"would_complete"`
	HasEnoughBalance   bool            `json:"has_enough_balance"`
	CanComplete        bool            `json:"can_complete"`
	SharePercent       decimal.Decimal `json:"share_percent"`
}

// Compute derives the contribution figures. ActualContribution is capped at
// what the pool still needs, and is the amount that must be sent on-chain.
func Compute(p Params) Funding {
	remaining := usdc.Max(0, p.Target-p.Current)
	spendable := usdc.Max(0, p.Balance-p.Fee)
	actual := usdc.Max(0, usdc.Min(p.Input, remaining))
	required := actual + p.Fee

	return Funding{
		Target:             p.Target,
		Current:            p.Current,
		Input:              p.Input,
		Balance:            p.Balance,
		Fee:                p.Fee,
		RemainingNeeded:    remaining,
		MaxContribution:    usdc.Min(remaining, spendable),
		ActualContribution: actual,
		RequiredTotal:      required,
		WouldComplete:      p.Input >= remaining,
		HasEnoughBalance:   required <= p.Balance,
		CanComplete:        remaining > 0 && remaining <= p.Balance-p.Fee,
		SharePercent:       Percent(actual, p.Target),
	}
}

// Validate rejects contributions that cannot be sent.
func (f Funding) Validate() error {
	v := &domain.ValidationError{}
	if f.RemainingNeeded == 0 {
		v.Add("amount", "pool is already fully funded")
	} else if f.ActualContribution <= 0 {
		v.Add("amount", "must be greater than zero")
	}
	if f.RequiredTotal > f.Balance {
		v.Add("balance", "insufficient USDC: need "+f.RequiredTotal.String()+", have "+f.Balance.String())
	}
	return v.OrNil()
}

// Percent returns part/whole*100 rounded to two places, or zero when whole is
// zero.
func Percent(part, whole usdc.Amount) decimal.Decimal {
	if whole <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(part)).
		Mul(hundred).
		DivRound(decimal.NewFromInt(int64(whole)), 2)
}

// Share is a contributor's profit share given the pool's total value at
// execution time.
func Share(contribution, total usdc.Amount) decimal.Decimal {
	return Percent(contribution, total)
}

// EarlyWithdrawal returns the refund and penalty for withdrawing amount from
// an active pool.
func EarlyWithdrawal(amount usdc.Amount, penaltyBps int64) (refund, penalty usdc.Amount) {
	if amount <= 0 {
		return 0, 0
	}
	penalty = usdc.Amount(int64(amount) * penaltyBps / 10_000)
	return amount - penalty, penalty
}
