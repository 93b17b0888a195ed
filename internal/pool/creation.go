package pool

import (
	"time"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
)

// Pool deadline bounds.
const (
	MinPoolDuration = 24 * time.Hour
	MaxPoolDuration = 60 * 24 * time.Hour
)

// CreationParams are the inputs to createPool.
type CreationParams struct {
	InitialContribution usdc.Amount
	Balance             usdc.Amount
	CreationFee         usdc.Amount
	OpinionNextPrice    usdc.Amount
	MinPoolPrice        usdc.Amount
	Deadline            time.Time
	Now                 time.Time
}

// Creation is the derived state of a pool creation.
type Creation struct {
	InitialContribution usdc.Amount `json:"initial_contribution"`
	CreationFee         usdc.Amount `json:"creation_fee"`
	RequiredTotal       usdc.Amount `json:"required_total"`
	Balance             usdc.Amount `json:"balance"`
	HasEnoughBalance    bool        `json:"has_enough_balance"`
	Eligible            bool        `json:"eligible"`
	TargetPrice         usdc.Amount `json:"target_price"`
	Deadline            time.Time   `json:"deadline"`
	Now                 time.Time   `json:"-"`
}

// ComputeCreation derives the creation figures. A pool can only target an
// opinion whose next price has reached MinPoolPrice.
func ComputeCreation(p CreationParams) Creation {
	required := p.InitialContribution + p.CreationFee
	return Creation{
		InitialContribution: p.InitialContribution,
		CreationFee:         p.CreationFee,
		RequiredTotal:       required,
		Balance:             p.Balance,
		HasEnoughBalance:    required <= p.Balance,
		Eligible:            p.OpinionNextPrice >= p.MinPoolPrice,
		TargetPrice:         p.OpinionNextPrice,
		Deadline:            p.Deadline,
		Now:                 p.Now,
	}
}

// Validate rejects creations that cannot be sent.
func (c Creation) Validate() error {
	v := &domain.ValidationError{}
	if !c.Eligible {
		v.Add("opinion_id", "opinion price is below the pool minimum")
	}
	if c.InitialContribution <= 0 {
		v.Add("initial_contribution", "must be greater than zero")
	}
	if !c.HasEnoughBalance {
		v.Add("balance", "insufficient USDC: need "+c.RequiredTotal.String()+", have "+c.Balance.String())
	}
	until := c.Deadline.Sub(c.Now)
	switch {
	case c.Deadline.IsZero():
		v.Add("deadline", "required")
	case until < MinPoolDuration:
		v.Add("deadline", "must be at least 1 day away")
	case until > MaxPoolDuration:
		v.Add("deadline", "must be at most 60 days away")
	}
	return v.OrNil()
}
