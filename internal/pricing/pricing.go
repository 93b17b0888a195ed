// Package pricing mirrors the bonding-curve prices the OpinionCore contract
// publishes. It reports what the chain says and derives display figures from
// it; it never predicts the next price after a hypothetical trade, because the
// curve (competition level, trade frequency, ±200% cap, 1 USDC floor) only
// runs on-chain.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
)

var hundred = decimal.NewFromInt(100)

// PriceChange is the movement from the last paid price to the next price.
type PriceChange struct {
	Delta      usdc.Amount     `json:"delta"`
	Percent    decimal.Decimal `json:"percent"`
	IsPositive bool            `json:"is_positive"`
}

// Change computes (next-last)/last as a signed percentage rounded to two
// places. A zero last price yields 0% and counts as positive.
func Change(last, next usdc.Amount) PriceChange {
	delta := next - last
	if last == 0 {
		return PriceChange{Delta: delta, Percent: decimal.Zero, IsPositive: true}
	}
	pct := decimal.NewFromInt(int64(delta)).
		Mul(hundred).
		DivRound(decimal.NewFromInt(int64(last)), 2)
	return PriceChange{
		Delta:      delta,
		Percent:    pct,
		IsPositive: delta >= 0,
	}
}

// Quote is the price view of one opinion as last read from chain.
type Quote struct {
	OpinionID uint64       `json:"opinion_id"`
	Question  string       `json:"question"`
	Answer    string       `json:"answer"`
	Owner     string       `json:"owner"`
	LastPrice usdc.Amount  `json:"last_price"`
	NextPrice usdc.Amount  `json:"next_price"`
	Volume    usdc.Amount  `json:"total_volume"`
	IsActive  bool         `json:"is_active"`
	Change    PriceChange  `json:"change"`
	Fees      FeeBreakdown `json:"fees"`
	AsOf      time.Time    `json:"as_of"`
}

// NewQuote builds a Quote from an opinion snapshot. The fee breakdown is an
// estimate for display.
func NewQuote(op domain.Opinion, fees FeeSchedule) Quote {
	return Quote{
		OpinionID: op.ID,
		Question:  op.Question,
		Answer:    op.Answer,
		Owner:     op.Owner.Hex(),
		LastPrice: op.LastPrice,
		NextPrice: op.NextPrice,
		Volume:    op.TotalVolume,
		IsActive:  op.IsActive,
		Change:    Change(op.LastPrice, op.NextPrice),
		Fees:      fees.Estimate(op.NextPrice),
		AsOf:      op.FetchedAt,
	}
}
