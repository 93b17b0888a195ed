package pricing

import (
	"fmt"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
)

const bpsDenominator = 10_000

// Documented FeeManager bounds.
const (
	MinPlatformFeeBps        = 700
	MaxPlatformFeeBps        = 1000
	DefaultPlatformFeeBps    = 700
	DefaultCreatorRoyaltyBps = 300
)

// FeeSchedule is the fee split applied to an answer purchase.
type FeeSchedule struct {
	PlatformFeeBps    int64
	CreatorRoyaltyBps int64
}

// DefaultFeeSchedule returns the documented 7% platform / 3% creator split.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		PlatformFeeBps:    DefaultPlatformFeeBps,
		CreatorRoyaltyBps: DefaultCreatorRoyaltyBps,
	}
}

// Validate checks the schedule against the documented bounds.
func (f FeeSchedule) Validate() error {
	if f.PlatformFeeBps < MinPlatformFeeBps || f.PlatformFeeBps > MaxPlatformFeeBps {
		return fmt.Errorf("pricing: platform fee %d bps outside %d-%d", f.PlatformFeeBps, MinPlatformFeeBps, MaxPlatformFeeBps)
	}
	if f.CreatorRoyaltyBps < 0 || f.PlatformFeeBps+f.CreatorRoyaltyBps > bpsDenominator {
		return fmt.Errorf("pricing: creator royalty %d bps invalid", f.CreatorRoyaltyBps)
	}
	return nil
}

// FeeBreakdown splits a price into its recipients.
type FeeBreakdown struct {
	Price    usdc.Amount `json:"price"`
	Platform usdc.Amount `json:"platform"`
	Creator  usdc.Amount `json:"creator"`
	Owner    usdc.Amount `json:"owner"`
}

// Estimate splits price with integer truncation on each fee; the owner
// receives the remainder so the parts always sum to price.
func (f FeeSchedule) Estimate(price usdc.Amount) FeeBreakdown {
	platform := usdc.Amount(int64(price) * f.PlatformFeeBps / bpsDenominator)
	creator := usdc.Amount(int64(price) * f.CreatorRoyaltyBps / bpsDenominator)
	return FeeBreakdown{
		Price:    price,
		Platform: platform,
		Creator:  creator,
		Owner:    price - platform - creator,
	}
}
