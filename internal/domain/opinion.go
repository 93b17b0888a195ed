package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
)

// Opinion is the client-side mirror of an on-chain question whose current
// answer slot is bought and sold. NextPrice is what the next answer submission
// must pay; LastPrice is what the current owner paid.
type Opinion struct {
	ID          uint64
	Question    string
	Answer      string
	Description string
	Link        string
	Creator     common.Address
	Owner       common.Address
	LastPrice   usdc.Amount
	NextPrice   usdc.Amount
	TotalVolume usdc.Amount
	IsActive    bool
	Categories  []string
	FetchedAt   time.Time
}
