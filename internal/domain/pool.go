package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
)

// PoolStatus mirrors the PoolManager status enum.
type PoolStatus uint8

const (
	PoolStatusActive PoolStatus = iota
	PoolStatusExecuted
	PoolStatusExpired
)

func (s PoolStatus) String() string {
	switch s {
	case PoolStatusActive:
		return "active"
	case PoolStatusExecuted:
		return "executed"
	case PoolStatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// MarshalText renders the status name in JSON payloads.
func (s PoolStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Pool is a crowd-funding escrow that collectively pays an opinion's next
// price to change its answer. TotalAmount only grows until the pool executes
// or expires.
type Pool struct {
	ID               uint64
	OpinionID        uint64
	ProposedAnswer   string
	Name             string
	Creator          common.Address
	TotalAmount      usdc.Amount
	TargetPrice      usdc.Amount
	Deadline         time.Time
	Status           PoolStatus
	ContributorCount uint64
}

// PoolDetails is the getPoolDetails view: the pool plus the live figures the
// contract derives from it.
type PoolDetails struct {
	Pool          Pool
	CurrentPrice  usdc.Amount
	Remaining     usdc.Amount
	TimeRemaining time.Duration
}

// Contribution is one wallet's share of a pool.
type Contribution struct {
	PoolID      uint64
	Contributor common.Address
	Amount      usdc.Amount
}
