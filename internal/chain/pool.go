package chain

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
)

// poolTuple matches the PoolInfo struct returned by getPoolDetails.
type poolTuple struct {
	Id             *big.Int
	OpinionId      *big.Int
	ProposedAnswer string
	TotalAmount    *big.Int
	Deadline       uint32
	Creator        common.Address
	Status         uint8
	Name           string
	IpfsHash       string
	TargetPrice    *big.Int
}

// GetPoolDetails reads a pool with the contract's live figures.
func (c *Client) GetPoolDetails(ctx context.Context, id uint64) (domain.PoolDetails, error) {
	var out []any
	if err := c.pools.Call(c.callOpts(ctx), &out, "getPoolDetails", u256(id)); err != nil {
		return domain.PoolDetails{}, fmt.Errorf("chain: getPoolDetails %d: %w", id, err)
	}
	d, err := decodePool(id, out)
	if err != nil {
		return domain.PoolDetails{}, err
	}

	var contributors []any
	if err := c.pools.Call(c.callOpts(ctx), &contributors, "getPoolContributors", u256(id)); err != nil {
		return domain.PoolDetails{}, fmt.Errorf("chain: getPoolContributors %d: %w", id, err)
	}
	if len(contributors) == 1 {
		if addrs, ok := contributors[0].([]common.Address); ok {
			d.Pool.ContributorCount = uint64(len(addrs))
		}
	}
	return d, nil
}

func decodePool(id uint64, out []any) (domain.PoolDetails, error) {
	if len(out) != 4 {
		return domain.PoolDetails{}, fmt.Errorf("chain: getPoolDetails %d: expected 4 outputs, got %d", id, len(out))
	}
	t := *abi.ConvertType(out[0], new(poolTuple)).(*poolTuple)
	if t.Creator == (common.Address{}) {
		return domain.PoolDetails{}, fmt.Errorf("chain: pool %d: %w", id, domain.ErrNotFound)
	}

	amounts := make([]usdc.Amount, 4)
	for i, n := range []*big.Int{t.TotalAmount, t.TargetPrice, asBig(out[1]), asBig(out[2])} {
		a, err := usdc.FromBig(n)
		if err != nil {
			return domain.PoolDetails{}, fmt.Errorf("chain: pool %d: %w", id, err)
		}
		amounts[i] = a
	}

	var remaining time.Duration
	if secs := asBig(out[3]); secs != nil && secs.Sign() > 0 {
		if secs.IsInt64() && secs.Int64() < math.MaxInt64/int64(time.Second) {
			remaining = time.Duration(secs.Int64()) * time.Second
		} else {
			remaining = time.Duration(math.MaxInt64)
		}
	}

	return domain.PoolDetails{
		Pool: domain.Pool{
			ID:             id,
			OpinionID:      t.OpinionId.Uint64(),
			ProposedAnswer: t.ProposedAnswer,
			Name:           t.Name,
			Creator:        t.Creator,
			TotalAmount:    amounts[0],
			TargetPrice:    amounts[1],
			Deadline:       time.Unix(int64(t.Deadline), 0).UTC(),
			Status:         domain.PoolStatus(t.Status),
		},
		CurrentPrice:  amounts[2],
		Remaining:     amounts[3],
		TimeRemaining: remaining,
	}, nil
}

func asBig(v any) *big.Int {
	n, _ := v.(*big.Int)
	return n
}

// CreatePool opens a pool proposing f.ProposedAnswer for f.OpinionID.
func (c *Client) CreatePool(ctx context.Context, f domain.PoolForm) (common.Hash, error) {
	deadline := f.Deadline.Unix()
	if deadline <= 0 || deadline > math.MaxUint32 {
		return common.Hash{}, domain.NewValidationError("deadline", "out of range")
	}
	return c.transact(ctx, c.pools, "createPool",
		u256(f.OpinionID), f.ProposedAnswer, uint32(deadline), f.InitialContribution.Big(), f.Name, f.IPFSHash)
}

// ContributeToPool adds amount to a pool. Callers cap amount at the
// remaining need first; the contract refunds nothing.
func (c *Client) ContributeToPool(ctx context.Context, poolID uint64, amount usdc.Amount) (common.Hash, error) {
	if amount <= 0 {
		return common.Hash{}, fmt.Errorf("chain: contributeToPool: %w", usdc.ErrInvalidAmount)
	}
	return c.transact(ctx, c.pools, "contributeToPool", u256(poolID), amount.Big())
}

// CompletePool pays the remaining need and executes the pool.
func (c *Client) CompletePool(ctx context.Context, poolID uint64) (common.Hash, error) {
	return c.transact(ctx, c.pools, "completePool", u256(poolID))
}
