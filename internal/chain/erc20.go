package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
)

// BalanceOf returns owner's USDC balance.
func (c *Client) BalanceOf(ctx context.Context, owner common.Address) (usdc.Amount, error) {
	var out []any
	if err := c.token.Call(c.callOpts(ctx), &out, "balanceOf", owner); err != nil {
		return 0, fmt.Errorf("chain: balanceOf: %w", err)
	}
	return saturate(firstUint(out)), nil
}

// Allowance returns how much spender may pull from owner.
func (c *Client) Allowance(ctx context.Context, owner, spender common.Address) (usdc.Amount, error) {
	var out []any
	if err := c.token.Call(c.callOpts(ctx), &out, "allowance", owner, spender); err != nil {
		return 0, fmt.Errorf("chain: allowance: %w", err)
	}
	return saturate(firstUint(out)), nil
}

// Approve lets spender pull amount from the signing wallet.
func (c *Client) Approve(ctx context.Context, spender common.Address, amount usdc.Amount) (common.Hash, error) {
	if amount < 0 {
		return common.Hash{}, fmt.Errorf("chain: approve: %w", usdc.ErrInvalidAmount)
	}
	return c.transact(ctx, c.token, "approve", spender, amount.Big())
}

// firstUint extracts the single uint256 output of a view call.
func firstUint(out []any) *big.Int {
	if len(out) == 0 {
		return nil
	}
	v, _ := out[0].(*big.Int)
	return v
}
