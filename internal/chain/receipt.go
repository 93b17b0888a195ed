package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
)

type receiptReader interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// WaitMined polls until hash has a receipt. A failed receipt yields
// domain.ErrReverted. Cancelling ctx stops the wait, not the transaction.
func (c *Client) WaitMined(ctx context.Context, hash common.Hash) error {
	return waitMined(ctx, c.eth, hash, c.poll)
}

func waitMined(ctx context.Context, r receiptReader, hash common.Hash, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		receipt, err := r.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("chain: tx %s: %w", hash.Hex(), domain.ErrReverted)
			}
			return nil
		case errors.Is(err, ethereum.NotFound):
			// Not mined yet.
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("chain: receipt %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
