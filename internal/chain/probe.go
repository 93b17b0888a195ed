package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ProbeResult is what one RPC endpoint reported.
type ProbeResult struct {
	ChainID   int64           `json:"chain_id"`
	HeadBlock uint64          `json:"head_block"`
	HeadTime  time.Time       `json:"head_time"`
	Latency   time.Duration   `json:"latency"`
	HasCode   map[string]bool `json:"has_code"`
}

// Probe dials url once and reads the chain id, the head header and whether
// each contract address carries code.
func Probe(ctx context.Context, url string, contracts map[string]common.Address) (ProbeResult, error) {
	start := time.Now()
	eth, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("chain: probe dial: %w", err)
	}
	defer eth.Close()

	id, err := eth.ChainID(ctx)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("chain: probe chain id: %w", err)
	}
	head, err := eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("chain: probe head: %w", err)
	}

	res := ProbeResult{
		ChainID:   id.Int64(),
		HeadBlock: head.Number.Uint64(),
		HeadTime:  time.Unix(int64(head.Time), 0).UTC(),
		HasCode:   make(map[string]bool, len(contracts)),
	}
	for name, addr := range contracts {
		code, err := eth.CodeAt(ctx, addr, nil)
		if err != nil {
			return ProbeResult{}, fmt.Errorf("chain: probe code %s: %w", name, err)
		}
		res.HasCode[name] = len(code) > 0
	}
	res.Latency = time.Since(start)
	return res, nil
}
