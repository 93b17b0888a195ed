// Package chain talks to the USDC, OpinionCore and PoolManager contracts
// through go-ethereum.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
)

// ErrNoSigner is returned by writes on a client dialled without a key.
var ErrNoSigner = errors.New("chain: wallet not connected")

// Network identifies one deployment. It is resolved from config and passed
// in explicitly; nothing here reads the environment.
type Network struct {
	Name        string
	ChainID     int64
	RPCURL      string
	USDC        common.Address
	OpinionCore common.Address
	PoolManager common.Address
	FeeManager  common.Address
}

// Contracts lists the deployed addresses that must carry code.
func (n Network) Contracts() map[string]common.Address {
	out := map[string]common.Address{
		"usdc":         n.USDC,
		"opinion_core": n.OpinionCore,
		"pool_manager": n.PoolManager,
	}
	if n.FeeManager != (common.Address{}) {
		out["fee_manager"] = n.FeeManager
	}
	return out
}

type abis struct {
	erc20 abi.ABI
	core  abi.ABI
	pools abi.ABI
}

func parseABIs() (abis, error) {
	var a abis
	var err error
	if a.erc20, err = abi.JSON(strings.NewReader(erc20ABI)); err != nil {
		return a, fmt.Errorf("chain: parse erc20 abi: %w", err)
	}
	if a.core, err = abi.JSON(strings.NewReader(opinionCoreABI)); err != nil {
		return a, fmt.Errorf("chain: parse opinion core abi: %w", err)
	}
	if a.pools, err = abi.JSON(strings.NewReader(poolManagerABI)); err != nil {
		return a, fmt.Errorf("chain: parse pool manager abi: %w", err)
	}
	return a, nil
}

// Client is a connection to one network, optionally holding a signing key.
type Client struct {
	eth     *ethclient.Client
	net     Network
	chainID *big.Int
	key     *ecdsa.PrivateKey
	from    common.Address

	token *bind.BoundContract
	core  *bind.BoundContract
	pools *bind.BoundContract

	poll   time.Duration
	logger *slog.Logger
}

// Dial connects to net.RPCURL. key may be nil for a read-only client.
func Dial(ctx context.Context, net Network, key *ecdsa.PrivateKey, logger *slog.Logger) (*Client, error) {
	if net.RPCURL == "" {
		return nil, errors.New("chain: rpc url is required")
	}
	parsed, err := parseABIs()
	if err != nil {
		return nil, err
	}
	eth, err := ethclient.DialContext(ctx, net.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", net.Name, err)
	}

	c := &Client{
		eth:     eth,
		net:     net,
		chainID: big.NewInt(net.ChainID),
		key:     key,
		token:   bind.NewBoundContract(net.USDC, parsed.erc20, eth, eth, eth),
		core:    bind.NewBoundContract(net.OpinionCore, parsed.core, eth, eth, eth),
		pools:   bind.NewBoundContract(net.PoolManager, parsed.pools, eth, eth, eth),
		poll:    2 * time.Second,
		logger:  logger.With(slog.String("component", "chain"), slog.String("network", net.Name)),
	}
	if key != nil {
		c.from = ethcrypto.PubkeyToAddress(key.PublicKey)
	}
	return c, nil
}

func (c *Client) Close() { c.eth.Close() }

// Address is the signing wallet, or the zero address when read-only.
func (c *Client) Address() common.Address { return c.from }

func (c *Client) Network() Network { return c.net }

func (c *Client) CanSign() bool { return c.key != nil }

func (c *Client) callOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx, From: c.from}
}

// transact dry-runs method with eth_call so revert reasons surface before
// anything is signed, then sends it.
func (c *Client) transact(ctx context.Context, contract *bind.BoundContract, method string, args ...any) (common.Hash, error) {
	if c.key == nil {
		return common.Hash{}, ErrNoSigner
	}

	var out []any
	if err := contract.Call(c.callOpts(ctx), &out, method, args...); err != nil {
		return common.Hash{}, fmt.Errorf("chain: %s: dry run: %w", method, err)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain: %s: transactor: %w", method, err)
	}
	auth.Context = ctx

	tx, err := contract.Transact(auth, method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain: %s: send: %w", method, err)
	}
	c.logger.Info("transaction sent",
		slog.String("method", method),
		slog.String("tx", tx.Hash().Hex()),
	)
	return tx.Hash(), nil
}

// saturate converts an on-chain uint256 to an Amount, capping values above
// the int64 range. Allowances granted as 2^256-1 elsewhere land here.
func saturate(n *big.Int) usdc.Amount {
	if n == nil || n.Sign() <= 0 {
		return 0
	}
	if !n.IsInt64() {
		return usdc.Amount(math.MaxInt64)
	}
	return usdc.Amount(n.Int64())
}

func u256(v uint64) *big.Int { return new(big.Int).SetUint64(v) }
