package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/pool"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
)

// PoolReader reads pools and balances from chain.
type PoolReader interface {
	GetPoolDetails(ctx context.Context, id uint64) (domain.PoolDetails, error)
	BalanceOf(ctx context.Context, owner common.Address) (usdc.Amount, error)
}

// PoolConfig holds the pool fee parameters.
type PoolConfig struct {
	CreationFee     usdc.Amount
	ContributionFee usdc.Amount
	MinPoolPrice    usdc.Amount
	PenaltyBps      int64
}

// DefaultPoolConfig returns the platform defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		CreationFee:  pool.CreationFee,
		MinPoolPrice: pool.MinPoolPrice,
		PenaltyBps:   pool.EarlyPenaltyBps,
	}
}

// PoolView is the JSON shape of a pool with its live figures.
type PoolView struct {
	ID               uint64      `json:"id"`
	OpinionID        uint64      `json:"opinion_id"`
	ProposedAnswer   string      `json:"proposed_answer"`
	Name             string      `json:"name"`
	Creator          string      `json:"creator"`
	Status           string      `json:"status"`
	TotalAmount      usdc.Amount `json:"total_amount"`
	TargetPrice      usdc.Amount `json:"target_price"`
	Remaining        usdc.Amount `json:"remaining"`
	Deadline         time.Time   `json:"deadline"`
	TimeRemaining    string      `json:"time_remaining"`
	ContributorCount uint64      `json:"contributor_count"`
}

func newPoolView(d domain.PoolDetails) PoolView {
	return PoolView{
		ID:               d.Pool.ID,
		OpinionID:        d.Pool.OpinionID,
		ProposedAnswer:   d.Pool.ProposedAnswer,
		Name:             d.Pool.Name,
		Creator:          d.Pool.Creator.Hex(),
		Status:           d.Pool.Status.String(),
		TotalAmount:      d.Pool.TotalAmount,
		TargetPrice:      d.Pool.TargetPrice,
		Remaining:        d.Remaining,
		Deadline:         d.Pool.Deadline,
		TimeRemaining:    d.TimeRemaining.Round(time.Second).String(),
		ContributorCount: d.Pool.ContributorCount,
	}
}

// PoolFunding is a contribution preview for one wallet.
type PoolFunding struct {
	Pool    PoolView     `json:"pool"`
	Funding pool.Funding `json:"funding"`
}

// Withdrawal is an early withdrawal preview.
type Withdrawal struct {
	Amount     usdc.Amount `json:"amount"`
	Refund     usdc.Amount `json:"refund"`
	Penalty    usdc.Amount `json:"penalty"`
	PenaltyBps int64       `json:"penalty_bps"`
}

// PoolService previews pool creations and contributions from live chain
// figures.
type PoolService struct {
	chain    PoolReader
	opinions *OpinionService
	cfg      PoolConfig
	now      func() time.Time
	logger   *slog.Logger
}

// NewPoolService creates a PoolService.
func NewPoolService(chain PoolReader, opinions *OpinionService, cfg PoolConfig, logger *slog.Logger) *PoolService {
	return &PoolService{
		chain:    chain,
		opinions: opinions,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
	}
}

// Pool returns the live view of one pool.
func (s *PoolService) Pool(ctx context.Context, id uint64) (PoolView, error) {
	d, err := s.chain.GetPoolDetails(ctx, id)
	if err != nil {
		return PoolView{}, fmt.Errorf("pool_service: get %d: %w", id, err)
	}
	return newPoolView(d), nil
}

// Funding previews contributing input to pool id from wallet. A zero input
// previews the largest contribution the wallet can make.
func (s *PoolService) Funding(ctx context.Context, id uint64, wallet common.Address, input usdc.Amount) (PoolFunding, error) {
	d, err := s.chain.GetPoolDetails(ctx, id)
	if err != nil {
		return PoolFunding{}, fmt.Errorf("pool_service: get %d: %w", id, err)
	}
	balance, err := s.chain.BalanceOf(ctx, wallet)
	if err != nil {
		return PoolFunding{}, fmt.Errorf("pool_service: balance of %s: %w", wallet.Hex(), err)
	}

	f := pool.Compute(pool.Params{
		Target:  d.Pool.TargetPrice,
		Current: d.Pool.TotalAmount,
		Input:   input,
		Balance: balance,
		Fee:     s.cfg.ContributionFee,
	})
	if input == 0 {
		f = pool.Compute(pool.Params{
			Target:  d.Pool.TargetPrice,
			Current: d.Pool.TotalAmount,
			Input:   f.MaxContribution,
			Balance: balance,
			Fee:     s.cfg.ContributionFee,
		})
	}
	return PoolFunding{Pool: newPoolView(d), Funding: f}, nil
}

// Creation previews a createPool for form from wallet.
func (s *PoolService) Creation(ctx context.Context, wallet common.Address, form domain.PoolForm) (pool.Creation, error) {
	op, err := s.opinions.Opinion(ctx, form.OpinionID)
	if err != nil {
		return pool.Creation{}, err
	}
	balance, err := s.chain.BalanceOf(ctx, wallet)
	if err != nil {
		return pool.Creation{}, fmt.Errorf("pool_service: balance of %s: %w", wallet.Hex(), err)
	}
	return pool.ComputeCreation(pool.CreationParams{
		InitialContribution: form.InitialContribution,
		Balance:             balance,
		CreationFee:         s.cfg.CreationFee,
		OpinionNextPrice:    op.NextPrice,
		MinPoolPrice:        s.cfg.MinPoolPrice,
		Deadline:            form.Deadline,
		Now:                 s.now(),
	}), nil
}

// Withdrawal previews withdrawing amount from an active pool.
func (s *PoolService) Withdrawal(amount usdc.Amount) Withdrawal {
	refund, penalty := pool.EarlyWithdrawal(amount, s.cfg.PenaltyBps)
	return Withdrawal{
		Amount:     amount,
		Refund:     refund,
		Penalty:    penalty,
		PenaltyBps: s.cfg.PenaltyBps,
	}
}
