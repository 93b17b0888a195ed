package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/service"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
)

// PoolPreviewer serves pool views and contribution previews.
type PoolPreviewer interface {
	Pool(ctx context.Context, id uint64) (service.PoolView, error)
	Funding(ctx context.Context, id uint64, wallet common.Address, input usdc.Amount) (service.PoolFunding, error)
	Withdrawal(amount usdc.Amount) service.Withdrawal
}

// PoolHandler serves pool endpoints.
type PoolHandler struct {
	pools  PoolPreviewer
	wallet common.Address
	logger *slog.Logger
}

// NewPoolHandler creates a PoolHandler. wallet is used when a request names
// none.
func NewPoolHandler(pools PoolPreviewer, wallet common.Address, logger *slog.Logger) *PoolHandler {
	return &PoolHandler{pools: pools, wallet: wallet, logger: logHandler(logger, "pool")}
}

// GetPool returns the live view of one pool.
// GET /api/pools/{id}
func (h *PoolHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pool id")
		return
	}
	p, err := h.pools.Pool(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Funding previews a contribution of ?amount= USDC from ?wallet=.
// GET /api/pools/{id}/funding
func (h *PoolHandler) Funding(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pool id")
		return
	}
	amount, err := amountParam(r, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	wallet := h.wallet
	if v := r.URL.Query().Get("wallet"); v != "" {
		if !common.IsHexAddress(v) {
			writeError(w, http.StatusBadRequest, "invalid wallet address")
			return
		}
		wallet = common.HexToAddress(v)
	}
	pf, err := h.pools.Funding(r.Context(), id, wallet, amount)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pf)
}

// Withdrawal previews the early withdrawal penalty on ?amount= USDC.
// GET /api/pools/{id}/withdrawal
func (h *PoolHandler) Withdrawal(w http.ResponseWriter, r *http.Request) {
	amount, err := amountParam(r, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.pools.Withdrawal(amount))
}
