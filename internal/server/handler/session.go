package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/crypto"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/wallet"
)

// maxSignatureAge bounds how old a signed session message may be.
const maxSignatureAge = 5 * time.Minute

// SessionStore persists wallet sessions.
type SessionStore interface {
	Save(ctx context.Context, s wallet.Session) (wallet.Session, error)
	Load(ctx context.Context, addr common.Address) (wallet.Session, error)
	Clear(ctx context.Context, addr common.Address) error
}

// SessionHandler lets browser wallets persist their connection.
type SessionHandler struct {
	sessions SessionStore
	chainID  int64
	now      func() time.Time
	logger   *slog.Logger
}

func NewSessionHandler(sessions SessionStore, chainID int64, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, chainID: chainID, now: time.Now, logger: logHandler(logger, "session")}
}

type sessionRequest struct {
	Address   string    `json:"address"`
	ChainID   int64     `json:"chain_id"`
	Connector string    `json:"connector"`
	IssuedAt  time.Time `json:"issued_at"`
	Signature string    `json:"signature"`
}

// CreateSession stores a session after checking the wallet signed
// crypto.SessionMessage for its address, chain and issue time.
// POST /api/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if !common.IsHexAddress(req.Address) {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	if req.ChainID != h.chainID {
		writeError(w, http.StatusBadRequest, "wrong network: switch the wallet to the configured chain")
		return
	}
	if age := h.now().Sub(req.IssuedAt); age < -time.Minute || age > maxSignatureAge {
		writeError(w, http.StatusBadRequest, "signature expired, sign again")
		return
	}

	addr := common.HexToAddress(req.Address)
	msg := crypto.SessionMessage(addr, req.ChainID, req.IssuedAt)
	if err := crypto.VerifyPersonal(addr, msg, req.Signature); err != nil {
		h.logger.InfoContext(r.Context(), "session signature rejected",
			slog.String("address", addr.Hex()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusUnauthorized, "signature does not match address")
		return
	}

	s, err := h.sessions.Save(r.Context(), wallet.Session{
		Address:   addr,
		ChainID:   req.ChainID,
		Connector: req.Connector,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// GetSession returns the stored session for {address}.
// GET /api/sessions/{address}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	s, err := h.sessions.Load(r.Context(), addr)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// DeleteSession forgets the session for {address}.
// DELETE /api/sessions/{address}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Clear(r.Context(), addr); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func addressParam(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	v := r.PathValue("address")
	if !common.IsHexAddress(v) {
		writeError(w, http.StatusBadRequest, "invalid address")
		return common.Address{}, false
	}
	return common.HexToAddress(v), true
}
