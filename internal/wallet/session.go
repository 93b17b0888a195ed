// Package wallet persists wallet connections so a returning client can
// resume without reconnecting.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
)

// MaxAge is how long a saved session stays usable.
const MaxAge = 24 * time.Hour

// Session is one remembered wallet connection.
type Session struct {
	ID          string         `json:"id"`
	Address     common.Address `json:"address"`
	ChainID     int64          `json:"chain_id"`
	Connector   string         `json:"connector"`
	ConnectedAt time.Time      `json:"connected_at"`
}

// Store keeps sessions in a KV. Every write first copies the previous value
// to "<key>:backup" so a torn write never loses the last good session.
type Store struct {
	kv     domain.KV
	maxAge time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewStore(kv domain.KV, logger *slog.Logger) *Store {
	return &Store{
		kv:     kv,
		maxAge: MaxAge,
		now:    time.Now,
		logger: logger.With(slog.String("component", "wallet")),
	}
}

func sessionKey(addr common.Address) string {
	return "wallet:session:" + strings.ToLower(addr.Hex())
}

func backupKey(key string) string { return key + ":backup" }

// Save stores s, filling ID and ConnectedAt when empty.
func (st *Store) Save(ctx context.Context, s Session) (Session, error) {
	if s.Address == (common.Address{}) {
		return Session{}, domain.NewValidationError("address", "required")
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.ConnectedAt.IsZero() {
		s.ConnectedAt = st.now().UTC()
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return Session{}, fmt.Errorf("wallet: encode session: %w", err)
	}

	key := sessionKey(s.Address)
	prev, err := st.kv.Get(ctx, key)
	switch {
	case err == nil:
		if err := st.kv.Set(ctx, backupKey(key), prev, st.maxAge); err != nil {
			return Session{}, fmt.Errorf("wallet: write backup: %w", err)
		}
	case !errors.Is(err, domain.ErrNotFound):
		return Session{}, fmt.Errorf("wallet: read previous session: %w", err)
	}

	if err := st.kv.Set(ctx, key, string(raw), st.maxAge); err != nil {
		return Session{}, fmt.Errorf("wallet: write session: %w", err)
	}
	return s, nil
}

// Load returns the session for addr. A missing or corrupt primary falls back
// to the backup. Sessions older than MaxAge are removed and reported as
// domain.ErrStaleSession.
func (st *Store) Load(ctx context.Context, addr common.Address) (Session, error) {
	key := sessionKey(addr)

	s, err := st.read(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			st.logger.Warn("primary session unreadable, trying backup",
				slog.String("address", addr.Hex()),
				slog.String("error", err.Error()),
			)
		}
		s, err = st.read(ctx, backupKey(key))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return Session{}, fmt.Errorf("wallet: session %s: %w", addr.Hex(), domain.ErrNotFound)
			}
			return Session{}, err
		}
	}

	if st.now().Sub(s.ConnectedAt) > st.maxAge {
		if err := st.Clear(ctx, addr); err != nil {
			st.logger.Warn("failed to remove stale session", slog.String("error", err.Error()))
		}
		return Session{}, domain.ErrStaleSession
	}
	return s, nil
}

// Clear removes the session and its backup.
func (st *Store) Clear(ctx context.Context, addr common.Address) error {
	key := sessionKey(addr)
	if err := st.kv.Del(ctx, key, backupKey(key)); err != nil {
		return fmt.Errorf("wallet: clear session: %w", err)
	}
	return nil
}

func (st *Store) read(ctx context.Context, key string) (Session, error) {
	raw, err := st.kv.Get(ctx, key)
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Session{}, fmt.Errorf("wallet: decode %s: %w", key, err)
	}
	if s.Address == (common.Address{}) || s.ConnectedAt.IsZero() {
		return Session{}, fmt.Errorf("wallet: decode %s: incomplete session", key)
	}
	return s, nil
}
