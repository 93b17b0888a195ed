package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
)

// FlowStore implements domain.FlowStore on the flows table.
type FlowStore struct {
	pool *pgxpool.Pool
}

func NewFlowStore(pool *pgxpool.Pool) *FlowStore {
	return &FlowStore{pool: pool}
}

const flowColumns = `id, kind, wallet, state, tracking, approval_tx, call_tx,
	error_type, error_message, retryable, form, created_at, updated_at`

// Upsert writes the latest snapshot of a flow. created_at keeps its first value.
func (s *FlowStore) Upsert(ctx context.Context, rec domain.FlowRecord) error {
	const query = `
		INSERT INTO flows (` + flowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			state         = EXCLUDED.state,
			tracking      = EXCLUDED.tracking,
			approval_tx   = EXCLUDED.approval_tx,
			call_tx       = EXCLUDED.call_tx,
			error_type    = EXCLUDED.error_type,
			error_message = EXCLUDED.error_message,
			retryable     = EXCLUDED.retryable,
			form          = EXCLUDED.form,
			updated_at    = EXCLUDED.updated_at`

	var form []byte
	if len(rec.Form) > 0 {
		form = rec.Form
	}
	_, err := s.pool.Exec(ctx, query,
		rec.ID, string(rec.Kind), rec.Wallet, string(rec.State), rec.Tracking,
		rec.ApprovalTx, rec.CallTx, rec.ErrorType, rec.ErrorMessage, rec.Retryable,
		form, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert flow %s: %w", rec.ID, err)
	}
	return nil
}

func (s *FlowStore) GetByID(ctx context.Context, id string) (domain.FlowRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+flowColumns+` FROM flows WHERE id = $1`, id)
	rec, err := scanFlow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FlowRecord{}, domain.ErrNotFound
		}
		return domain.FlowRecord{}, fmt.Errorf("postgres: get flow %s: %w", id, err)
	}
	return rec, nil
}

func (s *FlowStore) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.FlowRecord, error) {
	query, args := appendListOpts(`SELECT `+flowColumns+` FROM flows WHERE wallet = $1`, []any{wallet}, "created_at", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list flows: %w", err)
	}
	defer rows.Close()

	var out []domain.FlowRecord
	for rows.Next() {
		rec, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan flow: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: flow rows: %w", err)
	}
	return out, nil
}

// ListSettledBefore returns success and error flows last updated before the
// cutoff, oldest first. The flow archiver reads this.
func (s *FlowStore) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.FlowRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+flowColumns+` FROM flows
		WHERE state IN ($1, $2) AND updated_at < $3 ORDER BY updated_at`,
		string(domain.FlowStateSuccess), string(domain.FlowStateError), before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settled flows: %w", err)
	}
	defer rows.Close()

	var out []domain.FlowRecord
	for rows.Next() {
		rec, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan flow: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: settled flow rows: %w", err)
	}
	return out, nil
}

func scanFlow(row pgx.Row) (domain.FlowRecord, error) {
	var rec domain.FlowRecord
	var kind, state string
	var form []byte
	err := row.Scan(&rec.ID, &kind, &rec.Wallet, &state, &rec.Tracking,
		&rec.ApprovalTx, &rec.CallTx, &rec.ErrorType, &rec.ErrorMessage, &rec.Retryable,
		&form, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return domain.FlowRecord{}, err
	}
	rec.Kind = domain.FlowKind(kind)
	rec.State = domain.FlowState(state)
	rec.Form = form
	return rec, nil
}

var _ domain.FlowStore = (*FlowStore)(nil)
