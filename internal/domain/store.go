package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// FlowStore persists transaction flow snapshots.
type FlowStore interface {
	Upsert(ctx context.Context, rec FlowRecord) error
	GetByID(ctx context.Context, id string) (FlowRecord, error)
	ListByWallet(ctx context.Context, wallet string, opts ListOpts) ([]FlowRecord, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
