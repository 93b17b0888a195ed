package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
)

// SettledFlowSource lists terminal flows last updated before a cutoff.
type SettledFlowSource interface {
	ListSettledBefore(ctx context.Context, before time.Time) ([]domain.FlowRecord, error)
}

// MultipartWriter is the streaming upload Writer provides.
type MultipartWriter interface {
	PutMultipart(ctx context.Context, path string, data io.Reader, contentType string, partSize int64) error
}

// FlowArchiver copies settled flows to object storage as JSONL. It never
// deletes rows; pruning the table is a separate step after the archive has
// been checked.
type FlowArchiver struct {
	writer MultipartWriter
	flows  SettledFlowSource
	audit  domain.AuditStore
}

func NewFlowArchiver(writer MultipartWriter, flows SettledFlowSource, audit domain.AuditStore) *FlowArchiver {
	return &FlowArchiver{writer: writer, flows: flows, audit: audit}
}

// Archive uploads flows settled before the cutoff to
// archive/flows/YYYY-MM.jsonl and returns how many were written.
func (a *FlowArchiver) Archive(ctx context.Context, before time.Time) (int, error) {
	recs, err := a.flows.ListSettledBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive flows query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive flows marshal: %w", err)
	}
	path := ArchivePath("flows", before)
	if err := a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), "application/x-ndjson", 0); err != nil {
		return 0, fmt.Errorf("s3blob: archive flows upload: %w", err)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.flows", map[string]any{
			"path":   path,
			"count":  len(recs),
			"before": before.UTC().Format(time.RFC3339),
		}); err != nil {
			return len(recs), fmt.Errorf("s3blob: archive flows audit: %w", err)
		}
	}
	return len(recs), nil
}

// ArchivePath partitions archives by the cutoff's month.
func ArchivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01"))
}

// ReportPath is where one health report is written.
func ReportPath(at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("health/%s/%s.json", at.Format("2006/01/02"), at.Format("20060102T150405Z"))
}

// ReportPrefix lists the reports of one UTC day.
func ReportPrefix(day time.Time) string {
	return "health/" + day.UTC().Format("2006/01/02") + "/"
}

func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
