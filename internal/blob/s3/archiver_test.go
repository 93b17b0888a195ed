package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
)

type fakeFlows struct{ recs []domain.FlowRecord }

func (f fakeFlows) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.FlowRecord, error) {
	return f.recs, nil
}

type fakeWriter struct {
	path string
	body []byte
}

func (w *fakeWriter) PutMultipart(ctx context.Context, path string, data io.Reader, contentType string, partSize int64) error {
	w.path = path
	b, err := io.ReadAll(data)
	w.body = b
	return err
}

type fakeAudit struct{ events []string }

func (a *fakeAudit) Log(ctx context.Context, event string, detail map[string]any) error {
	a.events = append(a.events, event)
	return nil
}

func (a *fakeAudit) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func TestFlowArchiver(t *testing.T) {
	recs := []domain.FlowRecord{
		{ID: "a", Kind: domain.FlowContribute, State: domain.FlowStateSuccess},
		{ID: "b", Kind: domain.FlowCreatePool, State: domain.FlowStateError},
	}
	w := &fakeWriter{}
	audit := &fakeAudit{}
	a := NewFlowArchiver(w, fakeFlows{recs: recs}, audit)

	cutoff := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	n, err := a.Archive(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 archived, got %d", n)
	}
	if w.path != "archive/flows/2026-05.jsonl" {
		t.Errorf("unexpected path %q", w.path)
	}

	lines := strings.Split(strings.TrimSpace(string(w.body)), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 JSONL lines, got %d", len(lines))
	}
	var first domain.FlowRecord
	if err := json.NewDecoder(bytes.NewReader([]byte(lines[0]))).Decode(&first); err != nil {
		t.Fatal(err)
	}
	if first.ID != "a" {
		t.Errorf("Expected first record a, got %q", first.ID)
	}
	if len(audit.events) != 1 || audit.events[0] != "archive.flows" {
		t.Errorf("unexpected audit events %v", audit.events)
	}
}

func TestFlowArchiver_Empty(t *testing.T) {
	w := &fakeWriter{}
	n, err := NewFlowArchiver(w, fakeFlows{}, nil).Archive(context.Background(), time.Now())
	if err != nil || n != 0 {
		t.Errorf("Expected no-op, got %d %v", n, err)
	}
	if w.path != "" {
		t.Error("Expected no upload")
	}
}

func TestPaths(t *testing.T) {
	at := time.Date(2026, 10, 14, 9, 30, 5, 0, time.UTC)
	if got := ReportPath(at); got != "health/2026/10/14/20261014T093005Z.json" {
		t.Errorf("ReportPath = %q", got)
	}
	if got := ReportPrefix(at); got != "health/2026/10/14/" {
		t.Errorf("ReportPrefix = %q", got)
	}
	if got := normaliseEndpoint("minio:9000", false); got != "http://minio:9000" {
		t.Errorf("normaliseEndpoint = %q", got)
	}
	if got := normaliseEndpoint("https://e2.example.com", false); got != "https://e2.example.com" {
		t.Errorf("normaliseEndpoint = %q", got)
	}
}
