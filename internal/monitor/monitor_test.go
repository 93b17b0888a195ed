package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/chain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/notify"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

var checkTime = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

type memWriter struct {
	mu    sync.Mutex
	paths []string
}

func (w *memWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	w.mu.Lock()
	w.paths = append(w.paths, path)
	w.mu.Unlock()
	return nil
}

type sentAlert struct{ title, message string }

type recordSender struct {
	mu   sync.Mutex
	sent []sentAlert
}

func (s *recordSender) Send(ctx context.Context, title, message string) error {
	s.mu.Lock()
	s.sent = append(s.sent, sentAlert{title, message})
	s.mu.Unlock()
	return nil
}

func (s *recordSender) Name() string { return "record" }

// probeTable serves per-URL results.
type probeTable struct {
	mu      sync.Mutex
	results map[string]chain.ProbeResult
	errs    map[string]error
}

func (p *probeTable) probe(ctx context.Context, url string, contracts map[string]common.Address) (chain.ProbeResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.errs[url]; err != nil {
		return chain.ProbeResult{}, err
	}
	return p.results[url], nil
}

func healthy() chain.ProbeResult {
	return chain.ProbeResult{
		ChainID:   84532,
		HeadBlock: 100,
		HeadTime:  checkTime.Add(-5 * time.Second),
		Latency:   40 * time.Millisecond,
		HasCode:   map[string]bool{"usdc": true, "opinion_core": true},
	}
}

func newTestChecker(p *probeTable, w *memWriter, s *recordSender) *Checker {
	c := NewChecker(Config{
		Network: "testnet",
		ChainID: 84532,
		Endpoints: []Endpoint{
			{Name: "primary", URL: "https://a"},
			{Name: "backup", URL: "https://b"},
		},
	}, p.probe, w, nil, notify.NewNotifier([]notify.Sender{s}, nil, discardLogger()), discardLogger())
	c.now = func() time.Time { return checkTime }
	return c
}

func TestCheck_AllHealthy(t *testing.T) {
	p := &probeTable{results: map[string]chain.ProbeResult{"https://a": healthy(), "https://b": healthy()}}
	w := &memWriter{}
	s := &recordSender{}
	c := newTestChecker(p, w, s)

	rep, err := c.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !rep.Healthy {
		t.Errorf("Expected healthy report, got %+v", rep.Endpoints)
	}
	if len(w.paths) != 1 || w.paths[0] != "health/2026/03/04/20260304T050607Z.json" {
		t.Errorf("Expected one dated report, got %v", w.paths)
	}
	if len(s.sent) != 0 {
		t.Errorf("Expected no alerts, got %v", s.sent)
	}
	if last, ok := c.Last(); !ok || !last.Healthy {
		t.Error("Expected Last to return the healthy report")
	}
}

func TestCheck_Problems(t *testing.T) {
	wrongChain := healthy()
	wrongChain.ChainID = 8453
	stale := healthy()
	stale.HeadTime = checkTime.Add(-10 * time.Minute)
	stale.HasCode["opinion_core"] = false

	p := &probeTable{results: map[string]chain.ProbeResult{"https://a": wrongChain, "https://b": stale}}
	c := newTestChecker(p, &memWriter{}, &recordSender{})

	rep, err := c.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if rep.Healthy {
		t.Fatal("Expected unhealthy report")
	}
	if got := rep.Endpoints[0].Problems; len(got) != 1 || !strings.Contains(got[0], "chain id 8453") {
		t.Errorf("Expected chain id problem, got %v", got)
	}
	if got := rep.Endpoints[1].Problems; len(got) != 2 {
		t.Errorf("Expected head age and code problems, got %v", got)
	}
}

func TestCheck_AlertsOnTransitionOnly(t *testing.T) {
	p := &probeTable{
		results: map[string]chain.ProbeResult{"https://a": healthy(), "https://b": healthy()},
		errs:    map[string]error{"https://b": errors.New("connection refused")},
	}
	s := &recordSender{}
	c := newTestChecker(p, &memWriter{}, s)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := c.Check(ctx); err != nil {
			t.Fatalf("Check: %v", err)
		}
	}
	if len(s.sent) != 1 || s.sent[0].title != "RPC endpoint unhealthy" {
		t.Fatalf("Expected one unhealthy alert, got %v", s.sent)
	}

	p.mu.Lock()
	delete(p.errs, "https://b")
	p.mu.Unlock()
	if _, err := c.Check(ctx); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(s.sent) != 2 || s.sent[1].title != "RPC endpoint recovered" {
		t.Errorf("Expected a recovery alert, got %v", s.sent)
	}
}

func TestCheck_NoEndpointsIsUnhealthy(t *testing.T) {
	c := NewChecker(Config{}, (&probeTable{}).probe, nil, nil, nil, discardLogger())
	rep, err := c.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if rep.Healthy {
		t.Error("Expected a report with no endpoints to be unhealthy")
	}
}

type countArchiver struct {
	mu    sync.Mutex
	calls int
}

func (a *countArchiver) Archive(ctx context.Context, before time.Time) (int, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	return 0, nil
}

func TestMonitor_RunsImmediately(t *testing.T) {
	p := &probeTable{results: map[string]chain.ProbeResult{"https://a": healthy(), "https://b": healthy()}}
	c := newTestChecker(p, &memWriter{}, &recordSender{})
	a := &countArchiver{}
	m := New(c, a, time.Hour, time.Hour, time.Hour, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := m.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if _, ok := c.Last(); !ok {
		t.Error("Expected a check before the first tick")
	}
	if a.calls != 1 {
		t.Errorf("Expected one archive run, got %d", a.calls)
	}
}
