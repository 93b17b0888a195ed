// Package monitor watches the RPC endpoints the client depends on and keeps
// the flow archive current.
package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	s3blob "github.com/AxelRoffi/OpinionMarketCap-sub004/internal/blob/s3"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/chain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/notify"
)

// Endpoint is one RPC URL under watch.
type Endpoint struct {
	Name string
	URL  string
}

// ProbeFunc reads the chain figures an endpoint reports. chain.Probe is the
// production implementation.
type ProbeFunc func(ctx context.Context, url string, contracts map[string]common.Address) (chain.ProbeResult, error)

// Config holds the checker parameters.
type Config struct {
	Network    string
	ChainID    int64
	Endpoints  []Endpoint
	Contracts  map[string]common.Address
	MaxHeadAge time.Duration
	Timeout    time.Duration
}

// EndpointStatus is the verdict on one endpoint.
type EndpointStatus struct {
	Name      string          `json:"name"`
	URL       string          `json:"url"`
	Healthy   bool            `json:"healthy"`
	ChainID   int64           `json:"chain_id,omitempty"`
	HeadBlock uint64          `json:"head_block,omitempty"`
	HeadAge   string          `json:"head_age,omitempty"`
	LatencyMs int64           `json:"latency_ms"`
	HasCode   map[string]bool `json:"has_code,omitempty"`
	Problems  []string        `json:"problems,omitempty"`
}

// Report is one round of checks.
type Report struct {
	Network   string           `json:"network"`
	CheckedAt time.Time        `json:"checked_at"`
	Healthy   bool             `json:"healthy"`
	Endpoints []EndpointStatus `json:"endpoints"`
}

// Checker probes every endpoint concurrently and reports transitions.
type Checker struct {
	cfg      Config
	probe    ProbeFunc
	writer   domain.BlobWriter
	audit    domain.AuditStore
	notifier *notify.Notifier
	now      func() time.Time
	logger   *slog.Logger

	mu        sync.Mutex
	last      *Report
	unhealthy map[string]bool
}

// NewChecker creates a Checker. writer, audit and notifier may be nil.
func NewChecker(cfg Config, probe ProbeFunc, writer domain.BlobWriter, audit domain.AuditStore, notifier *notify.Notifier, logger *slog.Logger) *Checker {
	if cfg.MaxHeadAge <= 0 {
		cfg.MaxHeadAge = 2 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if probe == nil {
		probe = chain.Probe
	}
	return &Checker{
		cfg:       cfg,
		probe:     probe,
		writer:    writer,
		audit:     audit,
		notifier:  notifier,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "monitor")),
		unhealthy: make(map[string]bool),
	}
}

// Last returns the most recent report.
func (c *Checker) Last() (Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Report{}, false
	}
	return *c.last, true
}

// Check runs one round. Probe failures mark an endpoint unhealthy; only
// storage failures are returned.
func (c *Checker) Check(ctx context.Context) (Report, error) {
	statuses := make([]EndpointStatus, len(c.cfg.Endpoints))
	g, gctx := errgroup.WithContext(ctx)
	for i, ep := range c.cfg.Endpoints {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, c.cfg.Timeout)
			defer cancel()
			statuses[i] = c.checkOne(pctx, ep)
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{
		Network:   c.cfg.Network,
		CheckedAt: c.now().UTC(),
		Healthy:   len(statuses) > 0,
		Endpoints: statuses,
	}
	for _, st := range statuses {
		if !st.Healthy {
			rep.Healthy = false
		}
	}

	c.mu.Lock()
	c.last = &rep
	c.mu.Unlock()

	c.notifyTransitions(ctx, rep)
	return rep, c.persist(ctx, rep)
}

func (c *Checker) checkOne(ctx context.Context, ep Endpoint) EndpointStatus {
	st := EndpointStatus{Name: ep.Name, URL: ep.URL}
	res, err := c.probe(ctx, ep.URL, c.cfg.Contracts)
	if err != nil {
		st.Problems = []string{err.Error()}
		c.logger.WarnContext(ctx, "endpoint probe failed",
			slog.String("endpoint", ep.Name),
			slog.String("error", err.Error()),
		)
		return st
	}

	st.ChainID = res.ChainID
	st.HeadBlock = res.HeadBlock
	st.LatencyMs = res.Latency.Milliseconds()
	st.HasCode = res.HasCode

	if c.cfg.ChainID != 0 && res.ChainID != c.cfg.ChainID {
		st.Problems = append(st.Problems, fmt.Sprintf("chain id %d, want %d", res.ChainID, c.cfg.ChainID))
	}
	age := c.now().Sub(res.HeadTime)
	st.HeadAge = age.Round(time.Second).String()
	if age > c.cfg.MaxHeadAge {
		st.Problems = append(st.Problems, "head block is "+st.HeadAge+" old")
	}
	names := make([]string, 0, len(res.HasCode))
	for name := range res.HasCode {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !res.HasCode[name] {
			st.Problems = append(st.Problems, "no code at "+name)
		}
	}
	st.Healthy = len(st.Problems) == 0
	return st
}

// notifyTransitions alerts only when an endpoint changes state.
func (c *Checker) notifyTransitions(ctx context.Context, rep Report) {
	for _, st := range rep.Endpoints {
		c.mu.Lock()
		was := c.unhealthy[st.Name]
		c.unhealthy[st.Name] = !st.Healthy
		c.mu.Unlock()

		var event, title, msg string
		switch {
		case !st.Healthy && !was:
			event, title = notify.EventRPCUnhealthy, "RPC endpoint unhealthy"
			msg = fmt.Sprintf("%s (%s): %s", st.Name, rep.Network, strings.Join(st.Problems, "; "))
			c.logger.WarnContext(ctx, "endpoint unhealthy",
				slog.String("endpoint", st.Name),
				slog.Any("problems", st.Problems),
			)
		case st.Healthy && was:
			event, title = notify.EventRPCRecovered, "RPC endpoint recovered"
			msg = fmt.Sprintf("%s (%s) is healthy again", st.Name, rep.Network)
			c.logger.InfoContext(ctx, "endpoint recovered", slog.String("endpoint", st.Name))
		default:
			continue
		}
		if err := c.notifier.Notify(ctx, event, title, msg); err != nil {
			c.logger.WarnContext(ctx, "notify failed", slog.String("error", err.Error()))
		}
	}
}

func (c *Checker) persist(ctx context.Context, rep Report) error {
	if c.writer != nil {
		data, err := json.Marshal(rep)
		if err != nil {
			return fmt.Errorf("monitor: marshal report: %w", err)
		}
		if err := c.writer.Put(ctx, s3blob.ReportPath(rep.CheckedAt), bytes.NewReader(data), "application/json"); err != nil {
			return fmt.Errorf("monitor: upload report: %w", err)
		}
	}
	if c.audit != nil {
		unhealthy := 0
		for _, st := range rep.Endpoints {
			if !st.Healthy {
				unhealthy++
			}
		}
		if err := c.audit.Log(ctx, "monitor.check", map[string]any{
			"network":   rep.Network,
			"healthy":   rep.Healthy,
			"endpoints": len(rep.Endpoints),
			"unhealthy": unhealthy,
		}); err != nil {
			return fmt.Errorf("monitor: audit: %w", err)
		}
	}
	return nil
}
