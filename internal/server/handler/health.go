package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	s3blob "github.com/AxelRoffi/OpinionMarketCap-sub004/internal/blob/s3"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/monitor"
)

// RPCChecker is the monitor surface the health endpoints read.
type RPCChecker interface {
	Last() (monitor.Report, bool)
	Check(ctx context.Context) (monitor.Report, error)
}

// HealthHandler serves liveness and RPC health endpoints.
type HealthHandler struct {
	network string
	checker RPCChecker
	reports domain.BlobReader
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler. checker and reports may be nil.
func NewHealthHandler(network string, checker RPCChecker, reports domain.BlobReader, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{network: network, checker: checker, reports: reports, logger: logHandler(logger, "health")}
}

// HealthCheck responds with a simple JSON status indicating the server is alive.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"network":   h.network,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// RPC returns the last RPC health report, running a check when none exists
// yet or ?refresh=1 is given.
// GET /api/health/rpc
func (h *HealthHandler) RPC(w http.ResponseWriter, r *http.Request) {
	if h.checker == nil {
		writeError(w, http.StatusServiceUnavailable, "rpc monitor disabled")
		return
	}
	rep, ok := h.checker.Last()
	if !ok || r.URL.Query().Get("refresh") == "1" {
		var err error
		rep, err = h.checker.Check(r.Context())
		if err != nil {
			// The report is still valid when only persisting it failed.
			h.logger.WarnContext(r.Context(), "rpc check persisted with error", slog.String("error", err.Error()))
		}
	}
	status := http.StatusOK
	if !rep.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, rep)
}

// Reports lists stored health reports for ?date=YYYY-MM-DD (default today).
// GET /api/health/reports
func (h *HealthHandler) Reports(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "report storage disabled")
		return
	}
	day := time.Now().UTC()
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = d
	}
	infos, err := h.reports.List(r.Context(), s3blob.ReportPrefix(day))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": day.Format(time.DateOnly), "reports": infos})
}
