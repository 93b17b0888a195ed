package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/service"
)

// FlowManager is the flow surface the API drives.
type FlowManager interface {
	Start(ctx context.Context, kind domain.FlowKind, form domain.FormData) (domain.FlowRecord, error)
	Get(ctx context.Context, id string) (domain.FlowRecord, error)
	List(ctx context.Context, opts domain.ListOpts) ([]domain.FlowRecord, error)
	Retry(ctx context.Context, id string) (domain.FlowRecord, error)
	Stop(ctx context.Context, id string) (domain.FlowRecord, error)
}

// FlowHandler serves the transaction flow endpoints.
type FlowHandler struct {
	flows  FlowManager
	logger *slog.Logger
}

func NewFlowHandler(flows FlowManager, logger *slog.Logger) *FlowHandler {
	return &FlowHandler{flows: flows, logger: logHandler(logger, "flow")}
}

// StartFlow decodes the form for {kind} and starts the flow. The response is
// the initial snapshot; progress arrives on /ws or by polling GetFlow.
// POST /api/flows/{kind}
func (h *FlowHandler) StartFlow(w http.ResponseWriter, r *http.Request) {
	kind := domain.FlowKind(r.PathValue("kind"))
	if !kind.Valid() {
		writeError(w, http.StatusNotFound, "unknown flow kind")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	form, err := service.DecodeForm(kind, body)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	rec, err := h.flows.Start(r.Context(), kind, form)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	h.logger.InfoContext(r.Context(), "flow started", slog.String("flow_id", rec.ID), slog.String("kind", string(kind)))
	writeJSON(w, http.StatusAccepted, rec)
}

// ListFlows returns the wallet's flows.
// GET /api/flows
func (h *FlowHandler) ListFlows(w http.ResponseWriter, r *http.Request) {
	recs, err := h.flows.List(r.Context(), parseListOpts(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// GetFlow returns one flow snapshot.
// GET /api/flows/{id}
func (h *FlowHandler) GetFlow(w http.ResponseWriter, r *http.Request) {
	rec, err := h.flows.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// RetryFlow resubmits an errored flow with its preserved form.
// POST /api/flows/{id}/retry
func (h *FlowHandler) RetryFlow(w http.ResponseWriter, r *http.Request) {
	rec, err := h.flows.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, rec)
}

// StopFlow stops tracking a flow. Broadcast transactions are not cancelled.
// DELETE /api/flows/{id}
func (h *FlowHandler) StopFlow(w http.ResponseWriter, r *http.Request) {
	rec, err := h.flows.Stop(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
