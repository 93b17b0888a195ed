package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/domain"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/txflow"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/usdc"
)

// maxBodyBytes caps request bodies; forms are small.
const maxBodyBytes = 16 << 10

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain and flow errors to a status code. Anything
// unrecognised is logged and reported as a 502 because it came from chain or
// storage.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var ve *domain.ValidationError
	var te *txflow.TxError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": ve.Fields,
		})
	case errors.Is(err, usdc.ErrInvalidAmount):
		// usdc sits below domain, so its rejections arrive as the sentinel.
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": map[string]string{"amount": err.Error()},
		})
	case errors.As(err, &te):
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":     te.UserMessage(),
			"type":      te.Type,
			"retryable": te.Retryable,
		})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInFlight), errors.Is(err, domain.ErrLockHeld):
		writeError(w, http.StatusConflict, "a transaction is already in flight")
	case errors.Is(err, domain.ErrNotTracking), errors.Is(err, txflow.ErrNotEditable), errors.Is(err, txflow.ErrNotRetryable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrStaleSession):
		writeError(w, http.StatusGone, "session expired, reconnect the wallet")
	default:
		logger.Error("request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "upstream error")
	}
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}

// idParam parses a numeric path parameter.
func idParam(r *http.Request, name string) (uint64, error) {
	return strconv.ParseUint(r.PathValue(name), 10, 64)
}

// amountParam parses a decimal USDC query parameter such as "12.5". Missing
// means zero.
func amountParam(r *http.Request, name string) (usdc.Amount, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	return usdc.Parse(v)
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
