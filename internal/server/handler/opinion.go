package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/pricing"
)

// QuoteSource serves opinion quotes.
type QuoteSource interface {
	Quote(ctx context.Context, id uint64) (pricing.Quote, error)
}

// OpinionHandler serves opinion price views.
type OpinionHandler struct {
	quotes QuoteSource
	logger *slog.Logger
}

func NewOpinionHandler(quotes QuoteSource, logger *slog.Logger) *OpinionHandler {
	return &OpinionHandler{quotes: quotes, logger: logHandler(logger, "opinion")}
}

// GetOpinion returns the quote for one opinion.
// GET /api/opinions/{id}
func (h *OpinionHandler) GetOpinion(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid opinion id")
		return
	}
	q, err := h.quotes.Quote(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}
