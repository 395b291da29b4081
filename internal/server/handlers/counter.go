package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/fusionlab/fusionlab/internal/counter"
	apperrors "github.com/fusionlab/fusionlab/internal/errors"
	"github.com/fusionlab/fusionlab/internal/metrics"
	"github.com/fusionlab/fusionlab/internal/observability"
)

const (
	msgCountReadFailed      = "Failed to get fusion count"
	msgCountIncrementFailed = "Failed to increment fusion count"
)

// CountResponse is the body of both /api/fusion-count methods.
type CountResponse struct {
	Count int64 `json:"count"`
}

// CounterHandlers serves the fusion counter.
type CounterHandlers struct {
	Store counter.Store
}

func NewCounterHandlers(store counter.Store) *CounterHandlers {
	return &CounterHandlers{Store: store}
}

// Get handles GET /api/fusion-count.
func (h *CounterHandlers) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Store.Get(r.Context())
	if err != nil {
		respondWithError(w, r, apperrors.WrapInternal(r.Context(), err, msgCountReadFailed))
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: snap.Count})
}

// Increment handles POST /api/fusion-count.
func (h *CounterHandlers) Increment(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Store.Increment(upstreamContext(r))
	metrics.RecordFusionCountIncrement(err == nil)
	if err != nil {
		respondWithError(w, r, apperrors.WrapInternal(r.Context(), err, msgCountIncrementFailed))
		return
	}

	if observability.ServerLogger != nil {
		observability.ServerLogger.Debug("Fusion count incremented", zap.Int64("count", snap.Count))
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: snap.Count})
}
