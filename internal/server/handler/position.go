package handler

import (
	"log/slog"
	"net/http"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

// PositionHandler serves position endpoints.
type PositionHandler struct {
	positions domain.PositionStore
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(positions domain.PositionStore, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{positions: positions, logger: logger}
}

type listPositionsResponse struct {
	Positions []domain.Position `json:"positions"`
	Open      int               `json:"open"`
}

// ListPositions returns open positions, or the recent history with
// ?status=all.
// GET /positions?status=open|all&limit=50
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	open, err := h.positions.GetOpen(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list positions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}

	positions := open
	if r.URL.Query().Get("status") == "all" {
		positions, err = h.positions.ListRecent(r.Context(), parseListOpts(r, 50))
		if err != nil {
			h.logger.ErrorContext(r.Context(), "handler: list position history failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to list positions")
			return
		}
	}

	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: nonNil(positions), Open: len(open)})
}
