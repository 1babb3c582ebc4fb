package handler

import (
	"log/slog"
	"net/http"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

// StatusHandler serves the full dashboard status.
type StatusHandler struct {
	status    StatusSource
	connected func() bool
	positions domain.PositionStore
	audit     domain.AuditStore
	logger    *slog.Logger
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(status StatusSource, connected func() bool, positions domain.PositionStore, audit domain.AuditStore, logger *slog.Logger) *StatusHandler {
	if connected == nil {
		connected = func() bool { return false }
	}
	return &StatusHandler{
		status:    status,
		connected: connected,
		positions: positions,
		audit:     audit,
		logger:    logger,
	}
}

type statusResponse struct {
	Online        bool                `json:"online"`
	State         string              `json:"state"`
	Wallet        string              `json:"wallet"`
	Balance       float64             `json:"balance"`
	SniperEnabled bool                `json:"sniperEnabled"`
	Stats         statsView           `json:"stats"`
	OpenPositions int                 `json:"openPositions"`
	Positions     []domain.Position   `json:"positions"`
	RecentLogs    []domain.AuditEntry `json:"recentLogs"`
}

type statsView struct {
	TokensScanned  int64   `json:"tokensScanned"`
	SnipesExecuted int64   `json:"snipesExecuted"`
	Kills          int64   `json:"kills"`
	Deaths         int64   `json:"deaths"`
	TotalPnL       float64 `json:"totalPnl"`
}

// GetStatus responds with the status row, open positions and recent logs.
// GET /status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positions.GetOpen(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list open positions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}
	logs, err := h.audit.List(r.Context(), domain.ListOpts{Limit: 20})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list logs failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}

	st := h.status.Current()
	writeJSON(w, http.StatusOK, statusResponse{
		Online:        h.connected(),
		State:         st.Status,
		Wallet:        st.WalletAddress,
		Balance:       st.BalanceSol,
		SniperEnabled: st.SniperEnabled,
		Stats: statsView{
			TokensScanned:  st.TokensScanned,
			SnipesExecuted: st.SnipesExecuted,
			Kills:          st.Kills,
			Deaths:         st.Deaths,
			TotalPnL:       st.TotalPnL,
		},
		OpenPositions: len(positions),
		Positions:     nonNil(positions),
		RecentLogs:    nonNil(logs),
	})
}
