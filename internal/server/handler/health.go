package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

// StatusSource exposes the live system status row.
type StatusSource interface {
	Current() domain.SystemStatus
}

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	status    StatusSource
	connected func() bool
	startedAt time.Time
	logger    *slog.Logger
}

// NewHealthHandler creates a HealthHandler. connected reports the feed
// state and may be nil when no feed runs in this process.
func NewHealthHandler(status StatusSource, connected func() bool, logger *slog.Logger) *HealthHandler {
	if connected == nil {
		connected = func() bool { return false }
	}
	return &HealthHandler{
		status:    status,
		connected: connected,
		startedAt: time.Now(),
		logger:    logger,
	}
}

// HealthCheck responds with the process state and counters.
// GET /health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	st := h.status.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "alive",
		"skull":     st.Status,
		"connected": h.connected(),
		"wallet":    st.WalletAddress,
		"balance":   st.BalanceSol,
		"stats": map[string]any{
			"tokensScanned":  st.TokensScanned,
			"snipesExecuted": st.SnipesExecuted,
			"kills":          st.Kills,
			"deaths":         st.Deaths,
			"totalPnl":       st.TotalPnL,
		},
		"uptime":    time.Since(h.startedAt).Seconds(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
