package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vitorsaz/skull-agent/internal/domain"
	"github.com/vitorsaz/skull-agent/internal/service"
)

// Controller is the manual-control surface of the pipeline.
// *service.Coordinator satisfies it.
type Controller interface {
	Analyze(ctx context.Context, ca string) (domain.ScoreResult, service.Enrichment)
	ManualSnipe(ctx context.Context, ca string, amountSol float64) (domain.ExecutionResult, error)
	ManualDump(ctx context.Context, ca string, percent float64) (domain.ExecutionResult, error)
	ClaimFees(ctx context.Context, ca string) (domain.ExecutionResult, error)
	ToggleSniper(ctx context.Context) bool
}

// ControlHandler serves the manual trigger endpoints. Without a controller
// (server mode) every route answers 503.
type ControlHandler struct {
	ctl    Controller
	logger *slog.Logger
}

// NewControlHandler creates a ControlHandler. ctl may be nil.
func NewControlHandler(ctl Controller, logger *slog.Logger) *ControlHandler {
	return &ControlHandler{ctl: ctl, logger: logger}
}

type caRequest struct {
	CA      string  `json:"ca"`
	Amount  float64 `json:"amount"`
	Percent float64 `json:"percent"`
}

type executionResponse struct {
	Success   bool   `json:"success"`
	Signature string `json:"signature,omitempty"`
	Message   string `json:"message,omitempty"`
}

type analyzeResponse struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	domain.ScoreResult
	SolPrice float64 `json:"sol_price"`
}

func (h *ControlHandler) available(w http.ResponseWriter) bool {
	if h.ctl == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not running")
		return false
	}
	return true
}

func (h *ControlHandler) readCA(w http.ResponseWriter, r *http.Request) (caRequest, bool) {
	var req caRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	if !requireMint(w, req.CA) {
		return req, false
	}
	return req, true
}

// Analyze scores a token on demand without executing.
// POST /analyze {"ca": "..."}
func (h *ControlHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	req, ok := h.readCA(w, r)
	if !ok {
		return
	}
	res, enr := h.ctl.Analyze(r.Context(), req.CA)
	writeJSON(w, http.StatusOK, analyzeResponse{
		Name:        enr.Name,
		Symbol:      enr.Symbol,
		ScoreResult: res,
		SolPrice:    enr.SolPriceUSD,
	})
}

// Snipe buys a token regardless of the sniper toggle.
// POST /snipe {"ca": "...", "amount": 0.1}
func (h *ControlHandler) Snipe(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	req, ok := h.readCA(w, r)
	if !ok {
		return
	}
	if req.Amount < 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	res, err := h.ctl.ManualSnipe(r.Context(), req.CA, req.Amount)
	if err != nil {
		writeExecError(w, h.logger, r, "snipe", err)
		return
	}
	writeJSON(w, http.StatusOK, executionResponse{Success: true, Signature: res.Signature})
}

// Dump sells a percentage of a holding; 100 (the default) sells all.
// POST /dump {"ca": "...", "percent": 50}
func (h *ControlHandler) Dump(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	req, ok := h.readCA(w, r)
	if !ok {
		return
	}
	if req.Percent < 0 || req.Percent > 100 {
		writeError(w, http.StatusBadRequest, "percent must be within 0-100")
		return
	}
	if req.Percent == 0 {
		req.Percent = 100
	}
	res, err := h.ctl.ManualDump(r.Context(), req.CA, req.Percent)
	if err != nil {
		writeExecError(w, h.logger, r, "dump", err)
		return
	}
	writeJSON(w, http.StatusOK, executionResponse{Success: true, Signature: res.Signature})
}

// ClaimFees claims creator fees for a token.
// POST /claim-fees {"ca": "..."}
func (h *ControlHandler) ClaimFees(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	req, ok := h.readCA(w, r)
	if !ok {
		return
	}
	res, err := h.ctl.ClaimFees(r.Context(), req.CA)
	if errors.Is(err, domain.ErrNoFees) {
		writeJSON(w, http.StatusOK, executionResponse{Success: false, Message: "No fees to claim"})
		return
	}
	if err != nil {
		writeExecError(w, h.logger, r, "claim fees", err)
		return
	}
	writeJSON(w, http.StatusOK, executionResponse{Success: true, Signature: res.Signature})
}

// ToggleSniper flips automatic acquisition.
// POST /toggle-sniper
func (h *ControlHandler) ToggleSniper(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	enabled := h.ctl.ToggleSniper(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}
