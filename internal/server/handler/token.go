package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

// TokenHandler serves discovered tokens and the audit log.
type TokenHandler struct {
	tokens domain.TokenStore
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewTokenHandler creates a TokenHandler.
func NewTokenHandler(tokens domain.TokenStore, audit domain.AuditStore, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{tokens: tokens, audit: audit, logger: logger}
}

// ListTokens returns the most recently discovered tokens.
// GET /tokens?limit=50
func (h *TokenHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.tokens.ListRecent(r.Context(), queryLimit(r, 50, 500))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list tokens failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list tokens")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(tokens))
}

type tokenResponse struct {
	Token domain.TokenRecord  `json:"token"`
	Logs  []domain.AuditEntry `json:"logs"`
}

// GetToken returns one token with its latest audit entries.
// GET /token/{ca}
func (h *TokenHandler) GetToken(w http.ResponseWriter, r *http.Request) {
	ca := r.PathValue("ca")
	if !requireMint(w, ca) {
		return
	}

	rec, err := h.tokens.Get(r.Context(), ca)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Token not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get token failed",
			slog.String("ca", ca),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get token")
		return
	}

	logs, err := h.audit.List(r.Context(), domain.ListOpts{Limit: 20, ContractAddress: ca})
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: token logs failed",
			slog.String("ca", ca),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: rec, Logs: nonNil(logs)})
}

// ListLogs returns recent audit entries, newest first.
// GET /logs?limit=100&ca=
func (h *TokenHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.audit.List(r.Context(), parseListOpts(r, 100))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list logs failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(logs))
}
