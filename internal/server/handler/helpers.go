package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/vitorsaz/skull-agent/internal/crypto"
	"github.com/vitorsaz/skull-agent/internal/domain"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// writeJSON marshals v as JSON and writes it with the given status. If
// marshaling fails, it falls back to a plain-text 500.
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

// decodeJSON reads a bounded JSON body into v. An empty body leaves v
// untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// queryLimit reads ?limit=, defaulting to def and capped at max.
func queryLimit(r *http.Request, def, max int) int {
	limit := def
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	return min(limit, max)
}

// parseListOpts extracts pagination and the optional ca filter.
func parseListOpts(r *http.Request, def int) domain.ListOpts {
	opts := domain.ListOpts{
		Limit:           queryLimit(r, def, 500),
		ContractAddress: r.URL.Query().Get("ca"),
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opts.Offset = n
		}
	}
	return opts
}

// requireMint writes a 400 and returns false when ca is not a mint address.
func requireMint(w http.ResponseWriter, ca string) bool {
	if ca == "" {
		writeError(w, http.StatusBadRequest, "ca required")
		return false
	}
	if !crypto.ValidMint(ca) {
		writeError(w, http.StatusBadRequest, "invalid ca")
		return false
	}
	return true
}

// writeExecError maps a gateway error onto an HTTP status.
func writeExecError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, op string, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, domain.ErrNoSigningKey):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrLockHeld):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	}
	logger.WarnContext(r.Context(), "handler: "+op+" failed", slog.String("error", err.Error()))
	writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
