// Package handler provides the HTTP entry point for API key resolution.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/SebastienMelki/keyportal/internal/apikey/internal/domain"
	"github.com/SebastienMelki/keyportal/internal/apikey/internal/service"
	"github.com/SebastienMelki/keyportal/internal/gateway"
)

// Resolver is the subset of service.ResolveService the handler needs.
type Resolver interface {
	Resolve(ctx context.Context, id domain.Identity) (service.Result, error)
}

// ResolveHandler answers POST /api/auth. Every request gets either the key
// record or an error payload.
type ResolveHandler struct {
	resolver Resolver
	logger   *slog.Logger
}

// NewResolveHandler creates a new ResolveHandler.
func NewResolveHandler(resolver Resolver, logger *slog.Logger) *ResolveHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResolveHandler{
		resolver: resolver,
		logger:   logger.With("component", "resolve-handler"),
	}
}

// RegisterRoutes mounts the resolution endpoint on the given ServeMux,
// wrapped in the given middleware (outermost first).
//
// Endpoints:
//   - POST /api/auth - Look up or create the API key for an issuer
func (h *ResolveHandler) RegisterRoutes(mux *http.ServeMux, middleware ...func(http.Handler) http.Handler) {
	mux.Handle("POST /api/auth", gateway.Chain(http.HandlerFunc(h.handleResolve), middleware...))
}

// resolveRequest is the JSON request body: {"data": {"issuer", "email"}}.
type resolveRequest struct {
	Data *identityPayload `json:"data"`
}

type identityPayload struct {
	Issuer string `json:"issuer"`
	Email  string `json:"email"`
}

// errorResponse is the JSON body for every failed resolution.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// handleResolve handles POST /api/auth.
func (h *ResolveHandler) handleResolve(w http.ResponseWriter, r *http.Request) {
	requestID := gateway.GetRequestID(r.Context())

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid resolve request body",
			"request_id", requestID,
			"error", err,
		)
		h.writeError(w, fmt.Errorf("%w: invalid request body", domain.ErrBadRequest))
		return
	}

	var id domain.Identity
	if req.Data != nil {
		id = domain.Identity{Issuer: req.Data.Issuer, Email: req.Data.Email}
	}

	result, err := h.resolver.Resolve(r.Context(), id)
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, domain.ErrBadRequest) {
			level = slog.LevelWarn
		}
		h.logger.Log(r.Context(), level, "failed to resolve api key",
			"request_id", requestID,
			"issuer", id.Issuer,
			"kind", domain.Kind(err),
			"error", err,
		)
		h.writeError(w, err)
		return
	}

	h.logger.Debug("api key resolved",
		"request_id", requestID,
		"issuer", id.Issuer,
		"created", result.Created,
	)

	writeJSON(w, http.StatusOK, result.Record)
}

// writeError reports any resolution failure as a 500 with the message and
// its kind.
func (h *ResolveHandler) writeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error: err.Error(),
		Code:  domain.Kind(err),
	})
}

// writeJSON writes a JSON response with the given status code and body.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
