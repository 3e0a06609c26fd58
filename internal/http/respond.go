package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/purchase"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondErrorDetails(w, status, code, message, "")
}

func respondErrorDetails(w http.ResponseWriter, status int, code, message, details string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// handleUpstreamError maps purchase service failures to gateway style statuses.
func handleUpstreamError(w http.ResponseWriter, err error) {
	var apiErr *purchase.APIError
	switch {
	case errors.Is(err, purchase.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "purchase service is unavailable")
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized:
		respondError(w, http.StatusUnauthorized, "unauthenticated", apiErr.Error())
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		respondError(w, http.StatusNotFound, "not_found", apiErr.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "purchase service timed out")
	default:
		respondErrorDetails(w, http.StatusBadGateway, "upstream_error", "purchase service request failed", err.Error())
	}
}
