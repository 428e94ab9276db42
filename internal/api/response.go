// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

// Package api provides the inbound HTTP surface: the push-provider
// webhook, queue-service job callbacks, health, metrics, and the
// token-guarded operator endpoints.
package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/lkmcompany/gorgone/internal/logging"
)

// errorBody is the stable wire shape for every error response: one kind of
// validation/auth/lookup error envelope across all routes.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondJSON writes data as a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")

	body, err := json.Marshal(data)
	if err != nil {
		logging.Error().Err(err).Msg("marshal JSON response failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Error().Err(err).Msg("write JSON response failed")
	}
}

// respondError writes the error envelope and logs the underlying cause.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Warn().Err(err).Str("code", code).Int("status", status).Msg(message)
	}
	respondJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}
