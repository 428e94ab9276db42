// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package api

import (
	"bytes"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/lkmcompany/gorgone/internal/logging"
)

// maxWebhookBody bounds an inbound webhook read.
const maxWebhookBody = 4 << 20

// webhookEnvelope extracts the rule reference from any of the accepted
// payload shapes. The tweet list itself is re-parsed by the adapter; this
// only needs rule_id.
type webhookEnvelope struct {
	RuleID string `json:"rule_id"`
}

// Webhook receives a push-provider batch. The X-API-Key header must equal
// the shared webhook secret; empty and test payloads are acknowledged with
// success so the provider's probes never see failures.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	if !h.push.VerifyWebhookSecret(r.Header.Get("X-API-Key")) {
		h.audit.LogWebhookAuthFailure(r.RemoteAddr, r.UserAgent())
		respondError(w, http.StatusUnauthorized, "invalid_api_key", "webhook secret mismatch", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "body_read_failed", "could not read webhook body", err)
		return
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("{}")) {
		// Provider health probe.
		respondJSON(w, http.StatusOK, map[string]int{"received": 0, "inserted": 0, "duplicates": 0, "errors": 0})
		return
	}

	var envelope webhookEnvelope
	// A top-level array has no rule_id field; Unmarshal failure leaves it
	// empty and the orchestrator drops the batch with a warning.
	_ = json.Unmarshal(trimmed, &envelope)

	result, err := h.orch.StageAndHandleWebhook(r.Context(), envelope.RuleID, trimmed)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unrecognized_payload", "unrecognized webhook payload shape", err)
		return
	}

	logging.Ctx(r.Context()).Debug().
		Int("received", result.Received).
		Int("inserted", result.Inserted).
		Msg("webhook processed")
	respondJSON(w, http.StatusOK, map[string]int{
		"received":   result.Received,
		"inserted":   result.Inserted,
		"duplicates": result.Duplicates,
		"errors":     result.Errors,
	})
}
