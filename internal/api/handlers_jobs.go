// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lkmcompany/gorgone/internal/jobqueue"
)

// maxCallbackBody bounds an inbound job-callback read.
const maxCallbackBody = 1 << 20

// JobCallback executes one job delivered by an external queue service at
// POST /_jobs/{topic}. The request must carry a valid HMAC signature; a
// bearer token is accepted only when the signature header is absent
// (local/dev queues that cannot sign).
func (h *Handler) JobCallback(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "body_read_failed", "could not read callback body", err)
		return
	}

	if !h.authorizeCallback(r, body) {
		h.audit.LogCallbackSignatureFailure(topic, r.RemoteAddr)
		respondError(w, http.StatusUnauthorized, "signature_invalid", "callback signature did not verify", nil)
		return
	}

	if err := h.dispatcher.Invoke(r.Context(), topic, body); err != nil {
		// Non-2xx tells the queue service to redeliver; at-least-once
		// semantics are preserved by idempotent handlers.
		respondError(w, http.StatusInternalServerError, "handler_failed", "job handler failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "done", "topic": topic})
}

func (h *Handler) authorizeCallback(r *http.Request, body []byte) bool {
	if sig := r.Header.Get(jobqueue.SignatureHeader); sig != "" {
		return jobqueue.VerifySignature(h.queueCfg.CallbackSigningSecret, sig, body)
	}
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if jobqueue.VerifyBearer(h.queueCfg.CallbackBearerToken, bearer) {
		return true
	}
	// Managed queue services may present a short-lived JWT signed with the
	// callback secret instead of a static token.
	return jobqueue.VerifyCallbackJWT(h.queueCfg.CallbackSigningSecret, bearer)
}
