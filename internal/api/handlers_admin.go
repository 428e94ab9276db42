// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/lkmcompany/gorgone/internal/models"
	"github.com/lkmcompany/gorgone/internal/rule"
	"github.com/lkmcompany/gorgone/internal/validation"
)

// createRuleRequest is the typed, schema-validated body for rule creation.
type createRuleRequest struct {
	ZoneID          string `json:"zone_id" validate:"required,uuid"`
	Name            string `json:"name" validate:"required,min=1,max=128"`
	Kind            string `json:"kind" validate:"required"`
	QuerySpec       string `json:"query_spec" validate:"required"`
	IntervalSeconds int    `json:"interval_seconds" validate:"required,min=1"`
}

type updateRuleRequest struct {
	Name            *string `json:"name,omitempty" validate:"omitempty,min=1,max=128"`
	QuerySpec       *string `json:"query_spec,omitempty"`
	IntervalSeconds *int    `json:"interval_seconds,omitempty" validate:"omitempty,min=1"`
	IsActive        *bool   `json:"is_active,omitempty"`
}

type backfillRequest struct {
	RuleID         string `json:"rule_id" validate:"required,uuid"`
	RequestedCount int    `json:"requested_count" validate:"required,min=1,max=10000"`
}

// decodeAndValidate unmarshals a request body into dst and runs the struct
// validator, writing the error envelope itself on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON", err)
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		respondError(w, http.StatusBadRequest, "validation_failed", verr.Error(), nil)
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "malformed "+name, err)
		return uuid.Nil, false
	}
	return id, true
}

// ListRules is GET /admin/zones/{zoneID}/rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	zoneID, ok := pathUUID(w, r, "zoneID")
	if !ok {
		return
	}
	rules, err := h.rules.List(r.Context(), zoneID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list_failed", "could not list rules", err)
		return
	}
	respondJSON(w, http.StatusOK, rules)
}

// CreateRule is POST /admin/rules. Validation failures (interval floors,
// query grammar) surface as 400 with the registry's message.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	zoneID, err := uuid.Parse(req.ZoneID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "malformed zone_id", err)
		return
	}

	created, err := h.rules.Create(r.Context(), models.Rule{
		ZoneID:          zoneID,
		Name:            req.Name,
		Kind:            models.RuleKind(req.Kind),
		QuerySpec:       req.QuerySpec,
		IntervalSeconds: req.IntervalSeconds,
		IsActive:        true,
	})
	if err != nil {
		if errors.As(err, new(*rule.ValidationError)) {
			respondError(w, http.StatusBadRequest, "rule_invalid", err.Error(), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "create_failed", "could not create rule", err)
		return
	}

	// A pull rule starts polling immediately.
	if !created.IsPushMirrored() {
		if _, err := h.queue.EnqueuePollRule(r.Context(), created.ID, created.CreatedAt); err != nil {
			respondError(w, http.StatusInternalServerError, "schedule_failed", "rule created but first poll scheduling failed", err)
			return
		}
	}
	respondJSON(w, http.StatusCreated, created)
}

// UpdateRule is PATCH /admin/rules/{ruleID}.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "ruleID")
	if !ok {
		return
	}
	var req updateRuleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	err := h.rules.Update(r.Context(), id, models.RulePatch{
		Name:            req.Name,
		QuerySpec:       req.QuerySpec,
		IntervalSeconds: req.IntervalSeconds,
		IsActive:        req.IsActive,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "rule_not_found", "no such rule", nil)
			return
		}
		if errors.As(err, new(*rule.ValidationError)) {
			respondError(w, http.StatusBadRequest, "rule_invalid", err.Error(), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "update_failed", "could not update rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleRule is POST /admin/rules/{ruleID}/toggle.
func (h *Handler) ToggleRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "ruleID")
	if !ok {
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON", err)
		return
	}

	if err := h.rules.Toggle(r.Context(), id, req.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "rule_not_found", "no such rule", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "toggle_failed", "could not toggle rule", err)
		return
	}

	if req.Active {
		// Reactivated pull rules resume polling.
		if rl, err := h.rules.Get(r.Context(), id); err == nil && !rl.IsPushMirrored() {
			_, _ = h.queue.EnqueuePollRule(r.Context(), id, rl.CreatedAt)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteRule is DELETE /admin/rules/{ruleID}. Remote mirror failures are
// logged by the registry; local delete wins.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "ruleID")
	if !ok {
		return
	}
	if err := h.rules.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "rule_not_found", "no such rule", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "delete_failed", "could not delete rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Backfill is POST /admin/backfill: it enqueues a backfill_rule job rather
// than running inline, so the poll-pool concurrency and retry policy
// apply.
func (h *Handler) Backfill(w http.ResponseWriter, r *http.Request) {
	var req backfillRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	ruleID, err := uuid.Parse(req.RuleID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", "malformed rule_id", err)
		return
	}

	job, err := h.queue.EnqueueBackfill(r.Context(), ruleID, req.RequestedCount)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "enqueue_failed", "could not enqueue backfill", err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID.String()})
}

// ListDeadLetters is GET /admin/dead-letters.
func (h *Handler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	dls, err := h.db.ListDeadLetters(r.Context(), 100)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list_failed", "could not list dead letters", err)
		return
	}
	respondJSON(w, http.StatusOK, dls)
}

// ReplayDeadLetter is POST /admin/dead-letters/{dlID}/replay.
func (h *Handler) ReplayDeadLetter(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "dlID")
	if !ok {
		return
	}

	dls, err := h.db.ListDeadLetters(r.Context(), 1000)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "lookup_failed", "could not load dead letters", err)
		return
	}
	for _, dl := range dls {
		if dl.ID == id {
			job, err := h.db.ReplayDeadLetter(r.Context(), dl, h.queueCfg.MaxAttempts)
			if err != nil {
				respondError(w, http.StatusInternalServerError, "replay_failed", "could not replay dead letter", err)
				return
			}
			respondJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID.String()})
			return
		}
	}
	respondError(w, http.StatusNotFound, "dead_letter_not_found", "no such dead letter", nil)
}
