// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

// Package rule implements the zone rule registry: CRUD over
// internal/database's rules table plus query-spec grammar validation and
// push-provider lifecycle mirroring.
package rule

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lkmcompany/gorgone/internal/database"
	"github.com/lkmcompany/gorgone/internal/models"
	"github.com/lkmcompany/gorgone/internal/provider"
)

// ValidationError reports a rejected rule mutation: a missing name, an
// interval below the provider floor, or a query spec failing its grammar.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "rule: " + e.Reason
}

// Registry owns rule CRUD and, for push-mirrored kinds, keeps the push
// provider's remote rule in sync with local state.
type Registry struct {
	db     *database.DB
	push   provider.PushAdapter
	logger zerolog.Logger
}

// New builds a Registry. push is the tweet adapter; it is only invoked for
// rules whose Kind.Provider() is models.ProviderTweet.
func New(db *database.DB, push provider.PushAdapter, logger zerolog.Logger) *Registry {
	return &Registry{db: db, push: push, logger: logger.With().Str("component", "rule_registry").Logger()}
}

// List returns every rule registered to a zone.
func (r *Registry) List(ctx context.Context, zoneID uuid.UUID) ([]models.Rule, error) {
	return r.db.ListRules(ctx, zoneID)
}

// Get loads a single rule.
func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*models.Rule, error) {
	return r.db.GetRule(ctx, id)
}

// Create validates and inserts a new rule, mirroring it to the push
// provider first when its kind targets one.
func (r *Registry) Create(ctx context.Context, newRule models.Rule) (models.Rule, error) {
	if newRule.Name == "" {
		return models.Rule{}, &ValidationError{Reason: "name is required"}
	}
	if !newRule.Kind.ValidInterval(newRule.IntervalSeconds) {
		return models.Rule{}, &ValidationError{Reason: fmt.Sprintf(
			"interval_seconds %d below floor or not an allowed step for kind %s", newRule.IntervalSeconds, newRule.Kind)}
	}
	if err := ValidateQuerySpec(newRule.Kind, newRule.QuerySpec); err != nil {
		return models.Rule{}, &ValidationError{Reason: err.Error()}
	}

	newRule.ID = uuid.New()
	if newRule.Kind.Provider() == models.ProviderTweet {
		externalID, err := r.push.CreateRemoteRule(ctx, newRule.Name, newRule.QuerySpec)
		if err != nil {
			return models.Rule{}, fmt.Errorf("rule: remote create failed: %w", err)
		}
		newRule.ExternalRuleID = &externalID
	}

	if err := r.db.CreateRule(ctx, newRule); err != nil {
		return models.Rule{}, err
	}
	return newRule, nil
}

// Update applies a partial patch, mirroring query/interval changes to the
// push provider before committing locally.
func (r *Registry) Update(ctx context.Context, id uuid.UUID, patch models.RulePatch) error {
	existing, err := r.db.GetRule(ctx, id)
	if err != nil {
		return err
	}

	kind := existing.Kind
	interval := existing.IntervalSeconds
	if patch.IntervalSeconds != nil {
		interval = *patch.IntervalSeconds
	}
	if !kind.ValidInterval(interval) {
		return &ValidationError{Reason: fmt.Sprintf(
			"interval_seconds %d below floor or not an allowed step for kind %s", interval, kind)}
	}

	query := existing.QuerySpec
	if patch.QuerySpec != nil {
		query = *patch.QuerySpec
	}
	active := existing.IsActive
	if patch.IsActive != nil {
		active = *patch.IsActive
	}
	if patch.QuerySpec != nil || patch.IntervalSeconds != nil {
		if err := ValidateQuerySpec(kind, query); err != nil {
			return &ValidationError{Reason: err.Error()}
		}
		if kind.Provider() == models.ProviderTweet && existing.ExternalRuleID != nil {
			if err := r.push.UpdateRemoteRule(ctx, *existing.ExternalRuleID, query, interval, active); err != nil {
				return fmt.Errorf("rule: remote update failed: %w", err)
			}
		}
	}

	return r.db.UpdateRule(ctx, id, patch)
}

// Toggle flips a rule's active flag, mirroring the effect to the push
// provider as a remote update.
func (r *Registry) Toggle(ctx context.Context, id uuid.UUID, active bool) error {
	existing, err := r.db.GetRule(ctx, id)
	if err != nil {
		return err
	}
	if existing.Kind.Provider() == models.ProviderTweet && existing.ExternalRuleID != nil {
		if err := r.push.UpdateRemoteRule(ctx, *existing.ExternalRuleID, existing.QuerySpec, existing.IntervalSeconds, active); err != nil {
			r.logger.Warn().Err(err).Str("rule_id", id.String()).Msg("remote toggle mirror failed, proceeding with local state")
		}
	}
	return r.db.ToggleRule(ctx, id, active)
}

// Delete removes a rule, attempting a best-effort remote delete first.
// Local delete always proceeds: a failed remote delete is logged as a
// warning, never blocks the local operation.
func (r *Registry) Delete(ctx context.Context, id uuid.UUID) error {
	existing, err := r.db.GetRule(ctx, id)
	if err != nil {
		return err
	}
	if existing.Kind.Provider() == models.ProviderTweet && existing.ExternalRuleID != nil {
		if err := r.push.DeleteRemoteRule(ctx, *existing.ExternalRuleID); err != nil {
			r.logger.Warn().Err(err).Str("rule_id", id.String()).Msg("remote delete mirror failed, proceeding with local delete")
		}
	}
	return r.db.DeleteRule(ctx, id)
}

// RecordPoll updates a rule's poll bookkeeping after a successful
// poll-tick fetch.
func (r *Registry) RecordPoll(ctx context.Context, id uuid.UUID, itemCount int) error {
	return r.db.RecordPoll(ctx, id, itemCount)
}

// ResolveByExternalID finds the rule owning an inbound webhook's remote
// rule id, used to resolve the zone for a push delivery.
func (r *Registry) ResolveByExternalID(ctx context.Context, externalRuleID string) (*models.Rule, error) {
	return r.db.GetRuleByExternalID(ctx, externalRuleID)
}
