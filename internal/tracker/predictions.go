// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package tracker

import (
	"math"
	"time"

	"github.com/lkmcompany/gorgone/internal/models"
)

// ModelTag identifies the prediction model version stored on Predictions.
const ModelTag = "velocity_linear_v1"

// metricAccessors pulls one counter field out of a Counters value, keyed
// by the metric names stored in the predictions blob.
var metricAccessors = map[string]func(models.Counters) int64{
	"like":    func(c models.Counters) int64 { return c.Like },
	"share":   func(c models.Counters) int64 { return c.Share },
	"comment": func(c models.Counters) int64 { return c.Comment },
	"quote":   func(c models.Counters) int64 { return c.Quote },
	"view":    func(c models.Counters) int64 { return c.View },
}

// ComputePredictions builds velocity-linear extrapolations for like,
// share, comment, quote, and view from a chronologically ordered snapshot
// history. Callers only invoke this once
// update_count >= 2.
func ComputePredictions(snapshots []models.EngagementSnapshot, now time.Time) models.Predictions {
	metrics := make(map[string]models.MetricPrediction, len(metricAccessors))
	for name, get := range metricAccessors {
		metrics[name] = predictMetric(snapshots, get)
	}

	return models.Predictions{
		ModelTag:   ModelTag,
		Confidence: math.Min(0.9, float64(len(snapshots))/6.0),
		ComputedAt: now,
		Metrics:    metrics,
	}
}

// predictMetric computes a per-hour velocity by summing pairwise deltas
// over pairwise elapsed hours across the whole history, then extrapolates
// p1h/p2h/p3h as max(current, current + velocity*h) so a decelerating
// metric never predicts backward.
func predictMetric(snapshots []models.EngagementSnapshot, get func(models.Counters) int64) models.MetricPrediction {
	if len(snapshots) == 0 {
		return models.MetricPrediction{}
	}
	current := get(snapshots[len(snapshots)-1].Counters)

	var deltaSum float64
	var hoursSum float64
	for i := 1; i < len(snapshots); i++ {
		prev, cur := snapshots[i-1], snapshots[i]
		elapsedHours := cur.SnapshotAt.Sub(prev.SnapshotAt).Hours()
		if elapsedHours <= 0 {
			continue
		}
		delta := get(cur.Counters) - get(prev.Counters)
		if delta < 0 {
			delta = 0
		}
		deltaSum += float64(delta)
		hoursSum += elapsedHours
	}

	var velocityPerHour float64
	if hoursSum > 0 {
		velocityPerHour = deltaSum / hoursSum
	}

	return models.MetricPrediction{
		Current:         current,
		VelocityPerHour: velocityPerHour,
		P1h:             extrapolate(current, velocityPerHour, 1),
		P2h:             extrapolate(current, velocityPerHour, 2),
		P3h:             extrapolate(current, velocityPerHour, 3),
	}
}

func extrapolate(current int64, velocityPerHour float64, hours float64) int64 {
	projected := float64(current) + velocityPerHour*hours
	if projected < float64(current) {
		return current
	}
	return int64(math.Round(projected))
}
