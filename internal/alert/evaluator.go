// Package alert decides whether a sensor reading violates the configured
// thresholds and, if so, records a durable alert for the dispatcher.
package alert

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Rachid0903/PFE-Project/internal/domain"
	"github.com/Rachid0903/PFE-Project/internal/metrics"
	"github.com/Rachid0903/PFE-Project/internal/repo"
)

type Evaluator struct {
	policies repo.PolicyStore
	alerts   repo.AlertStore
	log      *zap.Logger

	// last alert creation per (sensor, metric), for cooldown suppression
	mu   sync.Mutex
	last map[string]time.Time

	now func() time.Time // injected for tests
}

func NewEvaluator(policies repo.PolicyStore, alerts repo.AlertStore, log *zap.Logger) *Evaluator {
	return &Evaluator{
		policies: policies,
		alerts:   alerts,
		log:      log,
		last:     make(map[string]time.Time),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate checks one reading value against the current policy. It returns
// the stored alert on a violation, or nil when there is nothing to do.
// Boundary values are in range: only strict inequality violates.
func (e *Evaluator) Evaluate(ctx context.Context, sensorID string, metric domain.Metric, value float64) (*domain.Alert, error) {
	// NaN/Inf readings come from flaky sensors; never alert on them
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, nil
	}

	policy, err := e.policies.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	if !policy.Enabled {
		return nil, nil
	}

	rng, ok := policy.Thresholds[metric]
	if !ok {
		return nil, nil
	}

	var (
		threshold float64
		message   string
	)
	switch {
	case value < rng.Min:
		threshold = rng.Min
		message = fmt.Sprintf("%s too low: %v", metric, value)
	case value > rng.Max:
		threshold = rng.Max
		message = fmt.Sprintf("%s too high: %v", metric, value)
	default:
		return nil, nil
	}

	now := e.now()
	if e.inCooldown(sensorID, metric, now, policy.CooldownMinutes) {
		e.log.Debug("alert_suppressed_cooldown",
			zap.String("sensor_id", sensorID),
			zap.String("metric", string(metric)),
			zap.Float64("value", value),
		)
		return nil, nil
	}

	a := &domain.Alert{
		SensorID:  sensorID,
		Metric:    metric,
		Value:     value,
		Threshold: threshold,
		Message:   message,
		CreatedAt: now,
		Sent:      false,
	}
	if dest, ok := policy.PrimaryDestination(); ok {
		a.Destination = dest
	}

	if _, err := e.alerts.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create alert: %w", err)
	}
	e.markCreated(sensorID, metric, now)
	metrics.AlertsCreatedTotal.WithLabelValues(string(metric)).Inc()

	e.log.Info("alert_created",
		zap.String("id", string(a.ID)),
		zap.String("sensor_id", sensorID),
		zap.String("metric", string(metric)),
		zap.Float64("value", value),
		zap.Float64("threshold", threshold),
	)
	return a, nil
}

// EvaluateReading runs Evaluate for every metric present on the reading and
// returns the alerts that were created. A store failure on one metric does
// not stop the others.
func (e *Evaluator) EvaluateReading(ctx context.Context, r domain.Reading) []domain.Alert {
	var out []domain.Alert
	for metric, value := range r.Metrics() {
		a, err := e.Evaluate(ctx, r.SensorID, metric, value)
		if err != nil {
			e.log.Warn("evaluate_failed",
				zap.String("sensor_id", r.SensorID),
				zap.String("metric", string(metric)),
				zap.Error(err),
			)
			continue
		}
		if a != nil {
			out = append(out, *a)
		}
	}
	return out
}

func (e *Evaluator) inCooldown(sensorID string, metric domain.Metric, now time.Time, cooldownMin int) bool {
	if cooldownMin <= 0 {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	at, ok := e.last[cooldownKey(sensorID, metric)]
	return ok && now.Sub(at) < time.Duration(cooldownMin)*time.Minute
}

func (e *Evaluator) markCreated(sensorID string, metric domain.Metric, now time.Time) {
	e.mu.Lock()
	e.last[cooldownKey(sensorID, metric)] = now
	e.mu.Unlock()
}

func cooldownKey(sensorID string, metric domain.Metric) string {
	return sensorID + "/" + string(metric)
}
