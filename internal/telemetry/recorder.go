// Package telemetry records sampled, durable runtime events. Recording never
// fails the hot path: persistence errors are logged and dropped.
package telemetry

import (
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"aria/internal/logging"
)

// Rule maps an event-name prefix to a sampling rate in [0, 1].
type Rule struct {
	Prefix string
	Rate   float64
}

// Config configures the recorder.
type Config struct {
	// Rules are matched by longest name-prefix.
	Rules []Rule
	// DefaultRate applies to event names no rule matches.
	DefaultRate float64
	// Seed seeds the sampling draw for deterministic tests; 0 uses the clock.
	Seed int64
}

// Recorder samples and persists telemetry events.
type Recorder struct {
	journal *Journal
	rules   []Rule // sorted longest prefix first
	rate    float64
	logger  logging.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRecorder creates a recorder appending to journal.
func NewRecorder(journal *Journal, config Config, logger logging.Logger) *Recorder {
	rules := append([]Rule(nil), config.Rules...)
	sort.SliceStable(rules, func(i, j int) bool {
		return len(rules[i].Prefix) > len(rules[j].Prefix)
	})

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Recorder{
		journal: journal,
		rules:   rules,
		rate:    clampRate(config.DefaultRate),
		logger:  logging.OrNop(logger),
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Record samples the event and appends it when selected. It never returns an
// error; telemetry failures are isolated from the caller.
func (r *Recorder) Record(event string, metrics map[string]float64, attributes map[string]any) {
	if r == nil || r.journal == nil {
		return
	}
	if !r.sample(event) {
		return
	}

	err := r.journal.Append(Event{
		Timestamp:  time.Now().UTC(),
		Name:       event,
		Metrics:    metrics,
		Attributes: attributes,
	})
	if err != nil {
		r.logger.Warn("Telemetry append failed for %s: %v", event, err)
	}
}

// sample decides whether the named event persists. Rate 0 and rate 1 skip
// the random draw entirely so both extremes are deterministic.
func (r *Recorder) sample(event string) bool {
	rate := r.rateFor(event)
	switch {
	case rate <= 0:
		return false
	case rate >= 1:
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64() < rate
}

// rateFor returns the rate of the longest matching prefix rule, or the
// default rate when none match.
func (r *Recorder) rateFor(event string) float64 {
	for _, rule := range r.rules {
		if strings.HasPrefix(event, rule.Prefix) {
			return clampRate(rule.Rate)
		}
	}
	return r.rate
}

func clampRate(rate float64) float64 {
	if rate < 0 {
		return 0
	}
	if rate > 1 {
		return 1
	}
	return rate
}

// Event names emitted by the convenience recorders.
const (
	EventRouteSuccess = "route.success"
	EventRouteFailure = "route.failure"
	EventGeneration   = "generation.perf"
	EventFunnel       = "funnel.stage"
)

// RecordRoute records a routing outcome with paired success/failure counters.
func (r *Recorder) RecordRoute(skillID string, success bool, errText string) {
	name := EventRouteSuccess
	successCount, failureCount := 1.0, 0.0
	if !success {
		name = EventRouteFailure
		successCount, failureCount = 0, 1
	}

	attributes := map[string]any{
		"skill_id": skillID,
		"outcome":  name,
	}
	if errText != "" {
		attributes["error"] = errText
	} else {
		attributes["error"] = nil
	}

	r.Record(name, map[string]float64{
		"success": successCount,
		"failure": failureCount,
	}, attributes)
}

// RecordGeneration records output-generation performance.
func (r *Recorder) RecordGeneration(duration time.Duration, units int, success bool) {
	successCount := 0.0
	if success {
		successCount = 1
	}
	r.Record(EventGeneration, map[string]float64{
		"duration_ms": float64(duration.Milliseconds()),
		"units":       float64(units),
		"success":     successCount,
	}, nil)
}

// RecordFunnel records a named stage of a multi-stage funnel.
func (r *Recorder) RecordFunnel(stage string, attributes map[string]any) {
	merged := map[string]any{"stage": stage}
	for k, v := range attributes {
		merged[k] = v
	}
	r.Record(EventFunnel, nil, merged)
}
