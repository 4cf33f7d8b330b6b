// Package router composes the skill registry, inference hub, and telemetry
// recorder into one total dispatch call. It is the enforcement point
// guaranteeing that a misbehaving skill never propagates an unhandled fault.
package router

import (
	"context"
	"fmt"
	"time"

	"aria/internal/errors"
	"aria/internal/features"
	"aria/internal/logging"
	"aria/internal/observability"
	"aria/internal/registry"
	"aria/internal/telemetry"
)

// Result is the closed outcome of one routing call: a success carrying the
// inference output, or a failure carrying a typed error. A Result is always
// one or the other, never both.
type Result struct {
	SkillID  string
	Features features.Vector
	output   []float64
	err      error
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.err == nil
}

// Value returns the inference output; nil on failure.
func (r Result) Value() []float64 {
	return r.output
}

// Err returns the typed failure; nil on success.
func (r Result) Err() error {
	return r.err
}

// Router dispatches skill requests.
type Router struct {
	registry *registry.Registry
	logger   logging.Logger
	recorder *telemetry.Recorder
	metrics  *observability.MetricsCollector
	inputDim int
}

// New creates a router over an already-populated registry. inputDim controls
// the feature vector length handed to builders.
func New(reg *registry.Registry, inputDim int, recorder *telemetry.Recorder, metrics *observability.MetricsCollector, logger logging.Logger) *Router {
	if inputDim <= 0 {
		inputDim = features.DefaultInputDim
	}
	return &Router{
		registry: reg,
		inputDim: inputDim,
		recorder: recorder,
		metrics:  metrics,
		logger:   logging.OrNop(logger),
	}
}

// Route dispatches one skill call: build features, then run inference, in
// strict sequence, with either step's failure short-circuiting the other.
// Route is total: unknown ids yield a not-found failure and any error or
// panic from a skill is converted to a typed failure and telemetry-logged.
func (r *Router) Route(ctx context.Context, skillID string, payload features.Payload) Result {
	ctx = observability.ContextWithSkillID(ctx, skillID)
	start := time.Now()
	result := r.route(ctx, skillID, payload)

	if result.OK() {
		r.recorder.RecordRoute(skillID, true, "")
	} else {
		r.recorder.RecordRoute(skillID, false, result.Err().Error())
		r.logger.Warn("Route %s failed: %v", skillID, result.Err())
	}
	r.metrics.RecordRoute(ctx, skillID, result.OK(), time.Since(start))

	return result
}

func (r *Router) route(ctx context.Context, skillID string, payload features.Payload) (result Result) {
	result.SkillID = skillID

	// A panicking builder or backend is converted at this boundary; nothing
	// escapes to the caller.
	defer func() {
		if rec := recover(); rec != nil {
			result.output = nil
			result.err = errors.NewInferenceError(skillID, "inference", fmt.Errorf("panic: %v", rec))
		}
	}()

	if err := ctx.Err(); err != nil {
		result.err = errors.NewInferenceError(skillID, "inference", err)
		return result
	}

	reg, ok := r.registry.Lookup(skillID)
	if !ok {
		result.err = errors.NewSkillNotFound(skillID)
		return result
	}

	feats := reg.Build(payload, r.inputDim)
	result.Features = feats

	output, err := reg.Run(feats)
	if err != nil {
		result.err = errors.NewInferenceError(skillID, "inference", err)
		return result
	}

	result.output = output
	return result
}

// RouteAll dispatches several skills over the same payload. Per-skill
// failures are isolated: one failing skill never aborts the batch.
func (r *Router) RouteAll(ctx context.Context, skillIDs []string, payload features.Payload) []Result {
	results := make([]Result, 0, len(skillIDs))
	for _, skillID := range skillIDs {
		results = append(results, r.Route(ctx, skillID, payload))
	}
	return results
}

// RouteTrigger resolves a trigger phrase to its skill set and dispatches each
// match. An unknown trigger yields a single not-found failure.
func (r *Router) RouteTrigger(ctx context.Context, phrase string, payload features.Payload) []Result {
	ids := r.registry.ByTrigger(phrase)
	if len(ids) == 0 {
		return []Result{{SkillID: "", err: errors.NewTriggerNotFound(phrase)}}
	}
	return r.RouteAll(ctx, ids, payload)
}
