// Package inference abstracts the on-device neural inference backend behind a
// narrow engine/session interface so production and deterministic test
// implementations are interchangeable.
package inference

import (
	"fmt"
	"hash/fnv"
	"math"
)

// Session runs inference for one skill. Implementations must be safe for
// concurrent use; each call's features and result are request-scoped.
type Session interface {
	Run(feats []float64) ([]float64, error)
}

// Engine creates inference sessions. The engine behind the Hub is selected
// at construction: a production engine delegates to a native runtime, the
// mock engine below serves tests and model-free deployments.
type Engine interface {
	NewSession(skillID string) (Session, error)
}

// MockEngine is a deterministic offset-based engine. The output depends only
// on the skill id and the feature vector, which keeps routing, gating, and
// telemetry testable without real model weights.
type MockEngine struct {
	// Offset shifts every output value, letting tests steer confidences.
	Offset float64
}

// NewSession returns a deterministic session for skillID.
func (e *MockEngine) NewSession(skillID string) (Session, error) {
	if skillID == "" {
		return nil, fmt.Errorf("mock engine: empty skill id")
	}
	return &mockSession{skillID: skillID, offset: e.Offset}, nil
}

type mockSession struct {
	skillID string
	offset  float64
}

// Run produces one output value per input slot, each in [0, 1): a hash of
// the skill id seeds the base, every feature contributes a small
// deterministic shift. Output length mirrors the input dimension, matching
// the fixed-length contract of the production runtime.
func (s *mockSession) Run(feats []float64) ([]float64, error) {
	hash := fnv.New32a()
	hash.Write([]byte(s.skillID))
	seed := float64(hash.Sum32()%1000) / 1000.0

	var sum float64
	for _, f := range feats {
		if !math.IsNaN(f) && !math.IsInf(f, 0) {
			sum += f
		}
	}

	out := make([]float64, len(feats))
	for i := range out {
		v := seed + s.offset + 0.01*float64(i) + 0.05*sum
		out[i] = v - math.Floor(v)
	}
	return out, nil
}

// FailingEngine returns sessions whose Run always fails. Used to exercise
// the router's error boundary.
type FailingEngine struct {
	Err error
}

// NewSession returns a session that fails on every Run call.
func (e *FailingEngine) NewSession(skillID string) (Session, error) {
	err := e.Err
	if err == nil {
		err = fmt.Errorf("inference unavailable")
	}
	return failingSession{err: err}, nil
}

type failingSession struct {
	err error
}

func (s failingSession) Run([]float64) ([]float64, error) {
	return nil, s.err
}
