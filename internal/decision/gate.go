// Package decision applies confidence-gated decision logic to inference
// output: per-skill sigma thresholds, calibration toward measured accuracy,
// and mandatory disclaimers for regulated skill namespaces.
package decision

import (
	"math"
	"strings"
)

// Action is the closed set of gate outcomes.
type Action string

const (
	// ActionProceed lets the skill act autonomously.
	ActionProceed Action = "proceed"
	// ActionAsk requests clarification from the user instead.
	ActionAsk Action = "ask"
)

// Metadata keys recorded on decisions.
const (
	MetaSigmaGate   = "sigma_gate"
	MetaDisclaimer  = "disclaimer_added"
	MetaSafetyPass  = "safety_pass"
	MetaCalibBucket = "calibration_bucket"
)

// healthNamespacePrefix designates regulated health skills.
const healthNamespacePrefix = "hc_"

// DefaultMedicalDisclaimer is appended to every regulated-health decision.
const DefaultMedicalDisclaimer = "This information is general guidance and not a substitute for professional medical advice. Consult a qualified clinician for diagnosis or treatment."

// Decision is the gate's output for one skill invocation.
type Decision struct {
	Action               Action
	Message              string
	Confidence           float64
	CalibratedConfidence float64
	Metadata             map[string]any
}

// Config configures the gate. The calibration table is externally supplied
// configuration, re-derived periodically from measured accuracy, never a
// hard-coded constant.
type Config struct {
	// Gates maps skill id to its sigma-gate threshold.
	Gates map[string]float64
	// DefaultGate applies to skills without a configured threshold.
	DefaultGate float64
	// SafetyGate is the stricter threshold applied to calibrated confidence.
	SafetyGate float64
	// Calibration holds the measured accuracy per fixed-width confidence
	// bucket: [0,0.2), [0.2,0.4), [0.4,0.6), [0.6,0.8), [0.8,1.0].
	Calibration [5]float64
	// Disclaimer overrides the regulated-health disclaimer text.
	Disclaimer string
}

// DefaultConfig returns the gate defaults. The calibration values are
// illustrative placeholders until replaced by measured data.
func DefaultConfig() Config {
	return Config{
		DefaultGate: 0.7,
		SafetyGate:  0.8,
		Calibration: [5]float64{0.10, 0.30, 0.52, 0.71, 0.88},
		Disclaimer:  DefaultMedicalDisclaimer,
	}
}

// Gate evaluates confidences against per-skill thresholds.
type Gate struct {
	config Config
}

// NewGate creates a gate. Zero-valued config fields fall back to defaults.
func NewGate(config Config) *Gate {
	defaults := DefaultConfig()
	if config.DefaultGate <= 0 {
		config.DefaultGate = defaults.DefaultGate
	}
	if config.SafetyGate <= 0 {
		config.SafetyGate = defaults.SafetyGate
	}
	if config.Calibration == ([5]float64{}) {
		config.Calibration = defaults.Calibration
	}
	if strings.TrimSpace(config.Disclaimer) == "" {
		config.Disclaimer = defaults.Disclaimer
	}
	return &Gate{config: config}
}

// Threshold returns the effective sigma gate for a skill.
func (g *Gate) Threshold(skillID string) float64 {
	if t, ok := g.config.Gates[skillID]; ok && t > 0 {
		return t
	}
	return g.config.DefaultGate
}

// Calibrate maps raw confidence into its fixed-width bucket and returns the
// configured measured accuracy for that bucket. Every raw value inside one
// bucket maps to the same calibrated value.
func (g *Gate) Calibrate(raw float64) float64 {
	return g.config.Calibration[bucketIndex(raw)]
}

func bucketIndex(raw float64) int {
	if math.IsNaN(raw) || raw < 0 {
		return 0
	}
	// Multiply rather than divide by the bucket width: 0.2 has no exact
	// binary representation and raw/0.2 drops 0.6 into the wrong bucket.
	idx := int(raw * 5)
	if idx > 4 {
		idx = 4
	}
	return idx
}

// Decide gates rawConfidence for a skill. The boundary is inclusive toward
// proceed: confidence equal to the threshold proceeds. The calibrated value,
// not the raw one, is checked against the stricter safety gate.
func (g *Gate) Decide(skillID string, rawConfidence float64, baseMessage string) Decision {
	threshold := g.Threshold(skillID)
	calibrated := g.Calibrate(rawConfidence)

	action := ActionAsk
	if rawConfidence >= threshold {
		action = ActionProceed
	}

	meta := make(map[string]any)
	meta[MetaCalibBucket] = bucketIndex(rawConfidence)
	meta[MetaSafetyPass] = calibrated >= g.config.SafetyGate

	message := g.Decorate(skillID, meta, baseMessage, threshold)

	return Decision{
		Action:               action,
		Message:              message,
		Confidence:           rawConfidence,
		CalibratedConfidence: calibrated,
		Metadata:             meta,
	}
}

// Decorate applies regulated-namespace decoration to message and meta. It is
// idempotent: re-running over already decorated metadata appends no second
// disclaimer and never overwrites a previously recorded gate value.
func (g *Gate) Decorate(skillID string, meta map[string]any, message string, threshold float64) string {
	if _, recorded := meta[MetaSigmaGate]; !recorded {
		meta[MetaSigmaGate] = threshold
	}

	if !IsRegulated(skillID) {
		return message
	}
	if added, _ := meta[MetaDisclaimer].(bool); added {
		return message
	}
	meta[MetaDisclaimer] = true
	if message == "" {
		return g.config.Disclaimer
	}
	return message + "\n\n" + g.config.Disclaimer
}

// IsRegulated reports whether the skill id falls in the regulated-health
// namespace.
func IsRegulated(skillID string) bool {
	return strings.HasPrefix(skillID, healthNamespacePrefix)
}
