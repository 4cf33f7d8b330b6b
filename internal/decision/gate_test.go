package decision

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigmaGateInclusiveBoundary(t *testing.T) {
	t.Parallel()

	gate := NewGate(Config{DefaultGate: 0.7})

	proceed := gate.Decide("retail_helper", 0.7, "ok")
	assert.Equal(t, ActionProceed, proceed.Action, "confidence equal to the gate proceeds")

	ask := gate.Decide("retail_helper", 0.6999, "ok")
	assert.Equal(t, ActionAsk, ask.Action)
}

func TestPerSkillThresholdOverridesDefault(t *testing.T) {
	t.Parallel()

	gate := NewGate(Config{
		DefaultGate: 0.7,
		Gates:       map[string]float64{"cautious_skill": 0.9},
	})

	assert.Equal(t, 0.9, gate.Threshold("cautious_skill"))
	assert.Equal(t, 0.7, gate.Threshold("anything_else"))
	assert.Equal(t, ActionAsk, gate.Decide("cautious_skill", 0.85, "").Action)
	assert.Equal(t, ActionProceed, gate.Decide("anything_else", 0.85, "").Action)
}

func TestCalibrationBucketsAreFlat(t *testing.T) {
	t.Parallel()

	gate := NewGate(Config{Calibration: [5]float64{0.1, 0.3, 0.5, 0.7, 0.9}})

	// Every raw value inside the very-high bucket maps to the same accuracy.
	for _, raw := range []float64{0.80, 0.85, 0.9999} {
		assert.Equal(t, 0.9, gate.Calibrate(raw), "raw=%v", raw)
	}

	assert.Equal(t, 0.1, gate.Calibrate(0.0))
	assert.Equal(t, 0.1, gate.Calibrate(0.19))
	assert.Equal(t, 0.3, gate.Calibrate(0.2))
	assert.Equal(t, 0.7, gate.Calibrate(0.79))
	assert.Equal(t, 0.9, gate.Calibrate(1.0))
	assert.Equal(t, 0.9, gate.Calibrate(1.5), "out-of-range raw clamps to top bucket")
	assert.Equal(t, 0.1, gate.Calibrate(-0.5), "negative raw clamps to bottom bucket")
}

func TestCalibrationInteriorBoundaries(t *testing.T) {
	t.Parallel()

	gate := NewGate(Config{Calibration: [5]float64{0.1, 0.3, 0.5, 0.7, 0.9}})

	// Each boundary value belongs to the bucket it opens. 0.6 is the
	// float-hostile case: 0.6/0.2 rounds below 3, so the index must not be
	// computed by dividing by the bucket width.
	cases := []struct {
		raw  float64
		want float64
	}{
		{0.2, 0.3},
		{0.4, 0.5},
		{0.6, 0.7},
		{0.8, 0.9},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, gate.Calibrate(tc.raw), "raw=%v", tc.raw)
	}
}

func TestSafetyGateUsesCalibratedValue(t *testing.T) {
	t.Parallel()

	gate := NewGate(Config{
		SafetyGate:  0.8,
		Calibration: [5]float64{0.1, 0.3, 0.5, 0.6, 0.88},
	})

	// Raw 0.75 looks confident but calibrates to 0.6, below the safety gate.
	d := gate.Decide("hc_med_sentinel", 0.75, "dose reminder")
	assert.Equal(t, 0.6, d.CalibratedConfidence)
	assert.Equal(t, false, d.Metadata[MetaSafetyPass])

	d = gate.Decide("hc_med_sentinel", 0.9, "dose reminder")
	assert.Equal(t, 0.88, d.CalibratedConfidence)
	assert.Equal(t, true, d.Metadata[MetaSafetyPass])
}

func TestMedSentinelScenario(t *testing.T) {
	t.Parallel()

	gate := NewGate(Config{
		Gates: map[string]float64{"hc_med_sentinel": 0.75},
	})

	ask := gate.Decide("hc_med_sentinel", 0.60, "take with food")
	assert.Equal(t, ActionAsk, ask.Action)

	proceed := gate.Decide("hc_med_sentinel", 0.80, "take with food")
	assert.Equal(t, ActionProceed, proceed.Action)
	require.Equal(t, 1, strings.Count(proceed.Message, DefaultMedicalDisclaimer),
		"medical disclaimer appears exactly once")
}

func TestDisclaimerIdempotent(t *testing.T) {
	t.Parallel()

	gate := NewGate(Config{})
	d := gate.Decide("hc_med_sentinel", 0.9, "hydrate regularly")

	require.Equal(t, 1, strings.Count(d.Message, DefaultMedicalDisclaimer))
	assert.Equal(t, true, d.Metadata[MetaDisclaimer])
	recordedGate := d.Metadata[MetaSigmaGate]

	// Re-running decision logic over the same accumulated metadata must not
	// duplicate the disclaimer or overwrite the recorded gate.
	again := gate.Decorate("hc_med_sentinel", d.Metadata, d.Message, 0.99)
	assert.Equal(t, d.Message, again)
	assert.Equal(t, recordedGate, d.Metadata[MetaSigmaGate])
	assert.Equal(t, 1, strings.Count(again, DefaultMedicalDisclaimer))
}

func TestUnregulatedSkillGetsNoDisclaimer(t *testing.T) {
	t.Parallel()

	gate := NewGate(Config{})
	d := gate.Decide("retail_helper", 0.9, "order placed")
	assert.NotContains(t, d.Message, DefaultMedicalDisclaimer)
	_, present := d.Metadata[MetaDisclaimer]
	assert.False(t, present)
}

func TestDisclaimerOnEmptyMessage(t *testing.T) {
	t.Parallel()

	gate := NewGate(Config{})
	d := gate.Decide("hc_checkin", 0.9, "")
	assert.Equal(t, DefaultMedicalDisclaimer, d.Message)
}

func TestIsRegulated(t *testing.T) {
	t.Parallel()

	assert.True(t, IsRegulated("hc_med_sentinel"))
	assert.False(t, IsRegulated("retail_helper"))
	assert.False(t, IsRegulated("healthish"))
}
