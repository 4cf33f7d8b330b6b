package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aria/internal/errors"
	"aria/internal/features"
)

func newTestRegistration(id string, triggers ...string) *Registration {
	return &Registration{
		Definition: Definition{ID: id, Triggers: triggers, Builder: "retail"},
		Build:      features.BuildRetail,
		Run: func(feats []float64) ([]float64, error) {
			return feats, nil
		},
	}
}

func TestRegisterNormalizesTriggers(t *testing.T) {
	t.Parallel()

	reg := New()
	reg.Register(newTestRegistration("retail_helper", "  Price Check ", "order status"))

	assert.Equal(t, []string{"retail_helper"}, reg.ByTrigger("price check"))
	assert.Equal(t, []string{"retail_helper"}, reg.ByTrigger("PRICE CHECK"))
	assert.Equal(t, []string{"retail_helper"}, reg.ByTrigger("  order status "))
}

func TestSharedTriggers(t *testing.T) {
	t.Parallel()

	reg := New()
	reg.Register(newTestRegistration("retail_helper", "price check"))
	reg.Register(newTestRegistration("finance_advisor", "price check"))

	assert.Equal(t, []string{"finance_advisor", "retail_helper"}, reg.ByTrigger("price check"))
}

func TestUnregisterRemovesAllTriggerEntries(t *testing.T) {
	t.Parallel()

	reg := New()
	reg.Register(newTestRegistration("retail_helper", "price check", "order status"))
	reg.Register(newTestRegistration("finance_advisor", "price check"))

	require.True(t, reg.Unregister("retail_helper"))

	// Shared trigger keeps the surviving id; exclusive trigger is deleted
	// outright rather than left with an empty set.
	assert.Equal(t, []string{"finance_advisor"}, reg.ByTrigger("price check"))
	assert.Empty(t, reg.ByTrigger("order status"))
	assert.Equal(t, 1, reg.TriggerCount())

	assert.Equal(t, []string{"finance_advisor"}, reg.ListSkills())
	assert.False(t, reg.Unregister("retail_helper"), "second unregister should report missing")
}

func TestReplaceRegistrationDropsStaleTriggers(t *testing.T) {
	t.Parallel()

	reg := New()
	reg.Register(newTestRegistration("retail_helper", "price check"))
	reg.Register(newTestRegistration("retail_helper", "order status"))

	assert.Empty(t, reg.ByTrigger("price check"))
	assert.Equal(t, []string{"retail_helper"}, reg.ByTrigger("order status"))
	assert.Equal(t, []string{"retail_helper"}, reg.ListSkills())
}

func TestListSkillsMatchesRegisteredSet(t *testing.T) {
	t.Parallel()

	reg := New()
	assert.Empty(t, reg.ListSkills())

	reg.Register(newTestRegistration("a", "t1"))
	reg.Register(newTestRegistration("b", "t2"))
	assert.Equal(t, []string{"a", "b"}, reg.ListSkills())

	reg.Unregister("a")
	assert.Equal(t, []string{"b"}, reg.ListSkills())
}

func TestParseManifestTriggerForms(t *testing.T) {
	t.Parallel()

	doc := `
skills:
  - id: a
    builder: retail
    triggers: ["Price Check", "price check", "order status"]
  - id: b
    builder: travel
    trigger_phrases: ["plan a trip"]
  - id: c
    builder: finance
    trigger: "budget review"
`
	manifest, err := ParseManifest([]byte(doc))
	require.NoError(t, err)
	require.Len(t, manifest.Skills, 3)

	assert.Equal(t, []string{"price check", "order status"}, manifest.Skills[0].TriggerSet())
	assert.Equal(t, []string{"plan a trip"}, manifest.Skills[1].TriggerSet())
	assert.Equal(t, []string{"budget review"}, manifest.Skills[2].TriggerSet())
}

func TestParseManifestRejectsBadEntries(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"missing id":      "skills:\n  - builder: retail\n    trigger: x\n",
		"missing builder": "skills:\n  - id: a\n    trigger: x\n",
		"no triggers":     "skills:\n  - id: a\n    builder: retail\n",
		"duplicate id":    "skills:\n  - id: a\n    builder: retail\n    trigger: x\n  - id: a\n    builder: travel\n    trigger: y\n",
		"empty doc":       "skills: []\n",
		"not yaml":        "{{{{",
	}

	for name, doc := range cases {
		_, err := ParseManifest([]byte(doc))
		require.Error(t, err, name)
		assert.True(t, errors.IsConfig(err), "%s should be a config error", name)
	}
}
