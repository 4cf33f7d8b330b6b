package inference

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aria/internal/errors"
	"aria/internal/registry"
)

// countingEngine tracks session creations per skill id.
type countingEngine struct {
	created atomic.Int64
}

func (e *countingEngine) NewSession(skillID string) (Session, error) {
	e.created.Add(1)
	return (&MockEngine{}).NewSession(skillID)
}

func newTestHub(t *testing.T, engine Engine, config Config) *Hub {
	t.Helper()
	hub, err := NewHub(engine, config, nil, nil)
	require.NoError(t, err)
	return hub
}

func TestMockEngineDeterministic(t *testing.T) {
	t.Parallel()

	engine := &MockEngine{}
	session, err := engine.NewSession("retail_helper")
	require.NoError(t, err)

	feats := []float64{0.1, 0.2, 0.3}
	first, err := session.Run(feats)
	require.NoError(t, err)
	second, err := session.Run(feats)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, len(feats))
	for _, v := range first {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}

	other, err := engine.NewSession("travel_planner")
	require.NoError(t, err)
	otherOut, err := other.Run(feats)
	require.NoError(t, err)
	assert.NotEqual(t, first, otherOut, "different skills produce different outputs")
}

func TestConcurrentFirstUseCreatesOneSession(t *testing.T) {
	t.Parallel()

	engine := &countingEngine{}
	hub := newTestHub(t, engine, Config{InputDim: 8})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := hub.Run("retail_helper", []float64{0.5})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), engine.created.Load(), "exactly one session per skill id")
	assert.Equal(t, 1, hub.SessionCount())
}

func TestDropSessionForcesRecreation(t *testing.T) {
	t.Parallel()

	engine := &countingEngine{}
	hub := newTestHub(t, engine, Config{InputDim: 8})

	_, err := hub.Run("retail_helper", []float64{0.5})
	require.NoError(t, err)
	hub.DropSession("retail_helper")
	_, err = hub.Run("retail_helper", []float64{0.5})
	require.NoError(t, err)

	assert.Equal(t, int64(2), engine.created.Load())
}

func TestEndpointSetIdempotent(t *testing.T) {
	t.Parallel()

	hub := newTestHub(t, &MockEngine{}, Config{})

	hub.Connect("edge-1")
	hub.Connect("edge-1")
	hub.Connect("edge-2")
	assert.True(t, hub.IsConnected("edge-1"))
	assert.Equal(t, []string{"edge-1", "edge-2"}, hub.Endpoints())

	hub.Disconnect("edge-1")
	hub.Disconnect("edge-1")
	assert.False(t, hub.IsConnected("edge-1"))
	assert.Equal(t, []string{"edge-2"}, hub.Endpoints())
}

func TestInitFromEmbeddedManifest(t *testing.T) {
	t.Parallel()

	hub := newTestHub(t, &MockEngine{}, Config{})
	reg := registry.New()
	require.NoError(t, hub.Init(reg))

	skills := reg.ListSkills()
	assert.Contains(t, skills, "retail_helper")
	assert.Contains(t, skills, "hc_med_sentinel")
	assert.Equal(t, []string{"retail_helper"}, reg.ByTrigger("price check"))
}

func TestInitFromExplicitPath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "skills.yaml")
	doc := "skills:\n  - id: custom_skill\n    builder: energy\n    trigger: usage report\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	hub := newTestHub(t, &MockEngine{}, Config{ManifestPath: path})
	reg := registry.New()
	require.NoError(t, hub.Init(reg))

	assert.Equal(t, []string{"custom_skill"}, reg.ListSkills())
}

func TestInitUnknownBuilderFailsFast(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "skills.yaml")
	doc := "skills:\n  - id: bad_skill\n    builder: astrology\n    trigger: read stars\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	hub := newTestHub(t, &MockEngine{}, Config{ManifestPath: path})
	err := hub.Init(registry.New())
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
	assert.Contains(t, err.Error(), "astrology")
}

func TestInitMissingExplicitPathIsConfigError(t *testing.T) {
	t.Parallel()

	hub := newTestHub(t, &MockEngine{}, Config{ManifestPath: filepath.Join(t.TempDir(), "absent.yaml")})
	err := hub.Init(registry.New())
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestFailingEngine(t *testing.T) {
	t.Parallel()

	hub := newTestHub(t, &FailingEngine{Err: fmt.Errorf("model load failed")}, Config{})
	_, err := hub.Run("retail_helper", []float64{0.1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model load failed")
}
