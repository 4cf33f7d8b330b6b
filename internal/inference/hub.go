package inference

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"aria/internal/errors"
	"aria/internal/features"
	"aria/internal/logging"
	"aria/internal/observability"
	"aria/internal/registry"
)

//go:embed manifest/skills.yaml
var embeddedManifest []byte

const defaultSessionCacheSize = 128

// codeAdjacentManifest is the manifest filename probed next to the executable.
const codeAdjacentManifest = "skills.yaml"

// Config configures the Hub.
type Config struct {
	// ManifestPath is an explicit manifest location; empty means rely on
	// the fallback chain (code-adjacent file, then embedded default).
	ManifestPath string
	// InputDim is the feature vector length handed to sessions.
	InputDim int
	// SessionCacheSize bounds the lazy id→session cache.
	SessionCacheSize int
}

// Hub owns the inference engine, a lazily populated id→session cache, and
// the set of connected remote endpoints for hybrid deployments.
type Hub struct {
	engine   Engine
	config   Config
	logger   logging.Logger
	metrics  *observability.MetricsCollector
	sessions *lru.Cache[string, Session]
	creating singleflight.Group

	mu        sync.Mutex
	endpoints map[string]struct{}
}

// NewHub creates a hub around the given engine.
func NewHub(engine Engine, config Config, logger logging.Logger, metrics *observability.MetricsCollector) (*Hub, error) {
	if engine == nil {
		return nil, errors.NewConfigError("inference engine required", nil)
	}
	if config.InputDim <= 0 {
		config.InputDim = features.DefaultInputDim
	}
	size := config.SessionCacheSize
	if size <= 0 {
		size = defaultSessionCacheSize
	}
	sessions, err := lru.New[string, Session](size)
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	return &Hub{
		engine:    engine,
		config:    config,
		logger:    logging.OrNop(logger),
		metrics:   metrics,
		sessions:  sessions,
		endpoints: make(map[string]struct{}),
	}, nil
}

// InputDim returns the configured feature vector length.
func (h *Hub) InputDim() int {
	return h.config.InputDim
}

// Init loads the skill manifest from the first available source and registers
// every entry into reg, pairing its feature builder with a lazy session
// runner. An unknown builder name fails fast as a configuration error.
func (h *Hub) Init(reg *registry.Registry) error {
	if reg == nil {
		return errors.NewConfigError("registry required", nil)
	}

	data, source, err := h.loadManifestBytes()
	if err != nil {
		return err
	}

	manifest, err := registry.ParseManifest(data)
	if err != nil {
		return err
	}

	for _, entry := range manifest.Skills {
		builder, ok := features.Resolve(entry.Builder)
		if !ok {
			return errors.NewConfigError(
				fmt.Sprintf("skill %q references unknown feature builder %q", entry.ID, entry.Builder), nil)
		}
		skillID := entry.ID
		reg.Register(&registry.Registration{
			Definition: registry.Definition{
				ID:       skillID,
				Triggers: entry.TriggerSet(),
				Builder:  entry.Builder,
			},
			Build: builder,
			Run: func(feats []float64) ([]float64, error) {
				return h.Run(skillID, feats)
			},
		})
	}

	h.logger.Info("Inference hub initialized: %d skills from %s", len(manifest.Skills), source)
	return nil
}

// loadManifestBytes walks the manifest fallback chain: explicit configured
// path, code-adjacent file, embedded default. The embedded manifest always
// resolves, so the chain can only fail when an explicit path is unreadable.
func (h *Hub) loadManifestBytes() ([]byte, string, error) {
	if path := h.config.ManifestPath; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", errors.NewConfigError(fmt.Sprintf("read skill manifest %s", path), err)
		}
		return data, path, nil
	}

	if exe, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(exe), codeAdjacentManifest)
		if data, err := os.ReadFile(path); err == nil {
			return data, path, nil
		}
	}

	return embeddedManifest, "embedded manifest", nil
}

// Run executes inference for a skill, creating its session on first use.
// Concurrent first-use on the same id creates exactly one session; the
// singleflight group is the run-once-per-key synchronization point.
func (h *Hub) Run(skillID string, feats []float64) ([]float64, error) {
	session, err := h.session(skillID)
	if err != nil {
		return nil, err
	}
	out, err := session.Run(feats)
	if err != nil {
		h.metrics.RecordInferenceError(context.Background(), skillID)
		return nil, err
	}
	return out, nil
}

func (h *Hub) session(skillID string) (Session, error) {
	if session, ok := h.sessions.Get(skillID); ok {
		return session, nil
	}

	created, err, _ := h.creating.Do(skillID, func() (any, error) {
		if session, ok := h.sessions.Get(skillID); ok {
			return session, nil
		}
		session, err := h.engine.NewSession(skillID)
		if err != nil {
			return nil, err
		}
		h.sessions.Add(skillID, session)
		h.metrics.RecordSessionCreated(context.Background(), skillID)
		h.logger.Debug("Created inference session for %s", skillID)
		return session, nil
	})
	if err != nil {
		return nil, err
	}
	return created.(Session), nil
}

// DropSession evicts a cached session, forcing recreation on next use.
func (h *Hub) DropSession(skillID string) {
	h.sessions.Remove(skillID)
}

// SessionCount returns the number of live cached sessions.
func (h *Hub) SessionCount() int {
	return h.sessions.Len()
}

// Connect marks a remote endpoint as connected. Idempotent.
func (h *Hub) Connect(endpoint string) {
	if endpoint == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.endpoints[endpoint] = struct{}{}
}

// Disconnect removes a remote endpoint. Idempotent.
func (h *Hub) Disconnect(endpoint string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.endpoints, endpoint)
}

// IsConnected reports whether the endpoint is currently connected.
func (h *Hub) IsConnected(endpoint string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.endpoints[endpoint]
	return ok
}

// Endpoints returns the connected endpoint set, sorted.
func (h *Hub) Endpoints() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.endpoints))
	for endpoint := range h.endpoints {
		out = append(out, endpoint)
	}
	sort.Strings(out)
	return out
}
