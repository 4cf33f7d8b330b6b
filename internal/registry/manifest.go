package registry

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"aria/internal/errors"
)

// Manifest is the parsed skill manifest document.
type Manifest struct {
	Skills []ManifestEntry `yaml:"skills"`
}

// ManifestEntry is one skill entry. Exactly one of Triggers, TriggerPhrases,
// or Trigger supplies the trigger set; the first non-empty form wins.
type ManifestEntry struct {
	ID             string   `yaml:"id"`
	Builder        string   `yaml:"builder"`
	Triggers       []string `yaml:"triggers"`
	TriggerPhrases []string `yaml:"trigger_phrases"`
	Trigger        string   `yaml:"trigger"`
}

// TriggerSet resolves the entry's triggers regardless of which form the
// manifest used, normalized and deduplicated.
func (e ManifestEntry) TriggerSet() []string {
	var raw []string
	switch {
	case len(e.Triggers) > 0:
		raw = e.Triggers
	case len(e.TriggerPhrases) > 0:
		raw = e.TriggerPhrases
	case strings.TrimSpace(e.Trigger) != "":
		raw = []string{e.Trigger}
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, phrase := range raw {
		key := NormalizeTrigger(phrase)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

// ParseManifest decodes a YAML skill manifest and validates each entry.
func ParseManifest(data []byte) (Manifest, error) {
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, errors.NewConfigError("parse skill manifest", err)
	}
	if len(manifest.Skills) == 0 {
		return Manifest{}, errors.NewConfigError("skill manifest has no skills", nil)
	}

	seen := make(map[string]struct{}, len(manifest.Skills))
	for i, entry := range manifest.Skills {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			return Manifest{}, errors.NewConfigError(fmt.Sprintf("skill entry %d missing id", i), nil)
		}
		if _, dup := seen[id]; dup {
			return Manifest{}, errors.NewConfigError(fmt.Sprintf("duplicate skill id %q", id), nil)
		}
		seen[id] = struct{}{}
		if strings.TrimSpace(entry.Builder) == "" {
			return Manifest{}, errors.NewConfigError(fmt.Sprintf("skill %q missing builder", id), nil)
		}
		if len(entry.TriggerSet()) == 0 {
			return Manifest{}, errors.NewConfigError(fmt.Sprintf("skill %q has no trigger phrases", id), nil)
		}
		manifest.Skills[i].ID = id
	}
	return manifest, nil
}
