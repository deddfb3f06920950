package generation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rung is one position in an artifact type's retry/fallback ladder. The
// first rung is the preferred local model; Repairable rungs get exactly
// one same-model repair pass before the ladder advances; trailing rungs
// with Repairable=false are the remote/cloud tier, tried once each.
type Rung struct {
	ModelID    string `yaml:"model"`
	Repairable bool   `yaml:"repairable"`
}

// typeLadder is one artifact type's ladder as read from YAML.
type typeLadder struct {
	Preferred string   `yaml:"preferred"`
	Fallbacks []string `yaml:"fallbacks"`
	Remote    []string `yaml:"remote"`
}

// ladderFile is the on-disk shape of the rungs configuration: a map keyed
// by artifact_type, plus a "default" entry used when a type has none of
// its own.
type ladderFile struct {
	ArtifactTypes map[string]typeLadder `yaml:"artifact_types"`
}

// Ladder holds the rung configuration for every artifact type.
type Ladder struct {
	types map[string]typeLadder
}

// LoadLadder reads rung configuration from path.
func LoadLadder(path string) (*Ladder, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("generation: reading ladder config %s: %w", path, err)
	}

	var f ladderFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("generation: parsing ladder config %s: %w", path, err)
	}

	return &Ladder{types: f.ArtifactTypes}, nil
}

// NewLadder builds a Ladder directly from a type->config map, bypassing
// YAML, for programmatic configuration and tests.
func NewLadder(types map[string]typeLadderConfig) *Ladder {
	converted := make(map[string]typeLadder, len(types))
	for k, v := range types {
		converted[k] = typeLadder{Preferred: v.Preferred, Fallbacks: v.Fallbacks, Remote: v.Remote}
	}
	return &Ladder{types: converted}
}

// typeLadderConfig is the per-type argument NewLadder takes, built with
// TypeLadderConfig. Like typeLadder, it is unexported.
type typeLadderConfig struct {
	Preferred string
	Fallbacks []string
	Remote    []string
}

// TypeLadderConfig constructs a typeLadderConfig.
func TypeLadderConfig(preferred string, fallbacks, remote []string) typeLadderConfig {
	return typeLadderConfig{Preferred: preferred, Fallbacks: fallbacks, Remote: remote}
}

// RungsFor returns the ordered rungs for artifactType, falling back to the
// ladder's "default" entry when the type has no dedicated configuration.
func (l *Ladder) RungsFor(artifactType string) []Rung {
	cfg, ok := l.types[artifactType]
	if !ok {
		cfg, ok = l.types["default"]
		if !ok {
			return nil
		}
	}

	var rungs []Rung
	if cfg.Preferred != "" {
		rungs = append(rungs, Rung{ModelID: cfg.Preferred, Repairable: true})
	}
	for _, m := range cfg.Fallbacks {
		rungs = append(rungs, Rung{ModelID: m, Repairable: true})
	}
	for _, m := range cfg.Remote {
		rungs = append(rungs, Rung{ModelID: m, Repairable: false})
	}
	return rungs
}
