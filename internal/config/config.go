// Package config loads om configuration from a YAML file with OM_*
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Config holds all om settings.
type Config struct {
	// Root is the directory holding per-project memory directories.
	// Default: ~/.claude/projects.
	Root string `koanf:"root"`

	Summarizer SummarizerConfig `koanf:"summarizer"`
	Observer   ObserverConfig   `koanf:"observer"`
	Reflect    ReflectConfig    `koanf:"reflect"`
	Inject     InjectConfig     `koanf:"inject"`
}

// SummarizerConfig selects and tunes the text-reasoning backend.
type SummarizerConfig struct {
	// Provider: "claude-cli", "openai", or "disabled".
	Provider       string `koanf:"provider"`
	ObserverModel  string `koanf:"observer_model"`
	ReflectorModel string `koanf:"reflector_model"`
	BaseURL        string `koanf:"base_url"`
	APIKey         string `koanf:"api_key"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

// ObserverConfig tunes the ingest engine.
type ObserverConfig struct {
	// MinNewChars is the minimum unobserved content before extraction
	// runs at all.
	MinNewChars int `koanf:"min_new_chars"`
	// MaxPromptChars caps the transcript segment handed to the
	// summarizer; older content is cut on a line boundary.
	MaxPromptChars int `koanf:"max_prompt_chars"`
	// TailGroups is how many recent date groups are sent as dedup
	// context.
	TailGroups int `koanf:"tail_groups"`
}

// ReflectConfig tunes compaction.
type ReflectConfig struct {
	// ThresholdChars triggers automatic reflection after ingest.
	ThresholdChars int `koanf:"threshold_chars"`
	// MinChars is the floor below which reflection is "not needed".
	MinChars int `koanf:"min_chars"`
	// RecentDays / ModerateDays bound the age bands; anything older is
	// aged.
	RecentDays   int `koanf:"recent_days"`
	ModerateDays int `koanf:"moderate_days"`
	// ModerateRatio / AgedRatio are per-band size targets.
	ModerateRatio float64 `koanf:"moderate_ratio"`
	AgedRatio     float64 `koanf:"aged_ratio"`
}

// InjectConfig tunes session-start context injection.
type InjectConfig struct {
	// MaxChars caps injected context; the most recent tail wins.
	MaxChars int `koanf:"max_chars"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Root: filepath.Join(home, ".claude", "projects"),
		Summarizer: SummarizerConfig{
			Provider:       "claude-cli",
			ObserverModel:  "haiku",
			ReflectorModel: "haiku",
			TimeoutSeconds: 120,
		},
		Observer: ObserverConfig{
			MinNewChars:    2000,
			MaxPromptChars: 50000,
			TailGroups:     3,
		},
		Reflect: ReflectConfig{
			ThresholdChars: 40000,
			MinChars:       5000,
			RecentDays:     3,
			ModerateDays:   14,
			ModerateRatio:  0.6,
			AgedRatio:      0.35,
		},
		Inject: InjectConfig{
			MaxChars: 60000,
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "om", "config.yaml")
}

// Load builds the configuration: defaults, then the YAML file at path (if
// it exists), then OM_* environment variables.
//
// Environment keys map section-first: OM_SUMMARIZER_PROVIDER sets
// summarizer.provider, OM_OBSERVER_MIN_NEW_CHARS sets
// observer.min_new_chars, OM_ROOT sets root.
func Load(path string) (*Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path == "" {
		path = DefaultPath()
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := k.Load(env.Provider("OM_", ".", envToKey), nil); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// envToKey maps OM_SECTION_SOME_KEY to section.some_key.
func envToKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, "OM_"))
	section, rest, found := strings.Cut(s, "_")
	if !found {
		return section
	}
	return section + "." + rest
}
