// Package config loads the watchcat project configuration from a
// YAML file and validates it against a JSON schema before use.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ConfigFilenames contains the possible config file names, checked in
// order.
var ConfigFilenames = []string{
	".watchcat.yaml",
	".watchcat.yml",
	"watchcat.yaml",
	"watchcat.yml",
}

// Runtime describes how to launch the scripting test runtime.
type Runtime struct {
	Command string   `yaml:"command" json:"command"`
	Args    []string `yaml:"args,omitempty" json:"args,omitempty"`
}

// Notify configures outbound notifications for watch cycles.
type Notify struct {
	On           string `yaml:"on,omitempty" json:"on,omitempty"` // always, failure, success, recovery
	SlackWebhook string `yaml:"slackWebhook,omitempty" json:"slackWebhook,omitempty"`
	SlackChannel string `yaml:"slackChannel,omitempty" json:"slackChannel,omitempty"`
	TeamsWebhook string `yaml:"teamsWebhook,omitempty" json:"teamsWebhook,omitempty"`
}

// Config is the watchcat project configuration.
type Config struct {
	// TestRoot is the directory test files live under.
	TestRoot string `yaml:"testRoot,omitempty" json:"testRoot,omitempty"`
	// Pattern is the glob matched against paths under TestRoot.
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	// Suffix is stripped when deriving module refs.
	Suffix string `yaml:"suffix,omitempty" json:"suffix,omitempty"`
	// MinPasses is the success threshold; zero means the default.
	MinPasses uint64 `yaml:"minPasses,omitempty" json:"minPasses,omitempty"`
	// DebounceMs delays watch-triggered runs after a burst of events.
	DebounceMs int `yaml:"debounceMs,omitempty" json:"debounceMs,omitempty"`
	// HistoryPath is the SQLite run-history database location.
	HistoryPath string `yaml:"historyPath,omitempty" json:"historyPath,omitempty"`
	// NoColor disables ANSI colors.
	NoColor bool `yaml:"noColor,omitempty" json:"noColor,omitempty"`

	Runtime Runtime `yaml:"runtime" json:"runtime"`
	Notify  *Notify `yaml:"notify,omitempty" json:"notify,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		TestRoot:    filepath.Join("src", "test"),
		Pattern:     "**/*_test.cljs",
		Suffix:      ".cljs",
		MinPasses:   2,
		DebounceMs:  300,
		HistoryPath: ".watchcat/history.db",
		Runtime:     Runtime{Command: "joyride-runtime"},
	}
}

// Debounce returns the configured debounce as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// Load reads configuration from path, or searches the current
// directory for a known config filename when path is empty. A missing
// config file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	if path != "" {
		return loadFile(path)
	}
	return FindAndLoad(".")
}

// FindAndLoad searches dir for a config file, returning defaults when
// none exists.
func FindAndLoad(dir string) (*Config, error) {
	for _, name := range ConfigFilenames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return loadFile(candidate)
		}
	}
	return Default(), nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cfg against the embedded JSON schema.
func Validate(cfg *Config) error {
	doc, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config for validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(configSchema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
