package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config captures user-level settings stored in .llmcodec/config.yaml.
//
// The schema is intentionally minimal; new fields can be added without
// breaking forwards-compatibility as callers should always access
// configuration via the exported struct rather than raw maps.
//
// Example YAML:
//
//	provider: openai
//	model:
//	  family: gpt
//	  size: small
//
// Zero-value Config is invalid – use Default() when no config file is
// found.
//
// NOTE: keep field tags in sync with YAML when extending this struct.
type Config struct {
	Provider string `yaml:"provider"`
	Model    Model  `yaml:"model"`

	// ContextWindow is the token budget enforced before a request is
	// sent to the provider. Zero means the built-in default.
	ContextWindow int `yaml:"context-window"`

	Logging Logging `yaml:"logging"`
}

// Model selects the default model tier used when a request does not
// specify one.
type Model struct {
	Family ModelFamily `yaml:"family"`
	Size   ModelSize   `yaml:"size"`
}

// Logging captures logging-specific settings.
type Logging struct {
	Level                string `yaml:"level"`
	RequestResponseDebug bool   `yaml:"request-response-debug"`
}

// defaultProvider is used when no configuration file exists or it cannot
// be parsed. The value must always map to a known engine in the llm
// dispatcher.
const defaultProvider = "openai"

// DefaultContextWindow is the token budget applied when the config file
// does not override it.
const DefaultContextWindow = 128000

// relPath is the config file location relative to the project root.
const relPath = ".llmcodec/config.yaml"

// Default returns a Config populated with hard-coded defaults. It should
// be used whenever .llmcodec/config.yaml is missing.
func Default() *Config {
	return &Config{
		Provider: defaultProvider,
		Model: Model{
			Family: ModelFamilyGPT,
			Size:   ModelSizeSmall,
		},
		ContextWindow: DefaultContextWindow,
		Logging: Logging{
			Level:                "info",
			RequestResponseDebug: false,
		},
	}
}

// Load reads .llmcodec/config.yaml located under projectRoot. When the
// file does not exist the function returns Default() with a nil error so
// the caller can proceed transparently. Any other I/O or unmarshalling
// error is propagated.
func Load(projectRoot string) (*Config, error) {
	if projectRoot == "" {
		return nil, fmt.Errorf("projectRoot must not be empty")
	}
	return LoadFS(os.DirFS(projectRoot))
}

// LoadFS performs the same operation as Load but works directly on an
// fs.FS. This facilitates unit-testing with fstest.MapFS.
func LoadFS(fsys fs.FS) (*Config, error) {
	data, err := fs.ReadFile(fsys, relPath)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file – fall back to defaults.
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", relPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", relPath, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Save writes cfg to .llmcodec/config.yaml under projectRoot, creating
// the .llmcodec directory when necessary.
func Save(projectRoot string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("cfg must not be nil")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	path := filepath.Join(projectRoot, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", relPath, err)
	}
	return nil
}

// applyDefaults fills in zero-valued fields so partially written config
// files behave like Default().
func applyDefaults(cfg *Config) {
	if cfg.Provider == "" {
		cfg.Provider = defaultProvider
	}
	if cfg.Model.Family == "" {
		cfg.Model.Family = ModelFamilyGPT
	}
	if cfg.Model.Size == "" {
		cfg.Model.Size = ModelSizeSmall
	}
	if cfg.ContextWindow == 0 {
		cfg.ContextWindow = DefaultContextWindow
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
