// Package config builds the pipeline configuration once at startup.
// Values come from an optional YAML file, overridden by environment
// variables; there is no ambient global state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults mirror the service locations the corpus was originally built
// against.
const (
	DefaultDBPath          = "corpus.db"
	DefaultS2BaseURL       = "https://api.semanticscholar.org/graph/v1/paper/"
	DefaultAnthologyURL    = "https://aclanthology.org"
	DefaultBibliographyURL = "https://aclanthology.org/anthology.bib.gz"
	DefaultGrobidURL       = "http://localhost:8070"
	DefaultBatchSize       = 100
	DefaultCycleFloor      = 5 * time.Minute
)

// Config holds every externally tunable setting. It is constructed once and
// passed by reference into the orchestrator and service clients.
type Config struct {
	DBPath          string        `yaml:"db_path"`
	S2BaseURL       string        `yaml:"s2_base_url"`
	S2APIKey        string        `yaml:"s2_api_key"`
	S2Fields        string        `yaml:"s2_fields"`
	AnthologyURL    string        `yaml:"anthology_url"`
	BibliographyURL string        `yaml:"bibliography_url"`
	GrobidURL       string        `yaml:"grobid_url"`
	BatchSize       int           `yaml:"batch_size"`
	CycleFloor      time.Duration `yaml:"cycle_floor"`
}

// ConfigDir is the directory name under XDG_CONFIG_HOME.
const ConfigDir = "corpus"

// ConfigFile is the optional config file name.
const ConfigFile = "config.yml"

// Path returns the default config file location. Respects XDG_CONFIG_HOME,
// defaults to ~/.config/corpus/config.yml.
func Path() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, ConfigDir, ConfigFile)
}

// Load builds the configuration: defaults, then the YAML file (if present),
// then environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("CORPUS_CONFIG")
	if path == "" {
		path = Path()
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.CycleFloor < 0 {
		return nil, fmt.Errorf("cycle floor must not be negative, got %s", cfg.CycleFloor)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		DBPath:          DefaultDBPath,
		S2BaseURL:       DefaultS2BaseURL,
		AnthologyURL:    DefaultAnthologyURL,
		BibliographyURL: DefaultBibliographyURL,
		GrobidURL:       DefaultGrobidURL,
		BatchSize:       DefaultBatchSize,
		CycleFloor:      DefaultCycleFloor,
	}
}

// applyFile merges values from a YAML config file. A missing file is not an
// error.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides settings from CORPUS_* environment variables.
func (c *Config) applyEnv() error {
	setString(&c.DBPath, "CORPUS_DB_PATH")
	setString(&c.S2BaseURL, "CORPUS_S2_URL")
	setString(&c.S2APIKey, "CORPUS_S2_API_KEY")
	setString(&c.S2Fields, "CORPUS_S2_FIELDS")
	setString(&c.AnthologyURL, "CORPUS_ANTHOLOGY_URL")
	setString(&c.BibliographyURL, "CORPUS_BIBLIOGRAPHY_URL")
	setString(&c.GrobidURL, "CORPUS_GROBID_URL")

	if v := os.Getenv("CORPUS_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing CORPUS_BATCH_SIZE: %w", err)
		}
		c.BatchSize = n
	}
	if v := os.Getenv("CORPUS_CYCLE_FLOOR"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing CORPUS_CYCLE_FLOOR: %w", err)
		}
		c.CycleFloor = d
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
