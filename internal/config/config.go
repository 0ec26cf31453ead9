// Package config loads and validates sarsift configuration.
//
// Precedence, lowest to highest: built-in defaults, .sarsift.yaml in the
// working directory, SARSIFT_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete sarsift configuration.
type Config struct {
	// DataDir is the root directory for job artifacts and the sqlite store.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	Cluster   ClusterConfig   `yaml:"cluster" json:"cluster"`
	Extractor ExtractorConfig `yaml:"extractor" json:"extractor"`
	Pipeline  PipelineConfig  `yaml:"pipeline" json:"pipeline"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// ClusterConfig configures the identity clustering engine.
type ClusterConfig struct {
	// MergeThreshold is the minimum similarity score for merging two
	// identifiers that match neither by address nor by normalized name.
	MergeThreshold float64 `yaml:"merge_threshold" json:"merge_threshold"`

	// ParseCacheSize bounds the identifier parse cache in the scorer.
	ParseCacheSize int `yaml:"parse_cache_size" json:"parse_cache_size"`
}

// ExtractorConfig configures the external text-extraction collaborator.
type ExtractorConfig struct {
	// TikaURL is the base URL of the text extraction service.
	// Empty disables remote extraction; bodies are used as provided.
	TikaURL string `yaml:"tika_url" json:"tika_url"`

	// Timeout for a single extraction request.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// PipelineConfig configures the indexing pipeline.
type PipelineConfig struct {
	// Workers bounds parallel body-text extraction. Output ordering is
	// unaffected; results are reassembled by message position.
	Workers int `yaml:"workers" json:"workers"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// NewConfig returns a Config with built-in defaults.
func NewConfig() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Cluster: ClusterConfig{
			MergeThreshold: 0.95,
			ParseCacheSize: 4096,
		},
		Extractor: ExtractorConfig{
			TikaURL: "",
			Timeout: 30 * time.Second,
		},
		Pipeline: PipelineConfig{
			Workers: 4,
		},
		Server: ServerConfig{
			Addr: ":8742",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".sarsift")
	}
	return filepath.Join(home, ".sarsift")
}

// Load builds the effective configuration for dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .sarsift.yaml or .sarsift.yml.
// A missing config file is fine; defaults apply.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".sarsift.yaml", ".sarsift.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}
	if other.Cluster.MergeThreshold != 0 {
		c.Cluster.MergeThreshold = other.Cluster.MergeThreshold
	}
	if other.Cluster.ParseCacheSize != 0 {
		c.Cluster.ParseCacheSize = other.Cluster.ParseCacheSize
	}
	if other.Extractor.TikaURL != "" {
		c.Extractor.TikaURL = other.Extractor.TikaURL
	}
	if other.Extractor.Timeout != 0 {
		c.Extractor.Timeout = other.Extractor.Timeout
	}
	if other.Pipeline.Workers != 0 {
		c.Pipeline.Workers = other.Pipeline.Workers
	}
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
}

// applyEnvOverrides applies SARSIFT_* environment variables (highest precedence).
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SARSIFT_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("SARSIFT_MERGE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Cluster.MergeThreshold = f
		}
	}
	if v := os.Getenv("SARSIFT_TIKA_URL"); v != "" {
		c.Extractor.TikaURL = v
	}
	if v := os.Getenv("SARSIFT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Pipeline.Workers = n
		}
	}
	if v := os.Getenv("SARSIFT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SARSIFT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Cluster.MergeThreshold <= 0 || c.Cluster.MergeThreshold > 1 {
		return fmt.Errorf("cluster.merge_threshold must be in (0, 1], got %v", c.Cluster.MergeThreshold)
	}
	if c.Cluster.ParseCacheSize < 0 {
		return fmt.Errorf("cluster.parse_cache_size must not be negative, got %d", c.Cluster.ParseCacheSize)
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1, got %d", c.Pipeline.Workers)
	}
	if c.Extractor.Timeout < 0 {
		return fmt.Errorf("extractor.timeout must not be negative, got %v", c.Extractor.Timeout)
	}
	return nil
}

// DBPath returns the path of the sqlite artifact store.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "artifacts.db")
}
