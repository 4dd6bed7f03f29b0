// Package file loads and saves the TOML configuration under the
// user's config directory.
package file

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const (
	configDirName  = ".specrag"
	configFileName = "config.toml"
)

// Config is the full pipeline configuration.
type Config struct {
	// DataDir holds the SQLite database. Defaults next to the config
	// file.
	DataDir string `toml:"data_dir"`

	ObjectStore ObjectStoreConfig `toml:"object_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Worker      WorkerConfig      `toml:"worker"`
}

// ObjectStoreConfig selects and configures the corpus backend.
type ObjectStoreConfig struct {
	// Backend is "gcs" or "filesystem".
	Backend string `toml:"backend"`

	// Bucket is the GCS bucket name.
	Bucket string `toml:"bucket"`

	// Root is the local directory for the filesystem backend.
	Root string `toml:"root"`

	// DesignPrefix and PRDPrefix are the scan roots.
	DesignPrefix string `toml:"design_prefix"`
	PRDPrefix    string `toml:"prd_prefix"`
}

// EmbeddingConfig configures the embedding service.
type EmbeddingConfig struct {
	Model string `toml:"model"`

	// APIKey is normally left empty here and supplied via the
	// OPENAI_API_KEY environment variable.
	APIKey string `toml:"api_key"`

	BaseURL    string `toml:"base_url"`
	Dimensions int    `toml:"dimensions"`

	BatchSize         int `toml:"batch_size"`
	BatchDelaySeconds int `toml:"batch_delay_seconds"`
}

// WorkerConfig tunes job execution.
type WorkerConfig struct {
	Concurrency        int `toml:"concurrency"`
	JobTimeoutSeconds  int `toml:"job_timeout_seconds"`
	MaxAttempts        int `toml:"max_attempts"`
	BackoffBaseSeconds int `toml:"backoff_base_seconds"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		ObjectStore: ObjectStoreConfig{
			Backend:      "filesystem",
			DesignPrefix: "designs",
			PRDPrefix:    "prds",
		},
		Embedding: EmbeddingConfig{
			Model:             "text-embedding-3-small",
			BatchSize:         25,
			BatchDelaySeconds: 3,
		},
		Worker: WorkerConfig{
			Concurrency:        2,
			JobTimeoutSeconds:  300,
			MaxAttempts:        3,
			BackoffBaseSeconds: 2,
		},
	}
}

// Store loads and saves the configuration file.
type Store struct {
	dir string
}

// NewStore creates a config store under dir; an empty dir uses
// ~/.specrag.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		dir = filepath.Join(home, configDirName)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the config directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the config file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, configFileName)
}

// Load reads the config file, applying defaults for anything unset. A
// missing file yields the defaults. OPENAI_API_KEY overrides the
// stored embedding key.
func (s *Store) Load() (Config, error) {
	cfg := Default()
	if cfg.DataDir == "" {
		cfg.DataDir = s.dir
	}

	content, err := os.ReadFile(s.Path())
	if err == nil {
		if err := toml.Unmarshal(content, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", s.Path(), err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("reading %s: %w", s.Path(), err)
	}

	applyDefaults(&cfg, s.dir)

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Embedding.APIKey = key
	}
	return cfg, nil
}

// Save writes the config file, creating the directory if needed.
func (s *Store) Save(cfg Config) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	content, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(s.Path(), content, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", s.Path(), err)
	}
	return nil
}

func applyDefaults(cfg *Config, dir string) {
	def := Default()

	if cfg.DataDir == "" {
		cfg.DataDir = dir
	}
	if cfg.ObjectStore.Backend == "" {
		cfg.ObjectStore.Backend = def.ObjectStore.Backend
	}
	if cfg.ObjectStore.DesignPrefix == "" {
		cfg.ObjectStore.DesignPrefix = def.ObjectStore.DesignPrefix
	}
	if cfg.ObjectStore.PRDPrefix == "" {
		cfg.ObjectStore.PRDPrefix = def.ObjectStore.PRDPrefix
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = def.Embedding.Model
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = def.Embedding.BatchSize
	}
	if cfg.Embedding.BatchDelaySeconds == 0 {
		cfg.Embedding.BatchDelaySeconds = def.Embedding.BatchDelaySeconds
	}
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = def.Worker.Concurrency
	}
	if cfg.Worker.JobTimeoutSeconds == 0 {
		cfg.Worker.JobTimeoutSeconds = def.Worker.JobTimeoutSeconds
	}
	if cfg.Worker.MaxAttempts == 0 {
		cfg.Worker.MaxAttempts = def.Worker.MaxAttempts
	}
	if cfg.Worker.BackoffBaseSeconds == 0 {
		cfg.Worker.BackoffBaseSeconds = def.Worker.BackoffBaseSeconds
	}
}
