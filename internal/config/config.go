// Package config loads and validates sbomindexd's YAML configuration: a
// single file, eager validation, defaults filled in at load time.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for sbomindexd.
type Config struct {
	SyncInterval time.Duration `yaml:"syncInterval"`

	Storage StorageConfig `yaml:"storage"`
	Bus     BusConfig     `yaml:"bus"`
	Index   IndexConfig   `yaml:"index"`
	Commits CommitsConfig `yaml:"commits"`
	Audit   *AuditConfig  `yaml:"audit"`
}

// StorageConfig selects and configures the object store backend. Exactly
// one of S3 or LocalDir should be set.
type StorageConfig struct {
	S3       *S3Config `yaml:"s3"`
	LocalDir string    `yaml:"localDir"`
}

// S3Config encapsulates AWS configuration parameters.
type S3Config struct {
	Bucket         string `yaml:"bucket"`
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	ForcePathStyle bool   `yaml:"forcePathStyle"`
}

// BusConfig selects and configures the event bus backend. Exactly one of
// NATS or Memory (for local/dev use) should be set.
type BusConfig struct {
	NATS   *NATSConfig `yaml:"nats"`
	Memory bool        `yaml:"memory"`
}

// NATSConfig holds JetStream connection details.
type NATSConfig struct {
	URL           string `yaml:"url"`
	Stream        string `yaml:"stream"`
	SubjectPrefix string `yaml:"subjectPrefix"`
}

// IndexConfig controls where the on-disk bleve index and its restored
// snapshots live.
type IndexConfig struct {
	Directory string `yaml:"directory"`
}

// CommitsConfig controls where per-snapshot Merkle commit log entries are
// written.
type CommitsConfig struct {
	Directory string `yaml:"directory"`
}

// AuditConfig, if present, enables the optional Postgres mirror of
// indexed/failed outcomes.
type AuditConfig struct {
	URL   string `yaml:"url"`
	Table string `yaml:"table"`
}

// Load reads a YAML file from disk and unmarshals it into Config.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.SyncInterval == 0 {
		c.SyncInterval = 30 * time.Second
	}
	if c.Commits.Directory == "" {
		return fmt.Errorf("commits.directory is required")
	}
	if c.Index.Directory == "" {
		return fmt.Errorf("index.directory is required")
	}

	if err := c.Storage.validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Bus.validate(); err != nil {
		return fmt.Errorf("bus: %w", err)
	}
	if c.Audit != nil && c.Audit.URL == "" {
		return fmt.Errorf("audit.url is required when audit is configured")
	}
	return nil
}

func (s *StorageConfig) validate() error {
	switch {
	case s.S3 != nil && s.LocalDir != "":
		return fmt.Errorf("s3 and localDir are mutually exclusive")
	case s.S3 != nil:
		if s.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required")
		}
	case s.LocalDir != "":
		// nothing further required
	default:
		return fmt.Errorf("one of s3 or localDir is required")
	}
	return nil
}

func (b *BusConfig) validate() error {
	switch {
	case b.NATS != nil && b.Memory:
		return fmt.Errorf("nats and memory are mutually exclusive")
	case b.NATS != nil:
		if b.NATS.URL == "" {
			return fmt.Errorf("nats.url is required")
		}
		if b.NATS.Stream == "" {
			b.NATS.Stream = "sbomindexd"
		}
		if b.NATS.SubjectPrefix == "" {
			b.NATS.SubjectPrefix = "sbomindexd"
		}
	case b.Memory:
		// nothing further required
	default:
		return fmt.Errorf("one of nats or memory is required")
	}
	return nil
}
