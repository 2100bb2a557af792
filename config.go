package usearch

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dluc/usearch/distance"
	"github.com/dluc/usearch/internal/hnsw"
	"github.com/dluc/usearch/persistence"
	"github.com/dluc/usearch/scalar"
)

// Config describes an index. Zero connectivity and expansion values take
// their defaults.
type Config struct {
	Dimensions      int                     `yaml:"dimensions"`
	Metric          distance.Kind           `yaml:"metric"`
	Scalar          scalar.Kind             `yaml:"scalar"`
	Connectivity    int                     `yaml:"connectivity"`
	ExpansionAdd    int                     `yaml:"expansion_add"`
	ExpansionSearch int                     `yaml:"expansion_search"`
	Multi           bool                    `yaml:"multi"`
	ThreadsAdd      int                     `yaml:"threads_add"`
	ThreadsSearch   int                     `yaml:"threads_search"`
	MemoryLimit     int64                   `yaml:"memory_limit"`
	Path            string                  `yaml:"path"`
	Seed            *int64                  `yaml:"seed,omitempty"`
	Compression     persistence.Compression `yaml:"compression"`
}

// DefaultConfig returns a cosine f32 index of dims dimensions.
func DefaultConfig(dims int) Config {
	return Config{
		Dimensions:      dims,
		Metric:          distance.Cosine,
		Scalar:          scalar.F32,
		Connectivity:    hnsw.DefaultM,
		ExpansionAdd:    hnsw.DefaultEF,
		ExpansionSearch: hnsw.DefaultEFSearch,
	}
}

// LoadConfig reads a YAML file over DefaultConfig(0).
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig(0)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrInvalidConfiguration, path, err)
	}
	cfg = cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// normalize fills defaults. Bitwise metrics over the default f32 kind switch to b1.
func (c Config) normalize() Config {
	if c.Connectivity == 0 {
		c.Connectivity = hnsw.DefaultM
	}
	if c.ExpansionAdd == 0 {
		c.ExpansionAdd = hnsw.DefaultEF
	}
	if c.ExpansionSearch == 0 {
		c.ExpansionSearch = hnsw.DefaultEFSearch
	}
	if c.Metric.Bitwise() && c.Scalar == scalar.F32 {
		c.Scalar = scalar.B1
	}
	return c
}

// Validate reports configuration errors as ErrInvalidConfiguration.
func (c Config) Validate() error {
	c = c.normalize()
	switch {
	case c.Dimensions <= 0:
		return fmt.Errorf("%w: dimensions must be positive, got %d", ErrInvalidConfiguration, c.Dimensions)
	case c.Connectivity < 2:
		return fmt.Errorf("%w: connectivity must be at least 2, got %d", ErrInvalidConfiguration, c.Connectivity)
	case c.ExpansionAdd < 0 || c.ExpansionSearch < 0:
		return fmt.Errorf("%w: expansion must not be negative", ErrInvalidConfiguration)
	case c.ThreadsAdd < 0 || c.ThreadsSearch < 0:
		return fmt.Errorf("%w: threads must not be negative", ErrInvalidConfiguration)
	case c.MemoryLimit < 0:
		return fmt.Errorf("%w: memory limit must not be negative", ErrInvalidConfiguration)
	case c.Compression > persistence.CompressionLZ4:
		return fmt.Errorf("%w: unknown compression %d", ErrInvalidConfiguration, c.Compression)
	}
	if err := distance.Validate(c.Metric, c.Scalar, c.Dimensions); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	return nil
}
