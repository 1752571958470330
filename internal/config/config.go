package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/roadwatch/server/internal/dataset"
	"github.com/roadwatch/server/internal/lib/ahp"
	"github.com/roadwatch/server/internal/lib/snapping"
)

// EnvPrefix prefixes environment overrides, e.g. ROADWATCH_SESSION__TTL=1h
const EnvPrefix = "ROADWATCH_"

// Config represents the complete server configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Network  NetworkConfig  `yaml:"network"`
	Snapping SnappingConfig `yaml:"snapping"`
	AHP      AHPConfig      `yaml:"ahp"`
	Session  SessionConfig  `yaml:"session"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

// ServerConfig holds server-specific settings
type ServerConfig struct {
	Port int `yaml:"port"`
	// Empty allows every origin
	CorsOrigins []string `yaml:"cors_origins"`
}

// NetworkConfig locates the reference road network
type NetworkConfig struct {
	// GeoJSON FeatureCollection; empty uses the embedded Bunkyo network
	Path   string `yaml:"path"`
	Bounds Bounds `yaml:"bounds"`
}

// Bounds is the district extent; observations outside are flagged, not dropped
type Bounds struct {
	West  float64 `yaml:"west"`
	South float64 `yaml:"south"`
	East  float64 `yaml:"east"`
	North float64 `yaml:"north"`
}

// Contains reports whether lon/lat lies inside the bounds
func (b Bounds) Contains(lon, lat float64) bool {
	return lon >= b.West && lon <= b.East && lat >= b.South && lat <= b.North
}

// SnappingConfig tunes the snapper and the path reconciler
type SnappingConfig struct {
	Indexed             bool    `yaml:"indexed"`
	SearchRadius        float64 `yaml:"search_radius"`        // meters
	ConnectionThreshold float64 `yaml:"connection_threshold"` // meters
}

// AHPConfig holds the comparison matrix and the score bands
type AHPConfig struct {
	// Empty uses the built-in matrix
	Matrix           [][]float64 `yaml:"matrix"`
	ConsistencyLimit float64     `yaml:"consistency_limit"`
	Bands            ahp.Bands   `yaml:"bands"`
}

// ComparisonMatrix returns the configured matrix or the default one
func (a AHPConfig) ComparisonMatrix() ahp.Matrix {
	if len(a.Matrix) == 0 {
		return ahp.DefaultMatrix()
	}
	return ahp.Matrix(a.Matrix)
}

// SessionConfig controls how long processed batches are kept in memory
type SessionConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// KafkaConfig configures the detection consumer
type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      string        `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	GroupID      string        `yaml:"group_id"`
	BatchSize    int           `yaml:"batch_size"`
	BatchWindow  time.Duration `yaml:"batch_window"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
		},
		Network: NetworkConfig{
			Bounds: Bounds{
				West:  dataset.BunkyoBounds[0],
				South: dataset.BunkyoBounds[1],
				East:  dataset.BunkyoBounds[2],
				North: dataset.BunkyoBounds[3],
			},
		},
		Snapping: SnappingConfig{
			Indexed:             true,
			SearchRadius:        snapping.DefaultSearchRadius,
			ConnectionThreshold: snapping.DefaultConnectionThreshold,
		},
		AHP: AHPConfig{
			ConsistencyLimit: ahp.DefaultConsistencyLimit,
			Bands:            ahp.DefaultBands(),
		},
		Session: SessionConfig{
			TTL:             2 * time.Hour,
			CleanupInterval: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:      "localhost:9092",
			Topic:        "road-damage-detections",
			GroupID:      "roadwatch",
			BatchSize:    50,
			BatchWindow:  10 * time.Second,
			PollInterval: 100 * time.Millisecond,
		},
	}
}

// Load layers DefaultConfig, the YAML file at path (skipped when path is
// empty) and ROADWATCH_ environment variables. Nested keys use a double
// underscore: ROADWATCH_SNAPPING__SEARCH_RADIUS=100.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	b := c.Network.Bounds
	if b.West >= b.East || b.South >= b.North {
		errs = append(errs, fmt.Errorf("network.bounds must have west < east and south < north"))
	}
	if c.Snapping.SearchRadius <= 0 {
		errs = append(errs, errors.New("snapping.search_radius must be positive"))
	}
	if c.Snapping.ConnectionThreshold <= 0 {
		errs = append(errs, errors.New("snapping.connection_threshold must be positive"))
	}
	if c.AHP.ConsistencyLimit <= 0 {
		errs = append(errs, errors.New("ahp.consistency_limit must be positive"))
	}
	if err := c.AHP.ComparisonMatrix().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ahp.matrix: %w", err))
	}
	if err := c.AHP.Bands.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Session.TTL <= 0 || c.Session.CleanupInterval <= 0 {
		errs = append(errs, errors.New("session.ttl and session.cleanup_interval must be positive"))
	}
	if c.Kafka.Enabled {
		if c.Kafka.Brokers == "" || c.Kafka.Topic == "" || c.Kafka.GroupID == "" {
			errs = append(errs, errors.New("kafka.brokers, kafka.topic and kafka.group_id are required when kafka is enabled"))
		}
		if c.Kafka.BatchSize <= 0 || c.Kafka.BatchWindow <= 0 {
			errs = append(errs, errors.New("kafka.batch_size and kafka.batch_window must be positive"))
		}
	}

	return errors.Join(errs...)
}
