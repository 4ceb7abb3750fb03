// Package config loads pipeline configuration from a YAML file with
// PROPHET_* environment variable overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/complexome/prophet/pkg/models"
)

// Config holds the full pipeline configuration.
type Config struct {
	Logging      LoggingConfig      `yaml:"logging"`
	Profiles     ProfilesConfig     `yaml:"profiles"`
	Features     FeaturesConfig     `yaml:"features"`
	Classifier   ClassifierConfig   `yaml:"classifier"`
	Assembler    AssemblerConfig    `yaml:"assembler"`
	Differential DifferentialConfig `yaml:"differential"`
	Store        StoreConfig        `yaml:"store"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ProfilesConfig controls profile loading and normalization.
type ProfilesConfig struct {
	Normalization string  `yaml:"normalization"` // "total", "max" or "none"
	NoiseFloor    float64 `yaml:"noise_floor"`
}

// FeaturesConfig controls pairwise feature extraction.
type FeaturesConfig struct {
	Window    int `yaml:"window"`
	BatchSize int `yaml:"batch_size"`
	Workers   int `yaml:"workers"`
}

// ClassifierConfig controls model training and scoring.
type ClassifierConfig struct {
	ModelPath       string  `yaml:"model_path"`
	NumTrees        int     `yaml:"num_trees"`
	MaxDepth        int     `yaml:"max_depth"`
	MinSamplesSplit int     `yaml:"min_samples_split"`
	MinSamplesLeaf  int     `yaml:"min_samples_leaf"`
	Folds           int     `yaml:"folds"`
	TargetFDR       float64 `yaml:"target_fdr"`
	RandomSeed      int64   `yaml:"random_seed"`
}

// AssemblerConfig controls graph partitioning.
type AssemblerConfig struct {
	Method      string  `yaml:"method"`
	MinCohesion float64 `yaml:"min_cohesion"`
}

// DifferentialConfig controls the two-condition comparison.
type DifferentialConfig struct {
	Baseline   string  `yaml:"baseline"`
	MinJaccard float64 `yaml:"min_jaccard"`
	Alpha      float64 `yaml:"alpha"`
}

// StoreConfig controls the result store.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Profiles: ProfilesConfig{
			Normalization: "total",
			NoiseFloor:    0,
		},
		Features: FeaturesConfig{
			Window:    10,
			BatchSize: 1000,
			Workers:   4,
		},
		Classifier: ClassifierConfig{
			NumTrees:        100,
			MaxDepth:        10,
			MinSamplesSplit: 2,
			MinSamplesLeaf:  1,
			Folds:           5,
			TargetFDR:       0.5,
			RandomSeed:      42,
		},
		Assembler: AssemblerConfig{
			Method:      "modularity",
			MinCohesion: 0.3,
		},
		Differential: DifferentialConfig{
			Baseline:   "Ctrl",
			MinJaccard: 0.5,
			Alpha:      0.05,
		},
		Store: StoreConfig{Path: "prophet.db"},
	}
}

// Load reads a YAML config file, applies environment overrides and
// validates the result. An empty path loads defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Logging.Level = getEnv("PROPHET_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("PROPHET_LOG_FORMAT", c.Logging.Format)
	c.Profiles.Normalization = getEnv("PROPHET_NORMALIZATION", c.Profiles.Normalization)
	c.Profiles.NoiseFloor = getEnvAsFloat("PROPHET_NOISE_FLOOR", c.Profiles.NoiseFloor)
	c.Features.Window = getEnvAsInt("PROPHET_WINDOW", c.Features.Window)
	c.Features.BatchSize = getEnvAsInt("PROPHET_BATCH_SIZE", c.Features.BatchSize)
	c.Features.Workers = getEnvAsInt("PROPHET_WORKERS", c.Features.Workers)
	c.Classifier.ModelPath = getEnv("PROPHET_MODEL_PATH", c.Classifier.ModelPath)
	c.Classifier.NumTrees = getEnvAsInt("PROPHET_NUM_TREES", c.Classifier.NumTrees)
	c.Classifier.TargetFDR = getEnvAsFloat("PROPHET_TARGET_FDR", c.Classifier.TargetFDR)
	c.Assembler.MinCohesion = getEnvAsFloat("PROPHET_MIN_COHESION", c.Assembler.MinCohesion)
	c.Differential.Baseline = getEnv("PROPHET_BASELINE", c.Differential.Baseline)
	c.Differential.Alpha = getEnvAsFloat("PROPHET_ALPHA", c.Differential.Alpha)
	c.Store.Path = getEnv("PROPHET_STORE_PATH", c.Store.Path)
}

// Validate checks parameter ranges.
func (c *Config) Validate() error {
	switch c.Profiles.Normalization {
	case "total", "max", "none":
	default:
		return models.NewConfigurationError("normalization", "must be total, max or none, got %q", c.Profiles.Normalization)
	}
	if c.Profiles.NoiseFloor < 0 {
		return models.NewConfigurationError("noise_floor", "must be non-negative, got %v", c.Profiles.NoiseFloor)
	}
	if c.Features.Window < 2 {
		return models.NewConfigurationError("window", "must be at least 2, got %d", c.Features.Window)
	}
	if c.Features.Workers < 1 {
		return models.NewConfigurationError("workers", "must be positive, got %d", c.Features.Workers)
	}
	if c.Classifier.Folds < 2 {
		return models.NewConfigurationError("folds", "must be at least 2, got %d", c.Classifier.Folds)
	}
	if c.Classifier.TargetFDR <= 0 || c.Classifier.TargetFDR >= 1 {
		return models.NewConfigurationError("target_fdr", "must be in (0, 1), got %v", c.Classifier.TargetFDR)
	}
	if c.Assembler.MinCohesion < 0 || c.Assembler.MinCohesion > 1 {
		return models.NewConfigurationError("min_cohesion", "must be in [0, 1], got %v", c.Assembler.MinCohesion)
	}
	if c.Differential.MinJaccard < 0 || c.Differential.MinJaccard > 1 {
		return models.NewConfigurationError("min_jaccard", "must be in [0, 1], got %v", c.Differential.MinJaccard)
	}
	if c.Differential.Alpha <= 0 || c.Differential.Alpha >= 1 {
		return models.NewConfigurationError("alpha", "must be in (0, 1), got %v", c.Differential.Alpha)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
