// Package config provides configuration loading and management for fociclust.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"fociclust/pkg/clustering"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Clustering search parameters
	Clustering struct {
		// MaxClusters bounds the number of search iterations and of final clusters
		MaxClusters int `yaml:"maxClusters"`

		// NumRepeats is how many mixture fits are run per candidate sub-cluster count
		NumRepeats int `yaml:"numRepeats"`

		// SplitRatioCutoff is the separation score below which a split is accepted
		SplitRatioCutoff float64 `yaml:"splitRatioCutoff"`

		// MaxStallIterations stops the search after this many iterations without improvement
		MaxStallIterations int `yaml:"maxStallIterations"`

		// SeedClusters seeds the search with k-means++ instead of basic clustering when positive
		SeedClusters int `yaml:"seedClusters"`
	} `yaml:"clustering"`

	// Mixture fit parameters
	Fitter struct {
		// PopulationPerCluster is the optimizer population per mixture component
		PopulationPerCluster int `yaml:"populationPerCluster"`

		// ScaleFactor is the differential weight of the optimizer
		ScaleFactor float64 `yaml:"scaleFactor"`

		// CrossoverRate is the binomial crossover probability of the optimizer
		CrossoverRate float64 `yaml:"crossoverRate"`

		// MaxIterations is the number of optimizer generations per fit
		MaxIterations int `yaml:"maxIterations"`

		// Tolerance is the relative fitness spread at which a fit stops early
		Tolerance float64 `yaml:"tolerance"`

		// VarianceTolerance is the smallest variance, in px², a component may take
		VarianceTolerance float64 `yaml:"varianceTolerance"`

		// MaxAttempts bounds the optimizer restarts spent looking for a finite fit
		MaxAttempts int `yaml:"maxAttempts"`
	} `yaml:"fitter"`

	// Basic (blur based) clustering parameters
	Basic struct {
		// BlurDivisor sets the blur sigma to image width / BlurDivisor
		BlurDivisor float64 `yaml:"blurDivisor"`

		// Threshold is the fraction of the blurred maximum that still counts as a cluster
		Threshold float64 `yaml:"threshold"`
	} `yaml:"basic"`

	// Processing parameters
	Processing struct {
		// NumWorkers specifies how many images are clustered in parallel
		NumWorkers int `yaml:"numWorkers"`

		// Seed initializes the random source; 0 picks a seed per run
		Seed uint64 `yaml:"seed"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// SaveIntermediaryResults determines whether to save intermediary processing results
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// Plot writes a centroid scatter plot next to every result
		Plot bool `yaml:"plot"`

		// Report writes an HTML chart page next to every result
		Report bool `yaml:"report"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}
	params := clustering.DefaultParams()

	// Set default clustering parameters
	cfg.Clustering.MaxClusters = params.MaxClusters
	cfg.Clustering.NumRepeats = params.NumRepeats
	cfg.Clustering.SplitRatioCutoff = params.SplitRatioCutoff
	cfg.Clustering.MaxStallIterations = params.MaxStallIterations
	cfg.Clustering.SeedClusters = params.SeedClusters

	// Set default fitter parameters
	cfg.Fitter.PopulationPerCluster = params.Fitter.PopulationPerCluster
	cfg.Fitter.ScaleFactor = params.Fitter.ScaleFactor
	cfg.Fitter.CrossoverRate = params.Fitter.CrossoverRate
	cfg.Fitter.MaxIterations = params.Fitter.MaxIterations
	cfg.Fitter.Tolerance = params.Fitter.Tolerance
	cfg.Fitter.VarianceTolerance = params.Fitter.VarianceTolerance
	cfg.Fitter.MaxAttempts = params.Fitter.MaxAttempts

	// Set default basic clustering parameters
	cfg.Basic.BlurDivisor = params.BlurDivisor
	cfg.Basic.Threshold = params.BasicThreshold

	// Set default processing parameters
	cfg.Processing.NumWorkers = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.Seed = 0

	// Set default output parameters
	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.Verbose = true
	cfg.Output.Plot = false
	cfg.Output.Report = false

	return cfg
}

// Validate checks the configuration for values the engine cannot run with
func (c *Config) Validate() error {
	if c.Processing.NumWorkers < 1 {
		return fmt.Errorf("processing.numWorkers must be at least 1, got %d", c.Processing.NumWorkers)
	}
	if c.Clustering.SplitRatioCutoff <= 0 {
		return fmt.Errorf("clustering.splitRatioCutoff must be positive, got %f", c.Clustering.SplitRatioCutoff)
	}
	if c.Fitter.MaxAttempts < 1 {
		return fmt.Errorf("fitter.maxAttempts must be at least 1, got %d", c.Fitter.MaxAttempts)
	}
	if c.Fitter.MaxIterations < 1 {
		return fmt.Errorf("fitter.maxIterations must be at least 1, got %d", c.Fitter.MaxIterations)
	}
	if err := c.ClusteringParams().Validate(); err != nil {
		return fmt.Errorf("invalid clustering configuration: %w", err)
	}
	return nil
}

// ClusteringParams converts the configuration into engine parameters.
// Logging is left disabled; callers set Params.Logf themselves.
func (c *Config) ClusteringParams() clustering.Params {
	return clustering.Params{
		MaxClusters:        c.Clustering.MaxClusters,
		NumRepeats:         c.Clustering.NumRepeats,
		SplitRatioCutoff:   c.Clustering.SplitRatioCutoff,
		MaxStallIterations: c.Clustering.MaxStallIterations,
		BlurDivisor:        c.Basic.BlurDivisor,
		BasicThreshold:     c.Basic.Threshold,
		SeedClusters:       c.Clustering.SeedClusters,
		Fitter: clustering.FitterParams{
			PopulationPerCluster: c.Fitter.PopulationPerCluster,
			ScaleFactor:          c.Fitter.ScaleFactor,
			CrossoverRate:        c.Fitter.CrossoverRate,
			MaxIterations:        c.Fitter.MaxIterations,
			Tolerance:            c.Fitter.Tolerance,
			VarianceTolerance:    c.Fitter.VarianceTolerance,
			MaxAttempts:          c.Fitter.MaxAttempts,
		},
	}
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
