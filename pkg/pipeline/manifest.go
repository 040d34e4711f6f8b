package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the name of the run manifest written into OutputDir
const ManifestFile = "manifest.yaml"

// Manifest records one pipeline run. Seed is the seed actually used, so a
// run started with seed 0 can be repeated.
type Manifest struct {
	RunID    string          `yaml:"runID"`
	Started  time.Time       `yaml:"started"`
	Finished time.Time       `yaml:"finished"`
	Seed     uint64          `yaml:"seed"`
	Workers  int             `yaml:"workers"`
	Images   []ManifestImage `yaml:"images"`
}

// ManifestImage is the manifest entry of one input image
type ManifestImage struct {
	Name          string  `yaml:"name"`
	Objects       int     `yaml:"objects"`
	BasicClusters int     `yaml:"basicClusters"`
	Clusters      int     `yaml:"clusters"`
	Ratio         float64 `yaml:"ratio"`
	Error         string  `yaml:"error,omitempty"`
}

func newManifestImage(res ImageResult) ManifestImage {
	img := ManifestImage{
		Name:          res.Name,
		Objects:       res.Objects,
		BasicClusters: res.BasicClusters,
		Clusters:      res.Clusters,
		Ratio:         res.Ratio,
	}
	if res.Err != nil {
		img.Error = res.Err.Error()
	}
	return img
}

// writeManifest saves m as YAML into dir
func writeManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("error marshaling manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644); err != nil {
		return fmt.Errorf("error writing manifest: %w", err)
	}
	return nil
}

// LoadManifest reads a manifest written by a previous run
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading manifest: %w", err)
	}
	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("error parsing manifest: %w", err)
	}
	return m, nil
}
