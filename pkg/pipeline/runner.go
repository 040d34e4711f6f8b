// Package pipeline runs the clustering engine over a directory of label
// mask images and writes the per-image results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fociclust/pkg/clustering"
	"fociclust/pkg/labelmask"
	"fociclust/pkg/quantify"
	"fociclust/pkg/visualization"
)

// Params holds the pipeline configuration.
type Params struct {
	// InputDir is the directory containing the object label masks as 16-bit
	// grayscale PNG files, one image per mask.
	InputDir string

	// OutputDir receives <name>_clusters.png and <name>_stats.csv per image
	// and the run manifest.
	OutputDir string

	// NumWorkers specifies how many images are clustered in parallel.
	NumWorkers int

	// Seed initializes the random source of every image. Image i uses the
	// stream (Seed, i), so results do not depend on scheduling. Zero draws
	// a fresh seed per run.
	Seed uint64

	// SaveIntermediaryResults determines whether to save the input, basic
	// and complex clusterings of every image.
	SaveIntermediaryResults bool

	// IntermediaryDir is where intermediary results are saved.
	// Only used when SaveIntermediaryResults is true.
	IntermediaryDir string

	// Plot writes a centroid scatter plot per image. Only used when
	// SaveIntermediaryResults is true.
	Plot bool

	// Report writes an HTML chart page, <name>_report.html, per image.
	Report bool

	// Verbose routes the engine's progress messages to the standard logger.
	Verbose bool

	// Clustering configures the engine.
	Clustering clustering.Params
}

// ImageResult summarizes the clustering of one input image
type ImageResult struct {
	Name          string
	Objects       int
	// BasicClusters counts the clusters complex clustering started from
	BasicClusters int
	Clusters      int
	Ratio         float64
	LogLikelihood float64
	Err           error
}

// Runner clusters every mask in a directory.
//
// The pipeline consists of these steps per image:
// 1. Loading the label mask and making its labels dense
// 2. Basic (blur based) clustering
// 3. Complex (mixture based) clustering
// 4. Writing the cluster mask and the per-cluster statistics
type Runner struct {
	// params stores the pipeline configuration
	params *Params

	// runID identifies this run in the manifest
	runID string

	// files holds the input paths in processing order
	files []string
}

// NewRunner creates a new runner with the provided parameters.
func NewRunner(params *Params) *Runner {
	return &Runner{params: params, runID: uuid.NewString()}
}

// RunID returns the identifier recorded in the run manifest
func (r *Runner) RunID() string { return r.runID }

// Process runs the pipeline over every input image. Cancelling ctx stops
// new images from being scheduled; images already running finish. Images
// that fail are reported in their ImageResult and in the returned error,
// and do not stop the others. A manifest of the run is written into
// OutputDir unless the run was cancelled.
func (r *Runner) Process(ctx context.Context) ([]ImageResult, error) {
	started := time.Now()
	if err := r.params.Clustering.Validate(); err != nil {
		return nil, fmt.Errorf("invalid clustering parameters: %w", err)
	}
	if err := r.loadInputs(); err != nil {
		return nil, fmt.Errorf("failed to list inputs: %w", err)
	}
	if err := os.MkdirAll(r.params.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if r.params.SaveIntermediaryResults {
		if err := os.MkdirAll(r.params.IntermediaryDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create intermediary directory: %w", err)
		}
	}

	seed := r.params.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	workers := min(max(r.params.NumWorkers, 1), len(r.files))
	log.Printf("Run %s: clustering %d images with %d workers (seed %d)", r.runID, len(r.files), workers, seed)

	results := make([]ImageResult, len(r.files))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = r.processImage(i, rand.New(rand.NewPCG(seed, uint64(i))))
			}
		}()
	}

schedule:
	for i := range r.files {
		select {
		case <-ctx.Done():
			break schedule
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}

	manifest := &Manifest{
		RunID:    r.runID,
		Started:  started,
		Finished: time.Now(),
		Seed:     seed,
		Workers:  workers,
	}
	var errs []error
	for _, res := range results {
		manifest.Images = append(manifest.Images, newManifestImage(res))
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Name, res.Err))
		}
	}
	if len(errs) > 0 {
		errs = []error{fmt.Errorf("%d of %d images failed: %w", len(errs), len(results), errors.Join(errs...))}
	}
	if err := writeManifest(r.params.OutputDir, manifest); err != nil {
		errs = append(errs, err)
	}
	return results, errors.Join(errs...)
}

// loadInputs collects the PNG files of InputDir, ordered by the number in
// their name and then by name.
func (r *Runner) loadInputs() error {
	entries, err := os.ReadDir(r.params.InputDir)
	if err != nil {
		return err
	}

	r.files = r.files[:0]
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".png") {
			continue
		}
		r.files = append(r.files, filepath.Join(r.params.InputDir, entry.Name()))
	}
	if len(r.files) == 0 {
		return fmt.Errorf("no PNG masks found in %s", r.params.InputDir)
	}

	sort.SliceStable(r.files, func(i, j int) bool {
		ni, nj := extractNumber(r.files[i]), extractNumber(r.files[j])
		if ni != nj {
			return ni < nj
		}
		return r.files[i] < r.files[j]
	})
	return nil
}

// extractNumber returns the digits of a file name read as one number, 0 if there are none
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	var digits strings.Builder
	for _, c := range base {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}

	if digits.Len() > 0 {
		if num, err := strconv.Atoi(digits.String()); err == nil {
			return num
		}
	}
	return 0
}

// processImage clusters input i with its own Clusterer and writes the outputs
func (r *Runner) processImage(i int, rng *rand.Rand) ImageResult {
	path := r.files[i]
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	res := ImageResult{Name: name}

	// Step 1: Load the mask
	objects, err := labelmask.ReadPNG(path)
	if err != nil {
		res.Err = fmt.Errorf("failed to load mask: %w", err)
		return res
	}
	if _, err := objects.ValidateDense(); err != nil {
		n := objects.Relabel()
		log.Printf("%s: labels were not dense, relabeled to 1..%d", name, n)
	}
	res.Objects = objects.MaxLabel()
	r.saveIntermediaryResult("01_input", name, visualization.NewMaskViewer(objects), false)

	params := r.params.Clustering
	if r.params.Verbose {
		params.Logf = func(format string, args ...any) {
			log.Printf(name+": "+format, args...)
		}
	}
	clusterer := clustering.NewClusterer(params, rng)

	// Step 2: Initial clustering
	basic, k, err := clusterer.InitialClustering(objects)
	if err != nil {
		res.Err = fmt.Errorf("initial clustering: %w", err)
		return res
	}
	res.BasicClusters = k
	r.saveIntermediaryResult("02_basic", name, visualization.NewMaskViewer(basic), false)

	// Step 3: Complex clustering
	result, err := clusterer.ComplexClustering(objects, basic)
	if err != nil {
		res.Err = fmt.Errorf("complex clustering: %w", err)
		return res
	}
	res.Clusters = result.K
	res.Ratio = result.Ratio
	res.LogLikelihood = result.LogLikelihood
	r.saveIntermediaryResult("03_complex", name, visualization.NewViewer(result), true)
	if r.params.Plot && r.params.SaveIntermediaryResults {
		plotFile := filepath.Join(r.params.IntermediaryDir, "04_plot", name+".png")
		if err := visualization.NewViewer(result).PlotCentroids(plotFile); err != nil {
			log.Printf("Warning: Failed to plot centroids of %s: %v", name, err)
		}
	}

	// Step 4: Write results
	if err := result.Clusters.WritePNG(filepath.Join(r.params.OutputDir, name+"_clusters.png")); err != nil {
		res.Err = fmt.Errorf("failed to write clusters: %w", err)
		return res
	}
	stats := quantify.Measure(result)
	if err := r.writeStats(name, stats); err != nil {
		res.Err = err
		return res
	}
	if r.params.Report {
		if err := r.writeReport(name, stats); err != nil {
			log.Printf("Warning: Failed to write report of %s: %v", name, err)
		}
	}

	log.Printf("%s: %d objects, %d basic clusters, %d clusters (ratio %.3f)",
		name, res.Objects, res.BasicClusters, res.Clusters, res.Ratio)
	return res
}

func (r *Runner) writeStats(name string, stats []quantify.ClusterStats) error {
	path := filepath.Join(r.params.OutputDir, name+"_stats.csv")
	err := writeFile(path, func(w io.Writer) error {
		return quantify.WriteCSV(w, stats)
	})
	if err != nil {
		return fmt.Errorf("failed to write stats: %w", err)
	}
	return nil
}

func (r *Runner) writeReport(name string, stats []quantify.ClusterStats) error {
	return writeFile(filepath.Join(r.params.OutputDir, name+"_report.html"), func(w io.Writer) error {
		return visualization.WriteReport(w, name, stats)
	})
}

// writeFile creates path and fills it with write. A failed close is
// reported like a failed write.
func writeFile(path string, write func(io.Writer) error) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("error closing %s: %w", path, cerr)
		}
	}()
	return write(file)
}

// saveIntermediaryResult renders the first plane of one stage as a colored
// PNG, with cluster ids written on it when annotate is set. Failures are
// logged, never fatal.
func (r *Runner) saveIntermediaryResult(stage, name string, viewer *visualization.Viewer, annotate bool) {
	if !r.params.SaveIntermediaryResults {
		return
	}

	stageDir := filepath.Join(r.params.IntermediaryDir, stage)
	if err := os.MkdirAll(stageDir, 0755); err != nil {
		log.Printf("Warning: Failed to create intermediary directory: %v", err)
		return
	}

	render := viewer.RenderClusters
	if annotate {
		render = viewer.RenderAnnotated
	}
	img, err := render(0)
	if err != nil {
		log.Printf("Warning: Failed to render %s of %s: %v", stage, name, err)
		return
	}
	if err := viewer.SaveImage(img, filepath.Join(stageDir, name+".png")); err != nil {
		log.Printf("Warning: Failed to save %s of %s: %v", stage, name, err)
	}
}
