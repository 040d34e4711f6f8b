package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"fociclust/pkg/clustering"
	"fociclust/pkg/labelmask"
)

// writeMask saves a mask with 2x2 objects at the given corners, labelled in order
func writeMask(t *testing.T, path string, corners [][2]int, labels []int) {
	t.Helper()
	m := labelmask.New(64, 48, 1)
	for i, c := range corners {
		for dy := 0; dy < 2; dy++ {
			for dx := 0; dx < 2; dx++ {
				m.Set(c[0]+dx, c[1]+dy, 0, labels[i])
			}
		}
	}
	if err := m.WritePNG(path); err != nil {
		t.Fatalf("Failed to write test mask: %v", err)
	}
}

func testParams(t *testing.T) *Params {
	tmpDir := t.TempDir()
	params := &Params{
		InputDir:                filepath.Join(tmpDir, "input"),
		OutputDir:               filepath.Join(tmpDir, "output"),
		IntermediaryDir:         filepath.Join(tmpDir, "intermediary"),
		NumWorkers:              2,
		Seed:                    7,
		SaveIntermediaryResults: true,
		Clustering:              clustering.DefaultParams(),
	}
	params.Clustering.MaxClusters = 2
	if err := os.MkdirAll(params.InputDir, 0755); err != nil {
		t.Fatalf("Failed to create input dir: %v", err)
	}
	return params
}

var clump = [][2]int{{10, 10}, {16, 10}, {10, 16}, {16, 16}}

// TestProcess runs the whole pipeline on generated masks
// This test verifies that every output file is produced
func TestProcess(t *testing.T) {
	// Skip this test for regular unit testing, as it is slow and comprehensive
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	params := testParams(t)
	params.Plot = true
	params.Report = true
	writeMask(t, filepath.Join(params.InputDir, "cell_10.png"), clump, []int{1, 2, 3, 4})
	writeMask(t, filepath.Join(params.InputDir, "cell_2.png"), clump, []int{1, 2, 3, 4})

	results, err := NewRunner(params).Process(context.Background())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Name != "cell_2" || results[1].Name != "cell_10" {
		t.Errorf("Expected numeric input order, got %s, %s", results[0].Name, results[1].Name)
	}

	for _, res := range results {
		if res.Objects != 4 {
			t.Errorf("%s: expected 4 objects, got %d", res.Name, res.Objects)
		}
		if res.Clusters < 1 || res.Clusters > params.Clustering.MaxClusters {
			t.Errorf("%s: expected 1..%d clusters, got %d", res.Name, params.Clustering.MaxClusters, res.Clusters)
		}

		files := []string{
			filepath.Join(params.OutputDir, res.Name+"_clusters.png"),
			filepath.Join(params.OutputDir, res.Name+"_stats.csv"),
			filepath.Join(params.OutputDir, res.Name+"_report.html"),
			filepath.Join(params.IntermediaryDir, "01_input", res.Name+".png"),
			filepath.Join(params.IntermediaryDir, "02_basic", res.Name+".png"),
			filepath.Join(params.IntermediaryDir, "03_complex", res.Name+".png"),
			filepath.Join(params.IntermediaryDir, "04_plot", res.Name+".png"),
		}
		for _, f := range files {
			if _, err := os.Stat(f); os.IsNotExist(err) {
				t.Errorf("Expected output file does not exist: %s", f)
			}
		}

		clusters, err := labelmask.ReadPNG(filepath.Join(params.OutputDir, res.Name+"_clusters.png"))
		if err != nil {
			t.Fatalf("Failed to read clusters: %v", err)
		}
		if k, err := clusters.ValidateDense(); err != nil || k != res.Clusters {
			t.Errorf("%s: expected dense cluster ids 1..%d, got %d (%v)", res.Name, res.Clusters, k, err)
		}
	}
}

// TestProcessRelabelsSparseMasks checks that gaps in the input labels are tolerated
func TestProcessRelabelsSparseMasks(t *testing.T) {
	params := testParams(t)
	params.SaveIntermediaryResults = false
	writeMask(t, filepath.Join(params.InputDir, "sparse.png"), clump[:2], []int{3, 7})

	results, err := NewRunner(params).Process(context.Background())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if results[0].Objects != 2 {
		t.Errorf("Expected 2 objects after relabeling, got %d", results[0].Objects)
	}
}

func TestProcessWritesManifest(t *testing.T) {
	params := testParams(t)
	params.SaveIntermediaryResults = false
	writeMask(t, filepath.Join(params.InputDir, "a.png"), clump[:1], []int{1})
	if err := os.WriteFile(filepath.Join(params.InputDir, "broken.png"), []byte("not a png"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	runner := NewRunner(params)
	if _, err := runner.Process(context.Background()); err == nil {
		t.Errorf("Expected an error for the broken input")
	}

	m, err := LoadManifest(filepath.Join(params.OutputDir, ManifestFile))
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if m.RunID != runner.RunID() || m.RunID == "" {
		t.Errorf("Expected run id %q, got %q", runner.RunID(), m.RunID)
	}
	if m.Seed != 7 {
		t.Errorf("Expected seed 7, got %d", m.Seed)
	}
	if len(m.Images) != 2 {
		t.Fatalf("Expected 2 manifest entries, got %d", len(m.Images))
	}
	// unnumbered names sort by name
	if m.Images[0].Name != "a" || m.Images[0].Error != "" || m.Images[0].Clusters != 1 {
		t.Errorf("Unexpected entry for a: %+v", m.Images[0])
	}
	if m.Images[1].Name != "broken" || m.Images[1].Error == "" {
		t.Errorf("Expected an error entry for broken, got %+v", m.Images[1])
	}
	if m.Finished.Before(m.Started) {
		t.Errorf("Expected finish %v after start %v", m.Finished, m.Started)
	}
}

func TestRunIDsDiffer(t *testing.T) {
	params := testParams(t)
	if NewRunner(params).RunID() == NewRunner(params).RunID() {
		t.Errorf("Expected a fresh run id per runner")
	}
}

func TestProcessNoInputs(t *testing.T) {
	params := testParams(t)
	if _, err := NewRunner(params).Process(context.Background()); err == nil {
		t.Error("Expected error for an empty input directory, got nil")
	}
}

func TestProcessInvalidParams(t *testing.T) {
	params := testParams(t)
	params.Clustering.NumRepeats = 0
	writeMask(t, filepath.Join(params.InputDir, "a.png"), clump, []int{1, 2, 3, 4})
	if _, err := NewRunner(params).Process(context.Background()); err == nil {
		t.Error("Expected error for invalid clustering parameters, got nil")
	}
}

func TestProcessCancelled(t *testing.T) {
	params := testParams(t)
	params.SaveIntermediaryResults = false
	writeMask(t, filepath.Join(params.InputDir, "a.png"), clump[:1], []int{1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewRunner(params).Process(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestExtractNumber(t *testing.T) {
	testCases := []struct {
		filename string
		want     int
	}{
		{"cell_12.png", 12},
		{"/data/plate1/well_03.png", 3},
		{"mask.png", 0},
		{"a1b2.png", 12},
	}
	for _, tc := range testCases {
		if got := extractNumber(tc.filename); got != tc.want {
			t.Errorf("extractNumber(%q): expected %d, got %d", tc.filename, tc.want, got)
		}
	}
}

func TestLoadInputsSkipsOtherFiles(t *testing.T) {
	params := testParams(t)
	writeMask(t, filepath.Join(params.InputDir, "b.png"), clump[:1], []int{1})
	writeMask(t, filepath.Join(params.InputDir, "a.PNG"), clump[:1], []int{1})
	if err := os.WriteFile(filepath.Join(params.InputDir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(params.InputDir, "sub.png"), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}

	r := NewRunner(params)
	if err := r.loadInputs(); err != nil {
		t.Fatalf("loadInputs failed: %v", err)
	}
	if len(r.files) != 2 {
		t.Fatalf("Expected 2 inputs, got %v", r.files)
	}
	if filepath.Base(r.files[0]) != "a.PNG" {
		t.Errorf("Expected name order for unnumbered files, got %v", r.files)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	failed := errors.New("disk full")

	testCases := []struct {
		name    string
		path    string
		write   func(io.Writer) error
		wantErr error
	}{
		{"ok", filepath.Join(dir, "ok.txt"), func(w io.Writer) error {
			_, err := io.WriteString(w, "id\n")
			return err
		}, nil},
		{"write fails", filepath.Join(dir, "write.txt"), func(io.Writer) error { return failed }, failed},
		// the deferred close then fails on an already closed file
		{"close fails", filepath.Join(dir, "close.txt"), func(w io.Writer) error {
			return w.(io.Closer).Close()
		}, os.ErrClosed},
	}
	for _, tc := range testCases {
		err := writeFile(tc.path, tc.write)
		if tc.wantErr == nil {
			if err != nil {
				t.Errorf("%s: expected no error, got %v", tc.name, err)
			}
			continue
		}
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.wantErr, err)
		}
	}

	if err := writeFile(filepath.Join(dir, "missing", "x.txt"), func(io.Writer) error { return nil }); err == nil {
		t.Error("Expected error when the directory does not exist, got nil")
	}
	data, err := os.ReadFile(filepath.Join(dir, "ok.txt"))
	if err != nil || string(data) != "id\n" {
		t.Errorf("Expected written content, got %q (%v)", data, err)
	}
}
