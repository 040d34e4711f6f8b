package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"fociclust/pkg/config"
	"fociclust/pkg/pipeline"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing object label masks (16-bit PNG)")
	outputDir := flag.String("output", "clusters", "Directory for cluster masks and statistics")
	configPath := flag.String("config", "fociclust.yaml", "YAML configuration file (defaults are used if missing)")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file to -config and exit")
	numWorkers := flag.Int("workers", 0, "Number of images clustered in parallel (default: from config)")
	seed := flag.Uint64("seed", 0, "Random seed (default: from config, 0 picks one per run)")
	maxClusters := flag.Int("max-clusters", 0, "Upper bound on clusters per image (default: from config)")
	seedClusters := flag.Int("seed-clusters", 0, "Start from k-means++ seeding with this many clusters instead of basic clustering (default: from config)")
	saveIntermediary := flag.Bool("save-intermediary", false, "Save intermediary results during processing")
	intermediaryDir := flag.String("intermediary-dir", "intermediary_results", "Directory to save intermediary results")
	plot := flag.Bool("plot", false, "Plot object centroids per image (with -save-intermediary)")
	report := flag.Bool("report", false, "Write an HTML chart report per image")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Explicit flags override the configuration file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Processing.NumWorkers = *numWorkers
		case "seed":
			cfg.Processing.Seed = *seed
		case "max-clusters":
			cfg.Clustering.MaxClusters = *maxClusters
		case "seed-clusters":
			cfg.Clustering.SeedClusters = *seedClusters
		case "save-intermediary":
			cfg.Output.SaveIntermediaryResults = *saveIntermediary
		case "plot":
			cfg.Output.Plot = *plot
		case "report":
			cfg.Output.Report = *report
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("FOCICLUST: RECURSIVE OBJECT CLUSTERING FOR LABEL MASKS")
	fmt.Println("================================")

	params := &pipeline.Params{
		InputDir:                *inputDir,
		OutputDir:               *outputDir,
		NumWorkers:              cfg.Processing.NumWorkers,
		Seed:                    cfg.Processing.Seed,
		SaveIntermediaryResults: cfg.Output.SaveIntermediaryResults,
		IntermediaryDir:         *intermediaryDir,
		Plot:                    cfg.Output.Plot,
		Report:                  cfg.Output.Report,
		Verbose:                 cfg.Output.Verbose,
		Clustering:              cfg.ClusteringParams(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("Starting clustering...")
	startTime := time.Now()
	runner := pipeline.NewRunner(params)
	results, err := runner.Process(ctx)
	processingTime := time.Since(startTime)

	fmt.Printf("\n%-24s %8s %8s %8s %8s\n", "image", "objects", "basic", "final", "ratio")
	for _, res := range results {
		if res.Name == "" {
			continue
		}
		if res.Err != nil {
			fmt.Printf("%-24s failed: %v\n", res.Name, res.Err)
			continue
		}
		fmt.Printf("%-24s %8d %8d %8d %8.3f\n", res.Name, res.Objects, res.BasicClusters, res.Clusters, res.Ratio)
	}
	if err != nil {
		log.Fatalf("Clustering failed: %v", err)
	}

	fmt.Printf("\nClustering completed successfully in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Results saved to: %s (run %s, see %s)\n", *outputDir, runner.RunID(), pipeline.ManifestFile)

	// Print information about intermediary results if saved
	if params.SaveIntermediaryResults {
		fmt.Println("\nIntermediary results saved to:")
		fmt.Printf("%s\n", *intermediaryDir)
		fmt.Println("The following stages were saved:")
		fmt.Println("- 01_input: Input object masks")
		fmt.Println("- 02_basic: Initial clustering (blur based, or k-means++ seeds)")
		fmt.Println("- 03_complex: Final mixture based clustering")
		if params.Plot {
			fmt.Println("- 04_plot: Object centroid scatter plots")
		}
	}
}
