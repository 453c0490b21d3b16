package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/sanonone/contigraph/pkg/pipeline"
)

func main() {
	configPath := flag.String("config", "", "Path of the YAML pipeline configuration (defaults are used when empty)")
	dataPath := flag.String("data", "", "Attribute store root, overrides dataset_path (zarr directory, .json or .yaml)")
	outPath := flag.String("out", "", "Must-link output file, overrides must_link_path")
	verbose := flag.Bool("v", false, "Enable debug logging")

	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := pipeline.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Cannot load configuration: %v", err)
	}
	if *dataPath != "" {
		cfg.DatasetPath = *dataPath
	}
	if *outPath != "" {
		cfg.MustLinkPath = *outPath
	}

	ds, err := pipeline.Build(cfg)
	if err != nil {
		log.Fatalf("Dataset construction failed: %v", err)
	}

	st := ds.Stats()
	fmt.Printf("run            %s\n", ds.RunID())
	fmt.Printf("entities       %d loaded, %d retained, %d removed\n", st.Loaded, st.Retained, st.Removed)
	fmt.Printf("clusters       %d (initial noise %d, resolved %d)\n", st.Clusters, st.InitialNoise, st.Resolved)
	fmt.Printf("propagation    %d iterations, converged=%t\n", st.Iterations, st.Converged)
	fmt.Printf("edges          %d in graph, %d retained\n", st.GraphEdges, st.RetainedEdges)
	fmt.Printf("must-link      %s (%d lines)\n", st.MustLinkPath, st.MustLinkEdges)
	fmt.Printf("records        %d x (k=%d, dim=%d)\n", ds.Len(), ds.K(), ds.Dim())
}
