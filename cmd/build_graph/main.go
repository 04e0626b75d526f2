package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/athapong/cardiograph/pkg/graph"
	"github.com/athapong/cardiograph/pkg/graph/processors"
	"github.com/athapong/cardiograph/pkg/graph/storage"
	"github.com/athapong/cardiograph/pkg/graph/views"
	"github.com/athapong/cardiograph/pkg/graph/visualizer"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	envFile      = flag.String("env", ".env", "Path to environment file")
	rawDir       = flag.String("raw-dir", "data/raw", "Directory containing raw article JSON files")
	processedDir = flag.String("processed-dir", "data/processed", "Directory for stage result files")
	stage        = flag.String("stage", "all", "Stage to run: extract, relate, build, labels or all")
	storeKind    = flag.String("store", "neo4j", "Graph store backend: neo4j or memory")
	visualize    = flag.Bool("visualize", false, "Generate a D3 visualization after building")
	vizEntity    = flag.String("viz-entity", "heart failure", "Central entity for the visualization")
	vizView      = flag.String("viz-view", "complete", "View kind for the visualization: system1, system2 or complete")
	vizOutput    = flag.String("viz-output", "knowledge_graph.html", "Output file for the visualization")
	logLevel     = flag.String("log-level", "info", "Logging level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatalf("Invalid log level: %v", err)
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := godotenv.Load(*envFile); err != nil {
		logger.Warnf("Could not load env file %s: %v", *envFile, err)
	}

	ctx := context.Background()
	entityResults := storage.NewResultStore(filepath.Join(*processedDir, "extracted_entities.json"))
	relationResults := storage.NewResultStore(filepath.Join(*processedDir, "extracted_relationships.json"))

	runExtract := func() graph.StageResults {
		pipeline := graph.NewPipeline(processors.NewEntityTagger(), processors.NewRelationshipInferrer())

		docs, err := pipeline.LoadRawDocuments(*rawDir)
		if err != nil {
			logger.Fatalf("Failed to load raw documents: %v", err)
		}
		if len(docs) == 0 {
			logger.Fatal("No documents found in raw directory")
		}

		results, err := pipeline.ExtractEntities(ctx, docs)
		if err != nil {
			logger.Fatalf("Entity extraction failed: %v", err)
		}
		if err := entityResults.Store(results); err != nil {
			logger.Fatalf("Failed to store entity results: %v", err)
		}
		logger.Infof("Extracted entities for %d articles", len(results))
		return results
	}

	runRelate := func(results graph.StageResults) graph.StageResults {
		pipeline := graph.NewPipeline(processors.NewEntityTagger(), processors.NewRelationshipInferrer())

		if results == nil {
			var err error
			results, err = entityResults.Load()
			if err != nil {
				logger.Fatalf("Failed to load entity results: %v", err)
			}
		}

		results, err := pipeline.InferRelationships(ctx, results)
		if err != nil {
			logger.Fatalf("Relationship inference failed: %v", err)
		}
		if err := relationResults.Store(results); err != nil {
			logger.Fatalf("Failed to store relationship results: %v", err)
		}
		logger.Infof("Inferred relationships for %d articles", len(results))
		return results
	}

	runBuild := func(results graph.StageResults) {
		if results == nil {
			var err error
			results, err = relationResults.Load()
			if err != nil {
				logger.Fatalf("Failed to load relationship results: %v", err)
			}
		}

		store := openStore(ctx, logger, *storeKind)
		defer store.Close()

		if err := store.InitSchema(ctx); err != nil {
			logger.Fatalf("Schema initialization failed: %v", err)
		}

		builder := graph.NewBuilder(store)
		stats, err := builder.Build(ctx, results)
		if err != nil {
			logger.Fatalf("Graph build failed: %v", err)
		}

		updated, err := builder.RecomputeDualProcessLabels(ctx)
		if err != nil {
			logger.Fatalf("Dual-process label pass failed: %v", err)
		}

		logger.Infof("Built graph: %d sources, %d entities, %d relationships (%d skipped), %d edges classified",
			stats.Sources, stats.Entities, stats.Relationships, stats.SkippedRelationships, updated)

		if *visualize {
			renderVisualization(ctx, logger, store)
		}
	}

	switch *stage {
	case "extract":
		runExtract()
	case "relate":
		runRelate(nil)
	case "build":
		runBuild(nil)
	case "labels":
		store := openStore(ctx, logger, *storeKind)
		defer store.Close()

		builder := graph.NewBuilder(store)
		updated, err := builder.RecomputeDualProcessLabels(ctx)
		if err != nil {
			logger.Fatalf("Dual-process label pass failed: %v", err)
		}
		logger.Infof("Reclassified %d edges", updated)
	case "all":
		runBuild(runRelate(runExtract()))
	default:
		logger.Fatalf("Unknown stage %q: expected extract, relate, build, labels or all", *stage)
	}
}

func renderVisualization(ctx context.Context, logger *logrus.Logger, store graph.GraphStore) {
	generator := views.NewGenerator(store)
	view, err := generator.View(ctx, *vizView, *vizEntity, nil, 0)
	if err != nil {
		logger.Errorf("Failed to generate view: %v", err)
		return
	}

	viz := visualizer.NewD3Visualizer(*vizOutput)
	if err := viz.Visualize(view); err != nil {
		logger.Errorf("Failed to render visualization: %v", err)
		return
	}
	logger.Infof("Visualization saved to %s", *vizOutput)
}

func openStore(ctx context.Context, logger *logrus.Logger, kind string) graph.GraphStore {
	switch kind {
	case "memory":
		return storage.NewMemoryStore()
	case "neo4j":
		store, err := storage.NewNeo4jStore(
			envOr("NEO4J_URI", "bolt://localhost:7687"),
			envOr("NEO4J_USER", "neo4j"),
			envOr("NEO4J_PASSWORD", ""),
		)
		if err != nil {
			logger.Fatalf("Failed to create Neo4j store: %v", err)
		}
		if err := store.Connect(ctx); err != nil {
			logger.Fatalf("Failed to connect to Neo4j: %v", err)
		}
		return store
	default:
		logger.Fatalf("Unknown store backend %q: expected neo4j or memory", kind)
		return nil
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
