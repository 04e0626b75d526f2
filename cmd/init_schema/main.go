package main

import (
	"context"
	"flag"
	"os"

	"github.com/athapong/cardiograph/pkg/graph/storage"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	envFile = flag.String("env", ".env", "Path to environment file")
	reset   = flag.Bool("reset", false, "Wipe the entire graph before initializing the schema")
	confirm = flag.Bool("confirm", false, "Required together with -reset; a reset is irreversible")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := godotenv.Load(*envFile); err != nil {
		logger.Warnf("Could not load env file %s: %v", *envFile, err)
	}

	store, err := storage.NewNeo4jStore(
		envOr("NEO4J_URI", "bolt://localhost:7687"),
		envOr("NEO4J_USER", "neo4j"),
		os.Getenv("NEO4J_PASSWORD"),
	)
	if err != nil {
		logger.Fatalf("Failed to create Neo4j store: %v", err)
	}

	ctx := context.Background()
	if err := store.Connect(ctx); err != nil {
		logger.Fatalf("Failed to connect to Neo4j: %v", err)
	}
	defer store.Close()

	if *reset {
		if !*confirm {
			logger.Fatal("-reset wipes the entire graph; re-run with -confirm to proceed")
		}
		logger.Warn("Deleting all nodes and relationships")
		if err := store.Reset(ctx); err != nil {
			logger.Fatalf("Reset failed: %v", err)
		}
	}

	if err := store.InitSchema(ctx); err != nil {
		logger.Fatalf("Schema initialization failed: %v", err)
	}

	logger.Info("Schema initialized")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
