package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/athapong/cardiograph/pkg/graph"
	"github.com/athapong/cardiograph/pkg/graph/storage"
	"github.com/athapong/cardiograph/pkg/graph/views"
	"github.com/athapong/cardiograph/tools"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	envFile := flag.String("env", ".env", "Path to environment file")
	storeKind := flag.String("store", "neo4j", "Graph store backend: neo4j or memory")
	enableSSE := flag.Bool("sse", false, "Enable SSE server")
	sseAddr := flag.String("sse-addr", ":8080", "Address for SSE server to listen on")
	sseBasePath := flag.String("sse-base-path", "/mcp", "Base path for SSE endpoints")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("Warning: Error loading env file %s: %v\n", *envFile, err)
	}

	store, err := openStore(*storeKind)
	if err != nil {
		log.Fatalf("Failed to open graph store: %v", err)
	}
	defer store.Close()

	generator := views.NewGenerator(store)

	// Create MCP server
	mcpServer := server.NewMCPServer(
		"cardiograph",
		"1.0.0",
		server.WithLogging(),
	)

	tools.RegisterGraphTools(mcpServer, generator)

	// Check if SSE server should be enabled
	if *enableSSE || os.Getenv("ENABLE_SSE") == "true" {
		sseServer := server.NewSSEServer(mcpServer, *sseBasePath)

		go func() {
			log.Printf("Starting SSE server on %s with base path %s", *sseAddr, *sseBasePath)
			if err := sseServer.Start(*sseAddr); err != nil {
				log.Fatalf("Failed to start SSE server: %v", err)
			}
		}()

		// Set up signal handling for graceful shutdown
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		sig := <-sigCh
		log.Printf("Received signal %v, shutting down...", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := sseServer.Shutdown(ctx); err != nil {
			log.Printf("Error during SSE server shutdown: %v", err)
		}
		log.Println("SSE server shutdown complete")
	} else {
		// Use stdio server as before
		if err := server.ServeStdio(mcpServer); err != nil {
			panic(fmt.Sprintf("Server error: %v", err))
		}
	}
}

func openStore(kind string) (graph.GraphStore, error) {
	switch kind {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "neo4j":
		store, err := storage.NewNeo4jStore(
			envOr("NEO4J_URI", "bolt://localhost:7687"),
			envOr("NEO4J_USER", "neo4j"),
			os.Getenv("NEO4J_PASSWORD"),
		)
		if err != nil {
			return nil, err
		}
		if err := store.Connect(context.Background()); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q: expected neo4j or memory", kind)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
