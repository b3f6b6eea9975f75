// Command parley-import loads knowledge entries from a JSON file into the
// configured storage backend, embedding each entry on the way in.
//
// The input file holds an array of entries:
//
//	[{"botId": "...", "category": "product_info", "title": "...", "content": "..."}]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/embedding"
	"github.com/parleyhq/parley/internal/knowledge"
	"github.com/parleyhq/parley/internal/llm"
	"github.com/parleyhq/parley/internal/storage"
	"github.com/parleyhq/parley/internal/storage/postgres"
	"github.com/parleyhq/parley/internal/storage/sqlite"
	"github.com/parleyhq/parley/pkg/types"
)

func main() {
	filePath := flag.String("file", "", "Path to the JSON file of knowledge entries (required)")
	flag.Parse()

	if *filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *filePath, err)
	}

	var entries []types.KnowledgeEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Fatalf("Failed to parse %s: %v", *filePath, err)
	}
	if len(entries) == 0 {
		log.Fatalf("No entries found in %s", *filePath)
	}

	store, err := openKnowledgeStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	embedClient, err := llm.NewEmbeddingClient(llm.ProviderConfig{
		Provider: cfg.Embedding.Provider,
		APIKey:   cfg.Embedding.GoogleAPIKey,
		Model:    embeddingModel(cfg),
		BaseURL:  embeddingBaseURL(cfg),
	})
	if err != nil {
		log.Fatalf("Failed to create embedding client: %v", err)
	}
	embedder, err := embedding.NewEmbedder(embedClient)
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}

	svc := knowledge.NewService(store.Knowledge(), embedder, nil)

	log.Printf("Importing %d entries from %s", len(entries), *filePath)
	result, err := svc.Import(context.Background(), entries)
	if err != nil {
		log.Fatalf("Import aborted: %v", err)
	}

	log.Printf("Import finished: %d imported, %d failed", result.Imported, result.Failed)
	for _, msg := range result.Errors {
		log.Printf("  %s", msg)
	}
	if result.Failed > 0 {
		os.Exit(1)
	}
}

type knowledgeBackend interface {
	Knowledge() storage.KnowledgeStore
	Close() error
}

func openKnowledgeStore(cfg *config.Config) (knowledgeBackend, error) {
	switch cfg.Storage.StorageEngine {
	case "postgres":
		return postgres.NewStore(cfg.Storage.PostgresDSN)
	default:
		return sqlite.NewStore(cfg.Storage.DataPath + "/parley.db")
	}
}

func embeddingModel(cfg *config.Config) string {
	if cfg.Embedding.Provider == "ollama" {
		return cfg.Embedding.OllamaModel
	}
	return cfg.Embedding.GoogleModel
}

func embeddingBaseURL(cfg *config.Config) string {
	if cfg.Embedding.Provider == "ollama" {
		return cfg.Embedding.OllamaURL
	}
	return ""
}
