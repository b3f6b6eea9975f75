package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/embedding"
	"github.com/parleyhq/parley/internal/knowledge"
	"github.com/parleyhq/parley/internal/llm"
	"github.com/parleyhq/parley/internal/preferences"
	"github.com/parleyhq/parley/internal/retrieval"
	"github.com/parleyhq/parley/internal/server"
	"github.com/parleyhq/parley/internal/storage"
	"github.com/parleyhq/parley/internal/storage/postgres"
	"github.com/parleyhq/parley/internal/storage/sqlite"
	"github.com/parleyhq/parley/pkg/types"
)

// backend is the slice of a storage backend the application wires against.
type backend interface {
	Knowledge() storage.KnowledgeStore
	Preferences() storage.PreferenceStore
	Chats() storage.ChatStore
	Close() error
}

// defaultedRetriever applies the configured retrieval defaults to requests
// that leave them unset.
type defaultedRetriever struct {
	engine        *retrieval.Engine
	topK          int
	minSimilarity float64
}

func (d *defaultedRetriever) Retrieve(ctx context.Context, botID, userID, query string, opts retrieval.Options) *types.RAGContext {
	if opts.TopK <= 0 {
		opts.TopK = d.topK
	}
	if !opts.MinSimilaritySet {
		opts.MinSimilarity = d.minSimilarity
		opts.MinSimilaritySet = true
	}
	return d.engine.Retrieve(ctx, botID, userID, query, opts)
}

func main() {
	botsPath := flag.String("bots", "", "Path to the bot registry YAML file (overrides PARLEY_BOTS_PATH)")
	flag.Parse()

	// .env is optional; real deployments configure the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *botsPath != "" {
		cfg.Chat.BotsPath = *botsPath
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	registry, err := chat.LoadRegistry(cfg.Chat.BotsPath)
	if err != nil {
		log.Fatalf("Failed to load bot registry: %v", err)
	}
	log.Printf("Loaded %d bots from %s", len(registry.List()), cfg.Chat.BotsPath)

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

	chatClient := llm.NewOpenRouterClient(llm.OpenRouterConfig{
		APIKey: cfg.Chat.OpenRouterAPIKey,
		Model:  cfg.Chat.OpenRouterModel,
	})

	engine := retrieval.NewEngine(embedder, store.Knowledge(), store.Preferences(), nil)
	retriever := &defaultedRetriever{
		engine:        engine,
		topK:          cfg.Retrieval.TopK,
		minSimilarity: cfg.Retrieval.MinSimilarity,
	}

	knowledgeSvc := knowledge.NewService(store.Knowledge(), embedder, nil)
	preferenceSvc := preferences.NewService(store.Preferences(), store.Chats(), embedder, nil)
	responder := chat.NewResponder(registry, store.Chats(), retriever, chatClient, preferenceSvc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, _, err := server.Start(ctx, cfg, server.Dependencies{
		Knowledge:   knowledgeSvc,
		Retriever:   retriever,
		Preferences: preferenceSvc,
		Chats:       store.Chats(),
		Responder:   responder,
	})
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("Parley API running at http://%s", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}

// openStore builds the configured storage backend.
func openStore(cfg *config.Config) (backend, error) {
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
