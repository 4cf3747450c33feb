package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"docrag/internal/chunker"
	"docrag/internal/config"
	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/pipeline"
	"docrag/internal/token"
	"docrag/internal/vectorstore"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "config.yaml", "Path to config YAML")
	flag.Parse()
	inputs := flag.Args()
	if len(inputs) == 0 {
		fmt.Println("Usage: docrag [--config=config.yaml] file1.txt [file2.txt ...]")
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init failed:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// Assemble components via interfaces
	var counter token.Counter
	switch cfg.Chunker.Tokenizer {
	case "words":
		counter = token.Words{}
	default:
		counter, err = token.NewTiktoken(cfg.Chunker.Tokenizer)
		if err != nil {
			logger.Fatal("tokenizer init failed", zap.Error(err))
		}
	}

	ch, err := chunker.New(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap, counter)
	if err != nil {
		logger.Fatal("chunker init failed", zap.Error(err))
	}

	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "hash", "":
		emb, err = embedding.NewHash(cfg.Embedder.Hash.Dimension)
	case "openai":
		emb, err = embedding.NewOpenAI(embedding.OpenAIConfig{
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
			BatchSize: cfg.Embedder.OpenAI.BatchSize,
		})
	default:
		logger.Fatal("unknown embedder", zap.String("type", cfg.Embedder.Type))
	}
	if err != nil {
		logger.Fatal("embedder init failed", zap.Error(err))
	}

	store := vectorstore.New(emb, logger)
	pipe := pipeline.New(store, cfg.Retrieval.StorePath, logger)

	ctx := context.Background()
	for _, path := range inputs {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Fatal("read file failed", zap.String("path", path), zap.Error(err))
		}
		metadata := map[string]string{"source": filepath.Base(path)}
		chunks, err := ch.Chunk(string(data), metadata)
		if err != nil {
			logger.Fatal("chunking failed", zap.String("path", path), zap.Error(err))
		}
		if err := pipe.AddDocument(ctx, chunks); err != nil {
			logger.Fatal("indexing failed", zap.String("path", path), zap.Error(err))
		}
	}

	stats := pipe.Stats()
	fmt.Printf("Indexed %d chunks (%d tokens, model %s). Enter a query, or an empty line to quit.\n",
		stats.Chunks, stats.TotalTokens, stats.Model)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		query := scanner.Text()
		if query == "" {
			break
		}
		scored, err := pipe.SimilarityScores(ctx, query, cfg.Retrieval.TopK)
		if err != nil {
			logger.Error("query failed", zap.Error(err))
			continue
		}
		if len(scored) == 0 {
			fmt.Println("no results")
			continue
		}
		for i, r := range scored {
			fmt.Printf("%d. [%.4f] %s\n", i+1, r.Score, r.Preview)
		}
	}
}
