package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/animus/internal/arc"
	"github.com/lazypower/animus/internal/config"
	"github.com/lazypower/animus/internal/decay"
	"github.com/lazypower/animus/internal/diag"
	"github.com/lazypower/animus/internal/memory"
	"github.com/lazypower/animus/internal/orchestrator"
	"github.com/lazypower/animus/internal/server"
	"github.com/lazypower/animus/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Resolve database path
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	log, err := diag.Open(cfg.Diag.Path)
	if err != nil {
		return fmt.Errorf("open diagnostic sink: %w", err)
	}
	defer log.Sync()

	soulDir := cfg.Souls.Dir
	if soulDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve souls dir: %w", err)
		}
		soulDir = filepath.Join(home, ".animus", "souls")
	}

	embedder := buildEmbedder(cfg)

	var arcs arc.Store = arc.NewMemoryStore()
	if cfg.Redis.Addr != "" {
		arcs = arc.NewRedisStore(cfg.Redis.Addr)
		fmt.Fprintf(os.Stderr, "  arc state: redis (%s)\n", cfg.Redis.Addr)
	}

	orch := orchestrator.New(db, soulDir, embedder, arcs, decay.SystemClock{}, log)
	orch.Entropy = decay.NewEntropyTracker(cfg.Entropy.DecayRate, decay.SystemClock{}, nil)

	srv := server.New(db, orch, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "animus serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", dbPath)
		fmt.Fprintf(os.Stderr, "  souls: %s\n", soulDir)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}

// buildEmbedder picks the embedding provider from config, probing Ollama
// before committing to it. A nil embedder is fine: retrieval degrades to
// keyword search.
func buildEmbedder(cfg config.Config) memory.Embedder {
	switch cfg.Embeddings.Provider {
	case "openai":
		key := cfg.Embeddings.OpenAIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		if key == "" {
			fmt.Fprintln(os.Stderr, "warning: openai embeddings configured but no API key; semantic retrieval disabled")
			return nil
		}
		fmt.Fprintf(os.Stderr, "  embedder: openai (%s)\n", cfg.Embeddings.OpenAIModel)
		return memory.NewOpenAIEmbedder(key, cfg.Embeddings.OpenAIModel)
	case "ollama":
		if memory.ProbeOllama(cfg.Embeddings.OllamaURL, cfg.Embeddings.OllamaModel) {
			fmt.Fprintf(os.Stderr, "  embedder: ollama (%s)\n", cfg.Embeddings.OllamaModel)
			return memory.NewOllamaEmbedder(cfg.Embeddings.OllamaURL, cfg.Embeddings.OllamaModel)
		}
		fmt.Fprintln(os.Stderr, "warning: ollama unreachable; semantic retrieval disabled")
		return nil
	default:
		return nil
	}
}
