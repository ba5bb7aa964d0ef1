// Package main is the kioku CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kioku/kioku/internal/config"
	"github.com/kioku/kioku/internal/embedding"
	"github.com/kioku/kioku/internal/extract"
	"github.com/kioku/kioku/internal/intake"
	"github.com/kioku/kioku/internal/models"
	"github.com/kioku/kioku/internal/registry"
	"github.com/kioku/kioku/internal/server"
	"github.com/kioku/kioku/internal/store"
	"github.com/kioku/kioku/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kioku/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "build":
		runBuild()
	case "search":
		runSearch()
	case "stats":
		runStats()
	case "clear":
		runClear()
	case "version", "--version", "-v":
		fmt.Printf("kioku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *intake.Watcher
	if cfg.Intake.Watch {
		reg := components.Registry
		ks := components.Store
		watchOpts := []intake.WatcherOption{}
		if debugMode {
			watchOpts = append(watchOpts, intake.WithLogger(logger))
		}
		watchSvc = intake.NewWatcher(
			cfg.Intake,
			func(path string) {
				info, statErr := os.Stat(path)
				if statErr != nil {
					return
				}
				// Skip files the registry already knows unchanged; the startup
				// sync must not re-ingest a directory the persisted store
				// already holds.
				if prev, getErr := reg.Get(context.Background(), path); getErr == nil &&
					prev.Size == info.Size() && prev.ModTime.Unix() == info.ModTime().Unix() {
					return
				}
				doc := &models.IntakeDocument{
					Filename: filepath.Base(path),
					Path:     path,
					Size:     info.Size(),
					ModTime:  info.ModTime(),
				}
				if upErr := reg.Upsert(context.Background(), doc); upErr != nil {
					logger.Warn("intake register failed", zap.String("path", path), zap.Error(upErr))
				}
				added, ingErr := ks.IngestFile(context.Background(), path)
				if ingErr != nil {
					logger.Warn("intake ingest failed", zap.String("path", path), zap.Error(ingErr))
					return
				}
				logger.Info("intake file ingested", zap.String("path", path), zap.Int("chunks", added))
			},
			func(path string) {
				if delErr := reg.Delete(context.Background(), path); delErr != nil {
					logger.Warn("intake deregister failed", zap.String("path", path), zap.Error(delErr))
				}
				// Record ids are positional, so already-indexed chunks of the
				// removed file stay until the next clearing rebuild.
				logger.Warn("intake file removed; its indexed chunks remain until a clearing rebuild",
					zap.String("path", path))
			},
			watchOpts...,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start intake watcher", zap.Error(err))
		}
		if err := watchSvc.SyncExisting(); err != nil {
			logger.Warn("intake sync failed", zap.Error(err))
		}
	}

	srv := server.NewServer(components.Store, components.Registry, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runBuild() {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	clear := fs.Bool("clear", false, "clear the knowledge base before building")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kioku build [flags] <file>...")
		os.Exit(1)
	}
	paths := fs.Args()

	components, logger := mustInitialize(*configPath)
	defer components.Close()
	defer logger.Sync()

	result, err := components.Store.BuildKnowledgeBase(context.Background(), paths, *clear)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		os.Exit(1)
	}
	if !result.Success {
		fmt.Fprintf(os.Stderr, "Build failed: %s\n", result.Message)
		os.Exit(1)
	}
	fmt.Printf("Processed %d file(s), added %d chunk(s). Knowledge base now holds %d record(s).\n",
		result.FilesProcessed, result.DocumentsAdded, result.Stats.NumDocuments)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	topK := fs.Int("top-k", 0, "number of results (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kioku search [flags] <query>")
		os.Exit(1)
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Println("Usage: kioku search [flags] <query>")
		os.Exit(1)
	}

	components, logger := mustInitialize(*configPath)
	defer components.Close()
	defer logger.Sync()

	k := *topK
	if k <= 0 {
		k = components.Config.Search.DefaultTopK
	}
	if k > components.Config.Search.MaxTopK {
		k = components.Config.Search.MaxTopK
	}

	results, err := components.Store.Search(context.Background(), query, k)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		if len(results) == 0 {
			fmt.Println("No results.")
			return
		}
		for i, res := range results {
			fmt.Printf("%d. %s (chunk %d, similarity %.4f)\n", i+1, res.SourceDocument, res.ChunkID, res.Similarity)
			fmt.Printf("   %s\n", previewText(res.Text, 200))
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// previewText truncates s to at most maxRunes runes for display.
func previewText(s string, maxRunes int) string {
	runes := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(runes) <= maxRunes {
		return string(runes)
	}
	return string(runes[:maxRunes]) + "..."
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	components, logger := mustInitialize(*configPath)
	defer components.Close()
	defer logger.Sync()

	stats := components.Store.Stats()
	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(stats); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("collection:          %s\n", stats.CollectionName)
		fmt.Printf("documents:           %d\n", stats.NumDocuments)
		fmt.Printf("index_size:          %d\n", stats.IndexSize)
		fmt.Printf("embedding_dimension: %d\n", stats.EmbeddingDimension)
		fmt.Printf("store_path:          %s\n", stats.StorePath)
		if diskBytes, err := store.DiskUsageBytes(stats.StorePath, components.Config.Intake.Directory); err == nil {
			fmt.Printf("disk_usage_bytes:    %d\n", diskBytes)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func runClear() {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	components, logger := mustInitialize(*configPath)
	defer components.Close()
	defer logger.Sync()

	if err := components.Store.Clear(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Clear failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Knowledge base cleared.")
}

// Components holds initialized services.
type Components struct {
	Config   *config.Config
	Store    *store.KnowledgeStore
	Registry *registry.Registry
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Registry != nil {
		_ = c.Registry.Close()
	}
}

func mustInitialize(configPath string) (*Components, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return components, logger
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	if cfg.Embedding.CacheSize > 0 {
		provider = embedding.NewCachingProvider(provider, cfg.Embedding.CacheSize)
	}

	extractOpts := []extract.ExtractorOption{}
	if debug {
		extractOpts = append(extractOpts, extract.WithLogger(logger))
	}

	ks, err := store.New(cfg, provider, extract.NewExtractor(extractOpts...), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize knowledge store: %w", err)
	}

	reg, err := registry.Open(cfg.Intake.RegistryPath)
	if err != nil {
		_ = ks.Close()
		return nil, fmt.Errorf("failed to initialize registry: %w", err)
	}

	return &Components{
		Config:   cfg,
		Store:    ks,
		Registry: reg,
	}, nil
}

func newProvider(cfg *config.Config) (embedding.Provider, error) {
	switch cfg.Embedding.Provider {
	case "mock":
		return embedding.NewMockProvider(cfg.Embedding.Dimensions), nil
	case "openai", "":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		return embedding.NewOpenAIProvider(
			apiKey,
			cfg.Embedding.Model,
			cfg.Embedding.Dimensions,
			embedding.WithMaxRetries(cfg.Embedding.MaxRetries),
			embedding.WithTimeout(cfg.Embedding.Timeout()),
		)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
	}
}

func printUsage() {
	fmt.Println(`kioku - Document knowledge base with semantic search

Usage:
  kioku server [flags]            Start the HTTP API server
  kioku build [flags] <file>...   Build the knowledge base from files
  kioku search [flags] <query>    Search the knowledge base
  kioku stats [flags]             Show knowledge base statistics
  kioku clear [flags]             Clear the knowledge base
  kioku version                   Show version
  kioku help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kioku/config.yaml)
  --debug            Enable debug logging

Build Flags:
  --config string    Config file path
  --clear            Clear the knowledge base before building

Search Flags:
  --config string    Config file path
  --top-k int        Number of results (default from config)
  --output string    Output format: text or json (default: text)

Stats Flags:
  --config string    Config file path
  --output string    Output format: text or json (default: text)

Examples:
  kioku server
  kioku build docs/notes.md docs/report.pdf
  kioku build --clear docs/*.md
  kioku search "how does chunk overlap work"
  kioku search --top-k 10 --output json "vector normalization"
  kioku stats
  kioku clear`)
}
