// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/furrow"
	"github.com/poiesic/furrow/config"
	"github.com/poiesic/furrow/reindex"
	"github.com/poiesic/furrow/storage/badger"
	"github.com/urfave/cli/v2"
)

func main() {
	// A missing .env is fine; the environment and flags still apply.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "furrow",
		Usage: "Question answering over agricultural PDF documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"FURROW_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				EnvVars: []string{"FURROW_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				EnvVars: []string{"FURROW_DB"},
			},
			&cli.StringFlag{
				Name:    "backend",
				Usage:   "AI backend (ollama, openai)",
				EnvVars: []string{"FURROW_BACKEND"},
			},
			&cli.StringFlag{
				Name:    "host",
				Usage:   "Embedding and generation service host URL",
				EnvVars: []string{"FURROW_HOST"},
			},
			&cli.StringFlag{
				Name:    "embedding-model",
				Usage:   "Embedding model name",
				EnvVars: []string{"FURROW_EMBEDDING_MODEL"},
			},
			&cli.StringFlag{
				Name:    "generation-model",
				Usage:   "Generation model name",
				EnvVars: []string{"FURROW_GENERATION_MODEL"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Extract, chunk and index PDF files",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
			},
			{
				Name:      "query",
				Usage:     "Print the chunks most similar to a question",
				ArgsUsage: "TEXT",
				Action:    queryCommand,
				Flags:     []cli.Flag{kFlag()},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from the indexed documents",
				ArgsUsage: "TEXT",
				Action:    askCommand,
				Flags:     []cli.Flag{kFlag()},
			},
			{
				Name:      "remove",
				Usage:     "Remove a document and its chunks",
				ArgsUsage: "ID",
				Action:    removeCommand,
			},
			{
				Name:   "documents",
				Usage:  "List ingested documents",
				Action: documentsCommand,
			},
			{
				Name:   "reindex",
				Usage:  "Re-embed every chunk with a different embedding model",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "embedding-model",
						Usage:    "Embedding model to reindex with",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to embed in each request",
						Value: reindex.DefaultConfig().BatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: reindex.DefaultConfig().ReportInterval,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per batch",
						Value: reindex.DefaultConfig().MaxRetries,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}
}

func kFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "k",
		Usage: "Number of chunks to retrieve (0 uses the configured maximum)",
	}
}

// loadConfig reads the configuration file, if any, and applies global flag
// overrides on top of it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if c.IsSet("db") {
		cfg.Storage.Path = c.String("db")
	}
	if c.IsSet("backend") {
		cfg.AI.Backend = c.String("backend")
	}
	if c.IsSet("host") {
		cfg.AI.Host = c.String("host")
	}
	if c.IsSet("embedding-model") {
		cfg.AI.EmbeddingModel = c.String("embedding-model")
	}
	if c.IsSet("generation-model") {
		cfg.AI.GenerationModel = c.String("generation-model")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openOrchestrator(c *cli.Context) (*furrow.Orchestrator, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	orch, err := furrow.Open(cfg.Storage.Path, cfg.Options()...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return orch, nil
}

func argText(c *cli.Context, what string) (string, error) {
	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		return "", fmt.Errorf("%s is required", what)
	}
	return text, nil
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one file is required")
	}
	orch, err := openOrchestrator(c)
	if err != nil {
		return err
	}
	defer orch.Close()

	var errs []error
	for _, path := range c.Args().Slice() {
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		name := filepath.Base(path)
		result, err := orch.Ingest(c.Context, data, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		fmt.Fprintf(c.App.Writer, "Ingested %s: %s (%d chunks)\n", name, result.DocumentId, result.ChunksCreated)
	}
	return errors.Join(errs...)
}

func queryCommand(c *cli.Context) error {
	text, err := argText(c, "query text")
	if err != nil {
		return err
	}
	orch, err := openOrchestrator(c)
	if err != nil {
		return err
	}
	defer orch.Close()

	results, err := orch.Query(c.Context, text, c.Int("k"))
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(c.App.Writer, "No matching chunks.")
		return nil
	}
	for i, result := range results {
		fmt.Fprintf(c.App.Writer, "%d. [%s #%d] score=%.3f\n%s\n\n",
			i+1, result.SourceName, result.Index, result.Score, result.Text)
	}
	return nil
}

func askCommand(c *cli.Context) error {
	text, err := argText(c, "question")
	if err != nil {
		return err
	}
	orch, err := openOrchestrator(c)
	if err != nil {
		return err
	}
	defer orch.Close()

	stream, err := orch.Ask(c.Context, text, c.Int("k"))
	if err != nil {
		return err
	}
	defer stream.Close()

	for tok := range stream.Tokens() {
		fmt.Fprint(c.App.Writer, tok.Text)
	}
	fmt.Fprintln(c.App.Writer)
	return stream.Err()
}

func removeCommand(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("document id is required")
	}
	orch, err := openOrchestrator(c)
	if err != nil {
		return err
	}
	defer orch.Close()

	if err := orch.Remove(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Removed %s\n", id)
	return nil
}

func documentsCommand(c *cli.Context) error {
	orch, err := openOrchestrator(c)
	if err != nil {
		return err
	}
	defer orch.Close()

	docs, err := orch.Documents(c.Context)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(c.App.Writer, "No documents.")
		return nil
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCHUNKS\tINGESTED")
	for _, doc := range docs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", doc.Id, doc.Name, doc.ChunkCount, doc.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func reindexCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	reindexConfig := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if err := reindexConfig.Validate(); err != nil {
		return err
	}

	model := c.String("embedding-model")
	aiConfig := cfg.AIConfig()
	aiConfig.EmbeddingModel = model
	provider, err := furrow.NewProvider(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}
	defer provider.Close()

	// The store is bypassed so the old model recorded on the collection
	// does not block the run.
	repos, err := badger.OpenRepositories(cfg.Storage.Path, cfg.Storage.InMemory, cfg.Storage.Collection,
		badger.WithSyncWrites(cfg.Storage.SyncWrites))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer repos.Close()

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", cfg.Storage.Path)
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", aiConfig.EmbeddingHost)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", model)
	fmt.Fprintln(c.App.ErrWriter)

	r := reindex.NewReindexer(reindex.Repositories{
		Documents:   repos.Documents,
		Vectors:     repos.Vectors,
		Collections: repos.Collections,
	}, cfg.Storage.Collection, provider.Embedder(), model, reindexConfig, c.App.ErrWriter)
	if _, err := r.Run(c.Context); err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
