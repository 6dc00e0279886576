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
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/askdb"
	"github.com/poiesic/askdb/ai"
	"github.com/poiesic/askdb/core"
	"github.com/poiesic/askdb/enrich"
	"github.com/poiesic/askdb/schema"
	"github.com/urfave/cli/v2"
)

func main() {
	aiFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  "host",
			Usage: "OpenAI-compatible model server URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringFlag{
			Name:  "chat-model",
			Usage: "Generation model name",
			Value: "qwen2.5:3b",
		},
		&cli.IntFlag{
			Name:  "context-length",
			Usage: "Model context length in tokens",
			Value: 8192,
		},
	}
	dbFlags := []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to the knowledge base directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "source",
			Aliases:  []string{"s"},
			Usage:    "Source identifier (one collection per source)",
			Required: true,
		},
	}

	app := &cli.App{
		Name:  "askdb",
		Usage: "Index database schemas and ask questions about them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "index",
				Usage:  "Crawl a schema metadata file and build the source's index",
				Action: indexCommand,
				Flags: append(append([]cli.Flag{
					&cli.StringFlag{
						Name:     "schema-file",
						Aliases:  []string{"f"},
						Usage:    "Path to the JSON schema metadata dump",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Summarization worker count",
						Value: 5,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Chunks per embedding request",
						Value: 32,
					},
				}, dbFlags...), aiFlags...),
			},
			{
				Name:      "ask",
				Usage:     "Ask a question about an indexed source",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags:     append(dbFlags, aiFlags...),
			},
			{
				Name:      "search",
				Usage:     "Run a hybrid search and print the ranked chunks",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: append(append([]cli.Flag{
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of results",
						Value: 10,
					},
				}, dbFlags...), aiFlags...),
			},
			{
				Name:   "stats",
				Usage:  "Print index statistics for a source",
				Action: statsCommand,
				Flags:  append(dbFlags, aiFlags...),
			},
			{
				Name:   "clear",
				Usage:  "Drop a source's index",
				Action: clearCommand,
				Flags:  append(dbFlags, aiFlags...),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
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

func openIndex(c *cli.Context, opts ...askdb.IndexOption) (*askdb.Index, error) {
	config := ai.NewConfig(
		ai.WithHost(c.String("host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithChatModel(c.String("chat-model")),
		ai.WithContextLength(c.Int("context-length")),
	)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	opts = append(opts, askdb.WithAIConfig(config))
	idx, err := askdb.Open(c.String("db"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge base: %w", err)
	}
	return idx, nil
}

func indexCommand(c *cli.Context) error {
	idx, err := openIndex(c, askdb.WithEnrichOptions(
		enrich.WithConcurrency(c.Int("concurrency")),
		enrich.WithBatchSize(c.Int("batch-size")),
	))
	if err != nil {
		return err
	}
	defer idx.Close()

	sourceId := c.String("source")
	loader := schema.NewFileLoader(sourceId, c.String("schema-file"))

	err = idx.Crawl(context.Background(), sourceId, loader, func(p core.Progress) {
		if p.ObjectName != "" {
			fmt.Fprintf(os.Stderr, "%s %d/%d %s\n", p.Phase, p.Current, p.Total, p.ObjectName)
		} else {
			fmt.Fprintf(os.Stderr, "%s %d/%d\n", p.Phase, p.Current, p.Total)
		}
	})
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "indexed %s\n", sourceId)
	return nil
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("a question is required")
	}

	idx, err := openIndex(c)
	if err != nil {
		return err
	}
	defer idx.Close()

	answer, err := idx.Ask(context.Background(), c.String("source"), question, nil, "",
		func(token string) error {
			_, err := fmt.Print(token)
			return err
		})
	if err != nil {
		return err
	}
	fmt.Println()

	if rc := answer.RetrievalContext; rc != nil && len(rc.ObjectNames) > 0 {
		fmt.Fprintf(os.Stderr, "\ngrounded on %d objects (%s) in %s\n",
			len(rc.ObjectNames), strings.Join(rc.ObjectNames, ", "), rc.SearchDuration)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a query is required")
	}

	idx, err := openIndex(c)
	if err != nil {
		return err
	}
	defer idx.Close()

	results, err := idx.SearchChunks(context.Background(), c.String("source"), query, c.Int("top-k"))
	if err != nil {
		return err
	}

	for i, r := range results {
		fmt.Printf("%2d. %.4f [%s] %s\n", i+1, r.Score, r.Chunk.ObjectType, r.Chunk.QualifiedName())
	}
	if len(results) == 0 {
		fmt.Fprintln(os.Stderr, "no results; is the source indexed?")
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	idx, err := openIndex(c)
	if err != nil {
		return err
	}
	defer idx.Close()

	stats, err := idx.Stats(context.Background(), c.String("source"))
	if err != nil {
		return err
	}

	fmt.Printf("chunks:     %d\n", stats.TotalChunks)
	for _, typ := range []core.ObjectType{
		core.ObjectTypeTable, core.ObjectTypeView,
		core.ObjectTypeStoredProcedure, core.ObjectTypeFunction,
	} {
		if n := stats.ByType[typ]; n > 0 {
			fmt.Printf("  %-10s%d\n", typ.String()+":", n)
		}
	}
	fmt.Printf("summarized: %d\n", stats.WithSummary)
	fmt.Printf("embedded:   %d\n", stats.WithEmbedding)
	if !stats.LastIndexedAt.IsZero() {
		fmt.Printf("indexed at: %s\n", stats.LastIndexedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func clearCommand(c *cli.Context) error {
	idx, err := openIndex(c)
	if err != nil {
		return err
	}
	defer idx.Close()

	sourceId := c.String("source")
	if err := idx.ClearSource(context.Background(), sourceId); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "cleared %s\n", sourceId)
	return nil
}
