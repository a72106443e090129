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
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/ragline/config"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ragline",
		Usage: "Document ingestion and grouped similarity retrieval",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   "ragline.yaml",
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "Path to a .env file loaded before the configuration",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Path to the BadgerDB directory (overrides the configuration)",
			},
			&cli.StringFlag{
				Name:    "groups",
				Aliases: []string{"g"},
				Usage:   "Comma separated groups the caller belongs to",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Set logging format (text, json)",
				Value: "text",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Write the default configuration to the config path",
				Action: initCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Process notifications and watch the inbox until interrupted",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "inbox",
						Usage: "Directory whose group subdirectories are uploaded (defaults to the configured inbox)",
					},
					&cli.BoolFlag{
						Name:  "no-watch",
						Usage: "Only process notifications",
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Upload documents into a group and process them",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "group",
						Usage:    "Group the documents belong to",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "no-wait",
						Usage: "Return once the documents are routed",
					},
				},
			},
			{
				Name:      "retrieve",
				Usage:     "Find the chunks most similar to a query",
				ArgsUsage: "QUERY...",
				Action:    retrieveCommand,
				Flags: []cli.Flag{
					groupFlag(),
					granularityFlag(),
					&cli.Float64Flag{
						Name:  "tolerance",
						Usage: "Minimum cosine similarity (defaults to the configured tolerance)",
					},
					&cli.IntFlag{
						Name:  "max-hits",
						Usage: "Maximum number of matches (0 returns all)",
						Value: 5,
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from the documents of a group",
				ArgsUsage: "QUESTION...",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "session",
						Aliases:  []string{"s"},
						Usage:    "Conversation session id",
						Required: true,
					},
					groupFlag(),
					granularityFlag(),
				},
			},
			{
				Name:   "documents",
				Usage:  "List the documents of the caller's groups",
				Action: documentsCommand,
			},
			{
				Name:      "delete",
				Usage:     "Delete a document and everything derived from it",
				ArgsUsage: "FILENAME",
				Action:    deleteCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "group",
						Usage:    "Group the document belongs to",
						Required: true,
					},
				},
			},
			{
				Name:      "execution",
				Usage:     "Show the state of a workflow execution",
				ArgsUsage: "ID",
				Action:    executionCommand,
			},
			{
				Name:      "resume",
				Usage:     "Resume a failed or timed out execution from its failed step",
				ArgsUsage: "ID",
				Action:    resumeCommand,
			},
			{
				Name:  "prompt",
				Usage: "Read or replace a chat prompt template",
				Subcommands: []*cli.Command{
					{
						Name:      "get",
						ArgsUsage: "NAME",
						Action:    promptGetCommand,
					},
					{
						Name:      "set",
						ArgsUsage: "NAME [TEXT...]",
						Action:    promptSetCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "file",
								Usage: "Read the template from a file instead of the arguments",
							},
						},
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Reembed every stored chunk with the configured embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "granularity",
						Usage: "Store to reembed (small, large, all)",
						Value: "all",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of rows to process in each batch",
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N rows",
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
					},
				},
			},
		},
	}
}

func groupFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "group",
		Usage: "Group to search",
		Value: "default",
	}
}

func granularityFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "granularity",
		Usage: "Chunk store to search (small, large)",
		Value: "small",
	}
}

func setup(c *cli.Context) error {
	if err := setupLogger(c.String("log-level"), c.String("log-format"), os.Stderr); err != nil {
		return err
	}
	return config.LoadEnv(c.String("env"))
}

func setupLogger(levelStr, format string, w io.Writer) error {
	var level slog.Level
	switch strings.ToLower(levelStr) {
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

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return fmt.Errorf("invalid log format %q: must be one of text, json", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}
