// Copyright 2025 The Mealdex Authors
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
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	// Local development keeps credentials in .env; absence is fine.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "mealdex",
		Usage: "Multimodal meal image ingestion and similarity search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				Value:   "mealdex.yaml",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest a single image for a user",
				ArgsUsage: "<image-file>",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "Owner user id",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "meal-type",
						Usage: "Meal type label (breakfast, lunch, dinner, snack)",
					},
					&cli.TimestampFlag{
						Name:   "meal-time",
						Usage:  "When the meal was eaten (RFC3339)",
						Layout: "2006-01-02T15:04:05Z07:00",
					},
				},
			},
			{
				Name:      "bulk-ingest",
				Usage:     "Ingest every image in a directory under the bulk user",
				ArgsUsage: "<directory>",
				Action:    bulkIngestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "meal-type",
						Usage: "Meal type label applied to all images",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Worker pool size (0 uses the configured default)",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search the standard collection by text or image",
				ArgsUsage: "[query text]",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "image",
						Usage: "Query by image file instead of text",
					},
					&cli.StringFlag{
						Name:    "user",
						Aliases: []string{"u"},
						Usage:   "Restrict results to one owner",
					},
					&cli.StringSliceFlag{
						Name:  "meal-type",
						Usage: "Restrict results to meal types (repeatable)",
					},
					&cli.TimestampFlag{
						Name:   "from",
						Usage:  "Earliest meal time (RFC3339)",
						Layout: "2006-01-02T15:04:05Z07:00",
					},
					&cli.TimestampFlag{
						Name:   "to",
						Usage:  "Latest meal time (RFC3339)",
						Layout: "2006-01-02T15:04:05Z07:00",
					},
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Maximum number of results",
						Value:   5,
					},
				},
			},
			{
				Name:      "bulk-search",
				Usage:     "Search the bulk collection, always unfiltered",
				ArgsUsage: "[query text]",
				Action:    bulkSearchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "image",
						Usage: "Query by image file instead of text",
					},
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Maximum number of results",
						Value:   5,
					},
				},
			},
			{
				Name:      "show",
				Usage:     "Show the indexed payload of one ingested item",
				ArgsUsage: "<identity>",
				Action:    showCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "bulk",
						Usage: "Look in the bulk collection",
					},
				},
			},
			{
				Name:   "metrics",
				Usage:  "Summarize recorded activity for one mode",
				Action: metricsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Which population to summarize (standard or bulk)",
						Value: "standard",
					},
					&cli.IntFlag{
						Name:  "days",
						Usage: "Window length in days",
						Value: 7,
					},
				},
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
