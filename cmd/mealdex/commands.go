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
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"github.com/mealdex/mealdex/ai"
	"github.com/mealdex/mealdex/ai/bedrock"
	"github.com/mealdex/mealdex/ai/mock"
	"github.com/mealdex/mealdex/ai/openai"
	"github.com/mealdex/mealdex/artifact"
	"github.com/mealdex/mealdex/config"
	"github.com/mealdex/mealdex/core"
	"github.com/mealdex/mealdex/ingestion"
	"github.com/mealdex/mealdex/metrics"
	metricsbadger "github.com/mealdex/mealdex/metrics/badger"
	"github.com/mealdex/mealdex/search"
	"github.com/mealdex/mealdex/vecstore"
)

// deps holds the wired components one command needs.
type deps struct {
	cfg        *config.Config
	provider   ai.Provider
	index      *vecstore.QdrantIndex
	pipeline   *ingestion.Pipeline
	searcher   *search.Searcher
	log        *metricsbadger.Log
	aggregator *metrics.Aggregator
}

func (d *deps) close() {
	if d.pipeline != nil {
		d.pipeline.Release()
	}
	if d.provider != nil {
		d.provider.Close()
	}
	if d.index != nil {
		d.index.Close()
	}
	if d.log != nil {
		d.log.Close()
	}
}

func buildDeps(ctx context.Context, c *cli.Context, workers int) (*deps, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	d := &deps{cfg: cfg}

	aiConfig := ai.NewConfig(
		ai.WithRegion(cfg.AI.Region),
		ai.WithEmbeddingModel(cfg.AI.EmbeddingModel),
		ai.WithVisionModel(cfg.AI.VisionModel),
		ai.WithVisionHost(cfg.AI.VisionHost),
		ai.WithDimension(cfg.AI.Dimension),
		ai.WithCallTimeout(cfg.AI.CallTimeout()),
	)

	if cfg.AI.Provider == "mock" {
		d.provider = mock.NewMockProvider()
	} else {
		d.provider, err = bedrock.NewProvider(ctx, aiConfig)
		if err != nil {
			return nil, fmt.Errorf("create AI provider: %w", err)
		}
	}

	describer := d.provider.Describer()
	if cfg.AI.VisionHost != "" {
		describer, err = openai.NewDescriber(aiConfig)
		if err != nil {
			d.close()
			return nil, fmt.Errorf("create vision describer: %w", err)
		}
	}

	accessKey, secretKey := cfg.ArtifactCredentials()
	objects, err := artifact.NewS3Store(artifact.S3Config{
		EndpointURL:     cfg.Artifact.Endpoint,
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		Region:          cfg.Artifact.Region,
		UseSSL:          cfg.Artifact.UseSSL,
	})
	if err != nil {
		d.close()
		return nil, err
	}
	if err := objects.EnsureBucket(ctx, cfg.Artifact.Bucket); err != nil {
		d.close()
		return nil, err
	}

	artifacts, err := artifact.NewStore(objects, cfg.Artifact.Bucket,
		artifact.WithPrefixes(cfg.Artifact.ImagesPrefix, cfg.Artifact.RecordsPrefix),
		artifact.WithProvenance(cfg.AI.EmbeddingModel, cfg.AI.Region),
	)
	if err != nil {
		d.close()
		return nil, err
	}

	d.index, err = vecstore.NewQdrantIndex(vecstore.QdrantConfig{
		Host:        cfg.Index.Host,
		Port:        cfg.Index.Port,
		APIKey:      cfg.IndexAPIKey(),
		UseTLS:      cfg.Index.UseTLS,
		CallTimeout: cfg.Index.CallTimeout(),
	})
	if err != nil {
		d.close()
		return nil, err
	}
	writer := vecstore.NewWriter(d.index, vecstore.WithChunkSize(cfg.Index.ChunkSize))

	d.log, err = metricsbadger.Open(cfg.Metrics.Path, false)
	if err != nil {
		d.close()
		return nil, fmt.Errorf("open metrics log: %w", err)
	}
	d.aggregator = metrics.NewAggregator(d.log, metrics.WithRecentLimit(cfg.Metrics.RecentLimit))

	coordinator, err := ingestion.NewCoordinator(d.provider.Embedder(), cfg.AI.Dimension,
		ingestion.WithDescriber(describer))
	if err != nil {
		d.close()
		return nil, err
	}

	if workers == 0 {
		workers = cfg.Bulk.Workers
	}
	pipelineOpts := []ingestion.Option{
		ingestion.WithMetrics(d.aggregator),
		ingestion.WithProvenance(cfg.AI.EmbeddingModel, cfg.AI.Region),
	}
	if workers > 0 {
		pipelineOpts = append(pipelineOpts, ingestion.WithPoolSize(workers))
	}

	d.pipeline, err = ingestion.NewPipeline(coordinator, artifacts, writer,
		cfg.Index.StandardCollection, cfg.Index.BulkCollection, cfg.AI.Dimension, pipelineOpts...)
	if err != nil {
		d.close()
		return nil, err
	}

	d.searcher, err = search.NewSearcher(d.provider.Embedder(), d.index,
		cfg.Index.StandardCollection, cfg.Index.BulkCollection,
		search.WithMetrics(d.aggregator),
		search.WithThresholds(cfg.Index.StandardThreshold, cfg.Index.BulkThreshold),
	)
	if err != nil {
		d.close()
		return nil, err
	}

	return d, nil
}

func ingestCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("image file argument is required")
	}

	image, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	ctx := context.Background()
	d, err := buildDeps(ctx, c, 0)
	if err != nil {
		return err
	}
	defer d.close()

	source := core.SourceMeta{
		Filename:    filepath.Base(path),
		ContentType: contentTypeOf(path),
		UserID:      c.String("user"),
		MealType:    c.String("meal-type"),
	}
	if t := c.Timestamp("meal-time"); t != nil {
		source.MealTime = *t
	}

	result, err := d.pipeline.Ingest(ctx, image, source)
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %s\n", result.Identity)
	fmt.Printf("  image:  s3://%s/%s\n", result.Refs.Bucket, result.Refs.ImageKey)
	fmt.Printf("  record: s3://%s/%s\n", result.Refs.Bucket, result.Refs.RecordKey)
	if result.Description != "" {
		fmt.Printf("  description: %s\n", result.Description)
	}
	return nil
}

func bulkIngestCommand(c *cli.Context) error {
	dir := c.Args().First()
	if dir == "" {
		return fmt.Errorf("directory argument is required")
	}

	paths, err := collectImages(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no images found in %s", dir)
	}

	ctx := context.Background()
	d, err := buildDeps(ctx, c, c.Int("workers"))
	if err != nil {
		return err
	}
	defer d.close()

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("Loading images"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
	)

	items := make([]ingestion.BulkItem, 0, len(paths))
	for _, path := range paths {
		image, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		items = append(items, ingestion.BulkItem{
			Image: image,
			Source: core.SourceMeta{
				Filename:    filepath.Base(path),
				ContentType: contentTypeOf(path),
				MealType:    c.String("meal-type"),
			},
		})
		bar.Add(1)
	}
	fmt.Println()

	report, err := d.pipeline.BulkIngest(ctx, items)
	if err != nil {
		return err
	}

	fmt.Printf("Bulk run: %d total, %d written, %d failed in %s\n",
		report.Total, len(report.Succeeded), len(report.Failed), report.Elapsed.Round(time.Millisecond))
	for index, reason := range report.Failed {
		fmt.Printf("  failed %s: %s\n", filepath.Base(paths[index]), reason)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query, err := queryFromFlags(c)
	if err != nil {
		return err
	}

	filter := &core.Filter{
		UserID:    c.String("user"),
		MealTypes: c.StringSlice("meal-type"),
	}
	if t := c.Timestamp("from"); t != nil {
		filter.TSFrom = t.Unix()
	}
	if t := c.Timestamp("to"); t != nil {
		filter.TSTo = t.Unix()
	}
	query.Filter = filter

	return runSearch(c, query)
}

func bulkSearchCommand(c *cli.Context) error {
	query, err := queryFromFlags(c)
	if err != nil {
		return err
	}
	query.Bulk = true
	return runSearch(c, query)
}

func queryFromFlags(c *cli.Context) (*search.Query, error) {
	query := &search.Query{
		Text: strings.Join(c.Args().Slice(), " "),
		TopK: c.Int("top-k"),
	}
	if imagePath := c.String("image"); imagePath != "" {
		image, err := os.ReadFile(imagePath)
		if err != nil {
			return nil, fmt.Errorf("read query image: %w", err)
		}
		query.Image = image
		query.ContentType = contentTypeOf(imagePath)
	}
	return query, nil
}

func runSearch(c *cli.Context, query *search.Query) error {
	ctx := context.Background()
	d, err := buildDeps(ctx, c, 0)
	if err != nil {
		return err
	}
	defer d.close()

	results, err := d.searcher.Search(ctx, query)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%2d. %s  score=%.4f\n", i+1, r.Identity, r.Score)
		if desc, ok := r.Payload["generated_description"].(string); ok && desc != "" {
			fmt.Printf("    %s\n", desc)
		}
		if key, ok := r.Payload["image_key"].(string); ok {
			fmt.Printf("    image: %s\n", key)
		}
	}
	return nil
}

func showCommand(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("identity argument is required")
	}

	ctx := context.Background()
	d, err := buildDeps(ctx, c, 0)
	if err != nil {
		return err
	}
	defer d.close()

	result, err := d.searcher.Retrieve(ctx, core.ID(id), c.Bool("bulk"))
	if err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("no point with identity %s", id)
	}

	fmt.Println(result.Identity)
	fields := make([]string, 0, len(result.Payload))
	for field := range result.Payload {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		fmt.Printf("  %-22s %v\n", field, result.Payload[field])
	}
	return nil
}

func metricsCommand(c *cli.Context) error {
	mode := metrics.Mode(c.String("mode"))
	if mode != metrics.ModeStandard && mode != metrics.ModeBulk {
		return fmt.Errorf("invalid mode %q: must be standard or bulk", c.String("mode"))
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	log, err := metricsbadger.Open(cfg.Metrics.Path, false)
	if err != nil {
		return fmt.Errorf("open metrics log: %w", err)
	}
	defer log.Close()

	aggregator := metrics.NewAggregator(log, metrics.WithRecentLimit(cfg.Metrics.RecentLimit))
	from := time.Now().AddDate(0, 0, -c.Int("days"))

	ctx := context.Background()
	summary, err := aggregator.Summarize(ctx, mode, from, time.Time{})
	if err != nil {
		return err
	}

	fmt.Printf("Mode %s, last %d days\n", mode, c.Int("days"))
	fmt.Printf("  operations: %d (%d ingest, %d search)\n", summary.Total, summary.Ingests, summary.Searches)
	fmt.Printf("  outcomes:   %d ok / %d partial / %d failed (%.1f%% success)\n",
		summary.Successes, summary.Partials, summary.Failures, summary.SuccessRate*100)
	if len(summary.MeanStageTimings) > 0 {
		stages := make([]string, 0, len(summary.MeanStageTimings))
		for stage := range summary.MeanStageTimings {
			stages = append(stages, stage)
		}
		sort.Strings(stages)
		fmt.Println("  mean stage timings:")
		for _, stage := range stages {
			fmt.Printf("    %-10s %s\n", stage, summary.MeanStageTimings[stage].Round(time.Millisecond))
		}
	}
	if summary.ScoredCount > 0 {
		fmt.Printf("  quality: top1=%.3f topk=%.3f min=%.3f max=%.3f over %d searches\n",
			summary.MeanTop1, summary.MeanTopKAvg, summary.ScoreMin, summary.ScoreMax, summary.ScoredCount)
	}
	if owners := summary.TopOwners(5); len(owners) > 0 {
		fmt.Println("  busiest owners:")
		for _, owner := range owners {
			fmt.Printf("    %s: %d\n", owner, summary.OwnerCounts[owner])
		}
	}
	return nil
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

func collectImages(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && imageExtensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func contentTypeOf(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
