package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/syllabus/internal/config"
	"github.com/kailas-cloud/syllabus/internal/domain"
	"github.com/kailas-cloud/syllabus/internal/metrics"
	catalogrepo "github.com/kailas-cloud/syllabus/internal/repository/catalog"
	chunkrepo "github.com/kailas-cloud/syllabus/internal/repository/chunk"
	"github.com/kailas-cloud/syllabus/internal/repository/embcache"
	openaiTransport "github.com/kailas-cloud/syllabus/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/syllabus/internal/usecase/embedding"
	"github.com/kailas-cloud/syllabus/internal/usecase/ingest"
)

var (
	loadBatchSize int
	loadSkipNodes bool
)

var loadCmd = &cobra.Command{
	Use:   "load <seed.yaml>",
	Short: "Load topic nodes and chunks from a seed file",
	Long: `Load a seed file into the database.

Topic nodes are written first, together with their ancestors, so the
catalog stays closed under prefixes. Chunks are then embedded with the
configured provider and written in batches.

Seed file format:
  nodes:
    - path: 9709.p1.quadratics
      title: Quadratics
  chunks:
    - id: q-001
      topic_path: 9709.p1.quadratics
      content: "Completing the square ..."
      lang: en

Examples:
  syllabusctl load seed/9709.yaml
  syllabusctl load --batch-size 16 seed/9709.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().IntVar(&loadBatchSize, "batch-size", ingest.DefaultBatchSize, "chunks embedded per request")
	loadCmd.Flags().BoolVar(&loadSkipNodes, "skip-nodes", false, "load chunks only")
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open seed: %w", err)
	}
	seed, err := ingest.Decode(f)
	_ = f.Close()
	if err != nil {
		return err
	}

	rt, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()
	if rt.store.ReadOnly() {
		return fmt.Errorf("load needs service credentials: %w", domain.ErrReadOnly)
	}

	metrics.RegisterEmbeddingMetrics()
	svc := ingest.New(
		catalogrepo.New(rt.store, rt.keys),
		chunkrepo.New(rt.store, rt.keys, rt.cfg.Embedding.Dimensions),
		ingestEmbedder(rt),
		rt.logger,
	).WithBatchSize(loadBatchSize)

	out := cmd.OutOrStdout()
	if !loadSkipNodes {
		n, err := svc.LoadCatalog(cmd.Context(), seed.Nodes)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "catalog: %d nodes written\n", n)
	}

	rep := svc.LoadChunks(cmd.Context(), seed.Chunks)
	for _, r := range rep.Results {
		if r.Err != nil {
			fmt.Fprintf(out, "  %s: %v\n", r.ID, r.Err)
		}
	}
	fmt.Fprintf(out, "chunks: %d loaded, %d failed, %d tokens\n", rep.Loaded, rep.Failed, rep.Tokens)
	if rep.Failed > 0 {
		return fmt.Errorf("%d chunks failed", rep.Failed)
	}
	return nil
}

// ingestEmbedder mirrors the server chain minus instrumentation.
func ingestEmbedder(rt *session) domain.Embedder {
	cfg := rt.cfg.Embedding
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Timeout:    config.Sec(cfg.TimeoutSec),
		Logger:     rt.logger,
	})
	var e domain.Embedder = embeddinguc.NewRetryingEmbedder(base, cfg.Provider, embeddinguc.RetryPolicy{
		MaxRetries: *cfg.MaxRetries,
		BaseDelay:  config.Ms(cfg.BaseDelayMs),
	}, rt.logger)
	if !cfg.DisableCache {
		e = embcache.New(e, rt.store, rt.keys, embcache.Options{
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			TTL:        config.Sec(cfg.CacheTTLSec),
		}, metrics.EmbeddingCacheTotal, rt.logger)
	}
	rt.logger.Debug("Embedder ready", zap.String("model", cfg.Model))
	return e
}
