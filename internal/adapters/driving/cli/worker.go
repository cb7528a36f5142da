package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/logger"
)

// shutdownTimeout bounds the metrics server shutdown.
const shutdownTimeout = 5 * time.Second

var (
	workerNoScheduler bool
	workerMetricsAddr string
	fetchRefetch      bool
	extractReparse    bool
	batchModel        string
	batchCollection   string
	batchDocuments    bool
	batchFragments    bool
	batchSize         int
	batchPauseAfter   int
	batchPauseLength  time.Duration
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued downloads, extractions and embeddings",
	Long: `Consumes the task queue until interrupted. Each topic partition is
handled by its own goroutine. The scheduler backfills missing embeddings
and prunes old messages, and metrics are served on metrics.addr when set.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <doc-id>",
	Short: "Download one document now",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

var extractCmd = &cobra.Command{
	Use:   "extract <doc-id>",
	Short: "Extract the fragments of one document now",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

var embedBatchCmd = &cobra.Command{
	Use:   "embed-batch",
	Short: "Embed every document and fragment missing a vector",
	Long: `Computes missing embeddings for one model. Without --documents or
--fragments both are processed. Use --pause-after to stay under provider
rate limits on large backfills.`,
	Args: cobra.NoArgs,
	RunE: runEmbedBatch,
}

func init() {
	workerCmd.Flags().BoolVar(&workerNoScheduler, "no-scheduler", false, "do not run scheduled tasks")
	workerCmd.Flags().StringVar(&workerMetricsAddr, "metrics-addr", "", "serve Prometheus metrics here (overrides metrics.addr)")

	fetchCmd.Flags().BoolVar(&fetchRefetch, "refetch", false, "download again even when content is stored")
	extractCmd.Flags().BoolVar(&extractReparse, "reparse", false, "extract again even when content is unchanged")

	embedBatchCmd.Flags().StringVarP(&batchModel, "model", "m", "", "embedding model (default: base model)")
	embedBatchCmd.Flags().StringVarP(&batchCollection, "collection", "c", "", "restrict to one collection")
	embedBatchCmd.Flags().BoolVar(&batchDocuments, "documents", false, "embed whole documents")
	embedBatchCmd.Flags().BoolVar(&batchFragments, "fragments", false, "embed fragments")
	embedBatchCmd.Flags().IntVar(&batchSize, "batch-size", domain.DefaultBatchSize, "texts per model call")
	embedBatchCmd.Flags().IntVar(&batchPauseAfter, "pause-after", 0, "pause after this many batches (0 = never)")
	embedBatchCmd.Flags().DurationVar(&batchPauseLength, "pause", domain.DefaultPauseLength, "length of each pause")

	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(embedBatchCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	if dispatcher == nil {
		return errNotConfigured("dispatcher")
	}

	addr := metricsAddr
	if workerMetricsAddr != "" {
		addr = workerMetricsAddr
	}

	g, ctx := errgroup.WithContext(cmd.Context())

	g.Go(func() error {
		return dispatcher.Start(ctx)
	})

	if scheduler != nil && !workerNoScheduler {
		g.Go(func() error {
			err := scheduler.Start(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if addr != "" && metricsHandler != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: shutdownTimeout}

		g.Go(func() error {
			logger.Info("Serving metrics on http://%s/metrics", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	cmd.Println("Worker started. Press Ctrl+C to stop.")
	return g.Wait()
}

func runFetch(cmd *cobra.Command, args []string) error {
	if fetchService == nil {
		return errNotConfigured("fetch")
	}

	docID, err := parseID("document", args[0])
	if err != nil {
		return err
	}

	var params map[string]any
	if fetchRefetch {
		params = map[string]any{domain.ParamRefetch: true}
	}

	outcome, err := fetchService.Fetch(cmd.Context(), docID, params)
	if err != nil {
		return fmt.Errorf("failed to fetch document: %w", err)
	}

	switch outcome.Status {
	case domain.FetchMerged:
		cmd.Printf("Document %d has the same content as document %d and was merged.\n", docID, outcome.MergedInto)
	case domain.FetchFetched, domain.FetchUnchanged:
		cmd.Printf("Document %d %s (%s).\n", docID, outcome.Status, outcome.MIMEType)
	default:
		cmd.Printf("Document %d %s.\n", docID, outcome.Status)
	}
	return nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	if extractService == nil || documentService == nil {
		return errNotConfigured("extract")
	}

	docID, err := parseID("document", args[0])
	if err != nil {
		return err
	}

	doc, err := documentService.Get(cmd.Context(), docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	kind, ok := domain.ExtractorKindFor(doc.MIMEType)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedType, doc.BaseMIMEType())
	}

	var params map[string]any
	if extractReparse {
		params = map[string]any{domain.ParamReparse: true}
	}

	outcome, err := extractService.Extract(cmd.Context(), docID, kind, params)
	if err != nil {
		return fmt.Errorf("failed to extract document: %w", err)
	}

	if outcome.Status == domain.ExtractUnchanged {
		cmd.Printf("Document %d is unchanged.\n", docID)
		return nil
	}
	cmd.Printf("Document %d extracted: %d fragments.\n", docID, len(outcome.FragmentIDs))
	return nil
}

func runEmbedBatch(cmd *cobra.Command, _ []string) error {
	if embedService == nil {
		return errNotConfigured("embedding")
	}

	result, err := embedService.BatchEmbed(cmd.Context(), domain.BatchOptions{
		Model:       batchModel,
		Collection:  batchCollection,
		Documents:   batchDocuments,
		Fragments:   batchFragments,
		BatchSize:   batchSize,
		PauseAfter:  batchPauseAfter,
		PauseLength: batchPauseLength,
	})
	if result != nil {
		cmd.Printf("Embedded %d, skipped %d in %d batches.\n", result.Embedded, result.Skipped, result.Batches)
	}
	if err != nil {
		return fmt.Errorf("batch embedding failed: %w", err)
	}
	return nil
}
