// Package cli provides the claimminer command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/claimminer/internal/app"
	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driving"
	"github.com/custodia-labs/claimminer/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

// Global flags.
var (
	verbose   bool
	jsonLogs  bool
	dataDir   string
	configDir string
	ephemeral bool
	principal string
)

// Services used by the commands. They are built from configuration before
// a command runs unless servicesReady is already set.
var (
	settingsService driving.SettingsService
	resolverService driving.URIResolver
	ingestService   driving.IngestService
	documentService driving.DocumentService
	searchService   driving.SearchService
	embedService    driving.EmbedService
	fetchService    driving.FetchService
	extractService  driving.ExtractService
	dispatcher      driving.Dispatcher
	scheduler       driving.Scheduler
	metricsHandler  http.Handler
	searchDefaults  = domain.DefaultAppSettings().Search
	metricsAddr     string

	servicesReady bool
	closeApp      func() error
)

// newApp builds the application. Replaced in tests.
var newApp = app.New

// annotationNoServices marks commands that run without opening storage.
const annotationNoServices = "claimminer/no-services"

var rootCmd = &cobra.Command{
	Use:   "claimminer",
	Short: "Collect documents, split them into fragments and search them by meaning",
	Long: `claimminer downloads web pages and files, extracts their text into
paragraph fragments, embeds them with one or more models and serves
semantic and MMR search over the result.

Submitting only records work: run 'claimminer worker' to process it.`,
	SilenceUsage:      true,
	PersistentPreRunE: prepare,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&jsonLogs, "json-logs", false, "log JSON lines instead of console text")
	flags.StringVar(&dataDir, "data-dir", "", "data directory (default: storage.data_dir or ~/.claimminer/data)")
	flags.StringVar(&configDir, "config-dir", "", "directory holding config.toml and .env (default: ~/.claimminer)")
	flags.BoolVar(&ephemeral, "ephemeral", false, "keep all data in memory and a temporary database")
	flags.StringVar(&principal, "as", defaultPrincipal(), "principal recorded as submitter and checked by auth.principals")
}

// Execute runs the root command and releases services afterwards.
func Execute(ctx context.Context) error {
	defer closeServices()
	return rootCmd.ExecuteContext(ctx)
}

func prepare(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	logger.SetJSON(jsonLogs)

	if servicesReady || cmd.Annotations[annotationNoServices] == "true" {
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, app.Options{
		ConfigDir: configDir,
		DataDir:   dataDir,
		Ephemeral: ephemeral,
	})
	if err != nil {
		return fmt.Errorf("starting claimminer: %w", err)
	}

	settingsService = a.SettingsService
	resolverService = a.Resolver
	ingestService = a.Ingest
	documentService = a.Documents
	searchService = a.Search
	embedService = a.Embed
	fetchService = a.Fetch
	extractService = a.Extract
	dispatcher = a.Dispatcher
	scheduler = a.Scheduler
	metricsHandler = a.Metrics.Handler()
	searchDefaults = a.Settings.Search
	metricsAddr = a.Settings.Metrics.Addr
	closeApp = a.Close
	servicesReady = true
	return nil
}

func closeServices() {
	if closeApp == nil {
		return
	}
	if err := closeApp(); err != nil {
		logger.Error(err, "closing services")
	}
	closeApp = nil
}

func defaultPrincipal() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

// parseID parses a positive numeric identifier argument.
func parseID(kind, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s id %q", domain.ErrInvalidInput, kind, raw)
	}
	return id, nil
}

// errNotConfigured reports a service the command needs but nothing provided.
func errNotConfigured(name string) error {
	return errors.New(name + " service not configured")
}
