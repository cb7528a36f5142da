package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/claimminer/internal/adapters/driving/watch"
)

var (
	watchInclude     []string
	watchCollections []string
	watchNoScan      bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Submit files dropped into a directory",
	Long: `Watches a directory tree and submits new or changed files as uploads
identified by their file:// URL. Existing files are submitted first unless
--no-scan is given. Hidden files are ignored.

Examples:
  claimminer watch ~/inbox --include '**/*.pdf' --include '**/*.html'`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringArrayVar(&watchInclude, "include", nil, "glob of files to submit, relative to the directory (default: all)")
	watchCmd.Flags().StringSliceVarP(&watchCollections, "collection", "c", nil, "collection to tag the documents with")
	watchCmd.Flags().BoolVar(&watchNoScan, "no-scan", false, "skip files already in the directory")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errNotConfigured("ingest")
	}

	w := watch.New(ingestService, watch.Config{
		Dir:         args[0],
		Include:     watchInclude,
		Principal:   principal,
		Collections: watchCollections,
	})

	if !watchNoScan {
		count, err := w.Scan(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Printf("Submitted %d existing files.\n", count)
	}

	cmd.Printf("Watching %s. Press Ctrl+C to stop.\n", args[0])
	return w.Run(cmd.Context())
}
