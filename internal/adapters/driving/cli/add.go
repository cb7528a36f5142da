package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	addCollections  []string
	addFileURL      string
	addFileMIMEType string
)

var addCmd = &cobra.Command{
	Use:   "add <url>...",
	Short: "Submit URLs for download",
	Long: `Records the URLs and queues them for download. URLs that are already
known are skipped. Run 'claimminer worker' to process the queue.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var addFileCmd = &cobra.Command{
	Use:   "add-file <path>",
	Short: "Submit a local file",
	Long: `Stores the file content and queues it for extraction. The document is
identified by --url, or by the file:// URL of the path when omitted.`,
	Args: cobra.ExactArgs(1),
	RunE: runAddFile,
}

func init() {
	addCmd.Flags().StringSliceVarP(&addCollections, "collection", "c", nil, "collection to tag the documents with")
	addFileCmd.Flags().StringSliceVarP(&addCollections, "collection", "c", nil, "collection to tag the document with")
	addFileCmd.Flags().StringVar(&addFileURL, "url", "", "URL identifying the document (default: file:// URL of the path)")
	addFileCmd.Flags().StringVar(&addFileMIMEType, "mime-type", "", "content type (default: sniffed from the content)")
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(addFileCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errNotConfigured("ingest")
	}

	docs, err := ingestService.SubmitURLs(cmd.Context(), principal, args, addCollections)
	if err != nil {
		return fmt.Errorf("failed to add URLs: %w", err)
	}

	for i := range docs {
		cmd.Printf("  [%d] %s\n", docs[i].ID, docs[i].URI)
	}
	cmd.Printf("Added %d documents, %d already known.\n", len(docs), len(args)-len(docs))
	return nil
}

func runAddFile(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errNotConfigured("ingest")
	}

	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	url := addFileURL
	if url == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve path: %w", err)
		}
		url = "file://" + filepath.ToSlash(abs)
	}

	doc, err := ingestService.SubmitFile(cmd.Context(), principal, url, content, addFileMIMEType, addCollections)
	if err != nil {
		return fmt.Errorf("failed to add file: %w", err)
	}

	cmd.Printf("Added document %d: %s (%s)\n", doc.ID, doc.URI, doc.BaseMIMEType())
	return nil
}
