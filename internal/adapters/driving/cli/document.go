package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	documentListCollection string
	documentListAfter      int64
	documentListLimit      int
	documentRefreshReparse bool
)

var documentCmd = &cobra.Command{
	Use:     "document",
	Aliases: []string{"doc"},
	Short:   "Manage stored documents",
	Long:    `List, view, delete, or refresh stored documents.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentShowCmd = &cobra.Command{
	Use:   "show <doc-id>",
	Short: "Show document metadata and URI equivalents",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentShow,
}

var documentContentCmd = &cobra.Command{
	Use:   "content <doc-id>",
	Short: "Print extracted document text",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentContent,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete <doc-id>",
	Short: "Delete a document with its fragments and embeddings",
	Long: `Deletes a document. Documents whose fragments are referenced elsewhere
are refused.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentDelete,
}

var documentRefreshCmd = &cobra.Command{
	Use:   "refresh <doc-id>",
	Short: "Queue a new download of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentRefresh,
}

var documentReparseCmd = &cobra.Command{
	Use:   "reparse <doc-id>",
	Short: "Queue a new extraction of stored content",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentReparse,
}

var documentOpenCmd = &cobra.Command{
	Use:   "open <doc-id>",
	Short: "Open document in default application",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentOpen,
}

func init() {
	documentListCmd.Flags().StringVarP(&documentListCollection, "collection", "c", "", "only documents in this collection")
	documentListCmd.Flags().Int64Var(&documentListAfter, "after", 0, "list documents with a greater id")
	documentListCmd.Flags().IntVarP(&documentListLimit, "limit", "n", 50, "maximum number of documents")
	documentRefreshCmd.Flags().BoolVar(&documentRefreshReparse, "reparse", false, "extract again even when content is unchanged")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentShowCmd)
	documentCmd.AddCommand(documentContentCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	documentCmd.AddCommand(documentRefreshCmd)
	documentCmd.AddCommand(documentReparseCmd)
	documentCmd.AddCommand(documentOpenCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errNotConfigured("document")
	}

	docs, err := documentService.List(cmd.Context(), driven.ListOptions{
		AfterID:    documentListAfter,
		Limit:      documentListLimit,
		Collection: documentListCollection,
	})
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	for i := range docs {
		cmd.Printf("  [%d] %s (%s)\n", docs[i].ID, docs[i].URI, docs[i].State())
		if docs[i].Title != "" {
			cmd.Printf("      Title: %s\n", docs[i].Title)
		}
	}

	cmd.Printf("\nTotal: %d documents\n", len(docs))
	return nil
}

func runDocumentShow(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errNotConfigured("document")
	}

	docID, err := parseID("document", args[0])
	if err != nil {
		return err
	}

	details, err := documentService.GetDetails(cmd.Context(), docID)
	if err != nil {
		return fmt.Errorf("failed to get document details: %w", err)
	}
	doc := &details.Document

	cmd.Printf("Document: %d\n\n", doc.ID)
	cmd.Printf("  Title:       %s\n", doc.Title)
	cmd.Printf("  URI:         %s\n", doc.URI)
	if details.CanonicalURI != "" && details.CanonicalURI != doc.URI {
		cmd.Printf("  Canonical:   %s\n", details.CanonicalURI)
	}
	cmd.Printf("  State:       %s\n", details.State)
	if doc.Attempted {
		cmd.Printf("  Status:      %d\n", doc.ReturnCode)
	}
	if doc.MIMEType != "" {
		cmd.Printf("  Type:        %s\n", doc.BaseMIMEType())
	}
	if doc.Language != "" {
		cmd.Printf("  Language:    %s\n", doc.Language)
	}
	if len(doc.Collections) > 0 {
		cmd.Printf("  Collections: %s\n", strings.Join(doc.Collections, ", "))
	}
	cmd.Printf("  Fragments:   %d\n", details.FragmentCount)
	cmd.Printf("  Requested:   %s\n", doc.Requested.Format(timeLayout))
	if !details.Retrieved.IsZero() {
		cmd.Printf("  Retrieved:   %s\n", details.Retrieved.Format(timeLayout))
	}
	if doc.AddedBy != "" {
		cmd.Printf("  Added by:    %s\n", doc.AddedBy)
	}

	if len(details.Equivalents) > 0 {
		cmd.Println("\n  Equivalent URIs:")
		for _, u := range details.Equivalents {
			cmd.Printf("    [%d] %s (%s)\n", u.ID, u.URI, u.Status)
		}
	}

	if len(details.Metadata) > 0 {
		cmd.Println("\n  Metadata:")
		keys := make([]string, 0, len(details.Metadata))
		for k := range details.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cmd.Printf("    %s: %s\n", k, details.Metadata[k])
		}
	}

	return nil
}

func runDocumentContent(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errNotConfigured("document")
	}

	docID, err := parseID("document", args[0])
	if err != nil {
		return err
	}

	content, err := documentService.GetContent(cmd.Context(), docID)
	if err != nil {
		return fmt.Errorf("failed to get document content: %w", err)
	}

	cmd.Println(content)
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errNotConfigured("ingest")
	}

	docID, err := parseID("document", args[0])
	if err != nil {
		return err
	}

	if err := ingestService.DeleteDocument(cmd.Context(), principal, docID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Document %d deleted.\n", docID)
	return nil
}

func runDocumentRefresh(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errNotConfigured("document")
	}

	docID, err := parseID("document", args[0])
	if err != nil {
		return err
	}

	if err := documentService.Refresh(cmd.Context(), docID, documentRefreshReparse); err != nil {
		return fmt.Errorf("failed to refresh document: %w", err)
	}

	cmd.Printf("Document %d queued for download.\n", docID)
	return nil
}

func runDocumentReparse(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errNotConfigured("document")
	}

	docID, err := parseID("document", args[0])
	if err != nil {
		return err
	}

	if err := documentService.Reparse(cmd.Context(), docID); err != nil {
		return fmt.Errorf("failed to reparse document: %w", err)
	}

	cmd.Printf("Document %d queued for extraction.\n", docID)
	return nil
}

func runDocumentOpen(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errNotConfigured("document")
	}

	docID, err := parseID("document", args[0])
	if err != nil {
		return err
	}

	if err := documentService.Open(cmd.Context(), docID); err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}

	cmd.Printf("Opened document %d in default application.\n", docID)
	return nil
}
