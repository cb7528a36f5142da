package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/claimminer/internal/core/domain"
)

var uriVariantStatus string

var uriCmd = &cobra.Command{
	Use:   "uri",
	Short: "Manage URI equivalence classes",
	Long: `Every URI belongs to one equivalence class with a single canonical root.
Documents fetched from different members of a class are the same resource.`,
}

var uriShowCmd = &cobra.Command{
	Use:   "show <uri-id|url>",
	Short: "Show the equivalence class of a URI",
	Args:  cobra.ExactArgs(1),
	RunE:  runURIShow,
}

var uriMergeCmd = &cobra.Command{
	Use:   "merge <into-id> <from-id>",
	Short: "Merge one equivalence class into another",
	Args:  cobra.ExactArgs(2),
	RunE:  runURIMerge,
}

var uriVariantCmd = &cobra.Command{
	Use:   "variant <url> <existing-id>",
	Short: "Record a URL as equivalent to an existing URI",
	Long: `Adds the URL to the class of the existing URI. With --status unknown
the configured resolver.variant_policy decides which member is canonical.`,
	Args: cobra.ExactArgs(2),
	RunE: runURIVariant,
}

var uriPromoteCmd = &cobra.Command{
	Use:   "promote <uri-id>",
	Short: "Make a URI the canonical root of its class",
	Args:  cobra.ExactArgs(1),
	RunE:  runURIPromote,
}

func init() {
	uriVariantCmd.Flags().StringVar(&uriVariantStatus, "status", string(domain.URIStatusUnknown),
		"member status: canonical, urn, snapshot, alt or unknown")

	uriCmd.AddCommand(uriShowCmd)
	uriCmd.AddCommand(uriMergeCmd)
	uriCmd.AddCommand(uriVariantCmd)
	uriCmd.AddCommand(uriPromoteCmd)
	rootCmd.AddCommand(uriCmd)
}

func runURIShow(cmd *cobra.Command, args []string) error {
	if resolverService == nil {
		return errNotConfigured("uri")
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		u, err := resolverService.Lookup(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to find URI: %w", err)
		}
		id = u.ID
	}

	root, members, err := resolverService.Class(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to get equivalence class: %w", err)
	}

	cmd.Printf("Canonical: [%d] %s (%s)\n", root.ID, root.URI, root.Status)
	for _, m := range members {
		cmd.Printf("  [%d] %s (%s)\n", m.ID, m.URI, m.Status)
	}
	return nil
}

func runURIMerge(cmd *cobra.Command, args []string) error {
	if resolverService == nil {
		return errNotConfigured("uri")
	}

	intoID, err := parseID("uri", args[0])
	if err != nil {
		return err
	}
	fromID, err := parseID("uri", args[1])
	if err != nil {
		return err
	}

	if err := resolverService.Merge(cmd.Context(), intoID, fromID); err != nil {
		return fmt.Errorf("failed to merge: %w", err)
	}

	cmd.Printf("Merged class of %d into class of %d.\n", fromID, intoID)
	return nil
}

func runURIVariant(cmd *cobra.Command, args []string) error {
	if resolverService == nil {
		return errNotConfigured("uri")
	}

	existingID, err := parseID("uri", args[1])
	if err != nil {
		return err
	}

	u, err := resolverService.AddVariant(cmd.Context(), args[0], existingID, domain.URIStatus(uriVariantStatus))
	if err != nil {
		return fmt.Errorf("failed to add variant: %w", err)
	}

	cmd.Printf("Recorded [%d] %s as %s.\n", u.ID, u.URI, u.Status)
	return nil
}

func runURIPromote(cmd *cobra.Command, args []string) error {
	if resolverService == nil {
		return errNotConfigured("uri")
	}

	id, err := parseID("uri", args[0])
	if err != nil {
		return err
	}

	if err := resolverService.Promote(cmd.Context(), id); err != nil {
		return fmt.Errorf("failed to promote: %w", err)
	}

	cmd.Printf("URI %d is now canonical.\n", id)
	return nil
}
