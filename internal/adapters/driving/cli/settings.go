package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/claimminer/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure storage, embedding models and search defaults.

Settings live in ~/.claimminer/config.toml. CLAIMMINER_* environment
variables override file keys, e.g. CLAIMMINER_EMBEDDING_API_KEY.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsModeCmd = &cobra.Command{
	Use:   "mode",
	Short: "Set the default search mode",
	Long: `Set the default ranking mode used by search and the MCP search tool.

Available modes:
  semantic - closest fragments first
  mmr      - Maximal Marginal Relevance, trading relevance for diversity`,
	RunE: runSettingsMode,
}

var settingsModelCmd = &cobra.Command{
	Use:   "model",
	Short: "Add or replace an embedding model",
	Long:  `Interactively configure an embedding model and check that it responds.`,
	RunE:  runSettingsModel,
}

var settingsBaseCmd = &cobra.Command{
	Use:   "base <model>",
	Short: "Select the base embedding model",
	Long:  `The base model embeds every fragment and document and answers searches by default.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsBase,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsModeCmd)
	settingsCmd.AddCommand(settingsModelCmd)
	settingsCmd.AddCommand(settingsBaseCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Storage]")
	dir := settings.Storage.DataDir
	if dir == "" {
		dir = "(default)"
	}
	cmd.Printf("  Data directory: %s\n", dir)
	cmd.Printf("  Blob store: %s\n", settings.Storage.CASBackend)
	cmd.Printf("  Vector store: %s\n", settings.Storage.VectorBackend)
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Base model: %s\n", settings.Embedding.BaseModel)
	for _, m := range settings.Embedding.Models {
		status := "configured"
		if !m.IsConfigured() {
			status = "not configured"
		}
		cmd.Printf("  Model %s: %s %s (%s)\n", m.Name, m.Provider.Description(), m.Model, status)
		if m.BaseURL != "" {
			cmd.Printf("    Base URL: %s\n", m.BaseURL)
		}
		if m.Provider.RequiresAPIKey() {
			if m.APIKey != "" {
				cmd.Printf("    API Key: %s\n", maskAPIKey(m.APIKey))
			} else {
				cmd.Printf("    API Key: (not set)\n")
			}
		}
	}
	collections := make([]string, 0, len(settings.Embedding.CollectionModels))
	for name := range settings.Embedding.CollectionModels {
		collections = append(collections, name)
	}
	sort.Strings(collections)
	for _, name := range collections {
		cmd.Printf("  Collection %s: %s\n", name, strings.Join(settings.Embedding.CollectionModels[name], ", "))
	}
	cmd.Println()

	cmd.Println("[Pipeline]")
	cmd.Printf("  Minimum paragraph length: %d\n", settings.Pipeline.MinParagraphLength)
	cmd.Printf("  Dedup minimum size: %d bytes\n", settings.Pipeline.DedupMinSize)
	cmd.Printf("  Extract workers: %d\n", settings.Pipeline.ExtractWorkers)
	cmd.Printf("  Variant policy: %s\n", settings.Resolver.VariantPolicy)
	cmd.Println()

	cmd.Println("[Search]")
	cmd.Printf("  Mode: %s\n", settings.Search.Mode.Description())
	cmd.Printf("  Lambda: %.2f\n", settings.Search.Lambda)
	cmd.Printf("  Limit: %d\n", settings.Search.Limit)
	cmd.Println()

	if len(settings.Auth.Principals) > 0 {
		cmd.Println("[Auth]")
		cmd.Printf("  Principals: %s\n", strings.Join(settings.Auth.Principals, ", "))
		cmd.Println()
	}

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'claimminer settings model' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsMode(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	reader := bufio.NewReader(cmd.InOrStdin())

	cmd.Println("Select Search Mode")
	cmd.Println("------------------")
	modes := domain.AllSearchModes()
	for i, mode := range modes {
		cmd.Printf("  %d. %s\n", i+1, mode.Description())
	}
	cmd.Print("\nEnter choice: ")
	input := readLine(reader)
	idx := parseChoice(input, len(modes), 0)
	if idx == 0 {
		return errors.New("invalid selection")
	}

	selectedMode := modes[idx-1]
	if err := settingsService.SetSearchMode(selectedMode); err != nil {
		return fmt.Errorf("failed to set search mode: %w", err)
	}

	cmd.Printf("Search mode set to: %s\n", selectedMode.Description())
	return nil
}

func runSettingsModel(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	return configureModel(cmd, reader)
}

func runSettingsBase(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	if err := settingsService.SetBaseModel(args[0]); err != nil {
		return fmt.Errorf("failed to set base model: %w", err)
	}

	cmd.Printf("Base model set to: %s\n", args[0])
	cmd.Println("Run 'claimminer embed-batch' to embed existing fragments with it.")
	return nil
}

func configureModel(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Print("Model name (used in collections and queries): ")
	name := readLine(reader)
	if name == "" {
		return errors.New("model name is required")
	}

	cmd.Println("Select Embedding Provider")
	providers := domain.AllProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selectedProvider := providers[idx-1]

	defaultModel := domain.DefaultEmbeddingModels()[selectedProvider]
	cmd.Printf("Enter model identifier [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key (empty to use embedding.api_key): ")
		apiKey = readPassword(cmd.InOrStdin(), reader)
		cmd.Println()
	}

	err := settingsService.SetModel(domain.ModelSettings{
		Name:     name,
		Provider: selectedProvider,
		Model:    model,
		APIKey:   apiKey,
	})
	if err != nil {
		return fmt.Errorf("failed to configure model: %w", err)
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Model %s configured: %s (%s)\n", name, selectedProvider.Description(), model)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo when in is a terminal, otherwise a line.
func readPassword(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
