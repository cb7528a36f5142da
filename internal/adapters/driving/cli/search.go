package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/claimminer/internal/core/domain"
)

// snippetLength is the number of runes shown per result.
const snippetLength = 160

var (
	searchNear       int64
	searchMode       string
	searchLambda     float64
	searchLimit      int
	searchOffset     int
	searchCollection string
	searchLanguage   string
	searchModel      string
	searchScales     []string
	searchJSON       bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search fragments by meaning",
	Long: `Ranks paragraphs and standalone claims by cosine distance to the query.

With --mode mmr results are diversified with Maximal Marginal Relevance:
--lambda 1 ranks by relevance only, lower values penalise results similar
to those already chosen. Use --near to search around an existing fragment
instead of a text.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int64Var(&searchNear, "near", 0, "search near this fragment instead of a query")
	searchCmd.Flags().StringVar(&searchMode, "mode", "", "ranking mode: semantic or mmr (default: search.mode)")
	searchCmd.Flags().Float64Var(&searchLambda, "lambda", 0, "MMR relevance weight in [0,1] (default: search.lambda)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (default: search.limit)")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "number of ranked results to skip")
	searchCmd.Flags().StringVarP(&searchCollection, "collection", "c", "", "restrict to one collection")
	searchCmd.Flags().StringVar(&searchLanguage, "language", "", "restrict to one language code")
	searchCmd.Flags().StringVarP(&searchModel, "model", "m", "", "embedding model (default: base model)")
	searchCmd.Flags().StringSliceVar(&searchScales, "scale", nil, "fragment types to include (default: paragraphs and claims)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errNotConfigured("search")
	}

	query, err := buildSearchQuery(args)
	if err != nil {
		return err
	}

	results, err := searchService.Search(cmd.Context(), query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}

	return outputSearchTable(cmd, results)
}

// buildSearchQuery maps flags onto a query, filling configured defaults.
func buildSearchQuery(args []string) (domain.SearchQuery, error) {
	query := domain.SearchQuery{
		FragmentID:    searchNear,
		Mode:          domain.SearchMode(searchMode),
		Model:         searchModel,
		Lambda:        searchLambda,
		Limit:         searchLimit,
		Offset:        searchOffset,
		CandidatePool: searchDefaults.CandidatePool,
		Filter: domain.SearchFilter{
			Collection: searchCollection,
			Language:   searchLanguage,
		},
	}
	if len(args) == 1 {
		query.Text = args[0]
	}
	if query.Text == "" && query.FragmentID == 0 {
		return query, errors.New("a query or --near fragment is required")
	}
	for _, s := range searchScales {
		scale := domain.FragmentType(s)
		if !scale.IsValid() {
			return query, fmt.Errorf("%w: unknown scale %q", domain.ErrInvalidInput, s)
		}
		query.Filter.Scales = append(query.Filter.Scales, scale)
	}

	if query.Mode == "" {
		query.Mode = searchDefaults.Mode
	}
	if query.Lambda == 0 && query.Mode == domain.SearchModeMMR {
		query.Lambda = searchDefaults.Lambda
	}
	if query.Limit <= 0 {
		query.Limit = searchDefaults.Limit
	}
	return query, nil
}

type searchResultJSON struct {
	Rank       int     `json:"rank"`
	FragmentID int64   `json:"fragment_id"`
	DocumentID int64   `json:"document_id,omitempty"`
	URI        string  `json:"uri,omitempty"`
	Title      string  `json:"title,omitempty"`
	Scale      string  `json:"scale"`
	Score      float64 `json:"score"`
	Distance   float64 `json:"distance"`
	Text       string  `json:"text"`
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	out := make([]searchResultJSON, len(results))
	for i := range results {
		r := &results[i]
		out[i] = searchResultJSON{
			Rank:       r.Rank,
			FragmentID: r.Fragment.ID,
			URI:        r.DocumentURI,
			Title:      r.DocumentTitle,
			Scale:      string(r.Fragment.Scale),
			Score:      r.Score,
			Distance:   r.Distance,
			Text:       r.Fragment.Text,
		}
		if r.Fragment.DocID != nil {
			out[i].DocumentID = *r.Fragment.DocID
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		r := &results[i]
		// Format: [rank] Title (score)
		title := r.DocumentTitle
		if title == "" {
			title = r.DocumentURI
		}
		if title == "" {
			title = fmt.Sprintf("%s #%d", r.Fragment.Scale, r.Fragment.ID)
		}

		cmd.Printf("  [%d] %s (%.3f)\n", r.Rank+1, title, r.Score)
		if r.DocumentURI != "" && r.DocumentURI != title {
			cmd.Printf("      URI: %s\n", r.DocumentURI)
		}
		cmd.Printf("      Fragment %d: %s\n", r.Fragment.ID, snippet(r.Fragment.Text))
		cmd.Println()
	}

	return nil
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= snippetLength {
		return text
	}
	return string(runes[:snippetLength]) + "..."
}
