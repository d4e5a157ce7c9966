package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	searchQuery string
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run only the web search step",
	Long: `Query the search provider and print the deduplicated results. Nothing is
fetched, stored or cached.

Examples:
  research search -q "quantum entanglement"
  research search -q "quantum entanglement" --json`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "search query (required)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context(), GetConfig(), GetRootDir(), GetLogger())
	if err != nil {
		return err
	}
	defer a.Close()

	hits, err := a.research.SearchWeb(cmd.Context(), searchQuery)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if searchJSON {
		output, _ := json.MarshalIndent(hits, "", "  ")
		fmt.Fprintln(w, string(output))
		return nil
	}

	if len(hits) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}
	fmt.Fprintf(w, "Found %d results for: %s\n\n", len(hits), searchQuery)
	for i, h := range hits {
		fmt.Fprintf(w, "[%d] %s\n    %s\n", i+1, h.Title, h.URL)
	}
	return nil
}
