package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"research/internal/domain"
)

var (
	askQuery      string
	askJSON       bool
	askNoProgress bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a query from fresh web sources",
	Long: `Search the web, read the results and print a cited answer.

Examples:
  research ask -q "what is quantum entanglement"
  research ask -q "how do heat pumps work" --json`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuery, "query", "q", "", "query to research (required)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.Flags().BoolVar(&askNoProgress, "no-progress", false, "disable the ingest progress bar")
	askCmd.MarkFlagRequired("query")
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context(), GetConfig(), GetRootDir(), GetLogger())
	if err != nil {
		return err
	}
	defer a.Close()

	var progress func(done, total int)
	if !askNoProgress {
		progress = newIngestProgress()
	}

	out, err := a.research.RunWithProgress(cmd.Context(), askQuery, progress)
	if err != nil {
		return fmt.Errorf("research failed: %w", err)
	}

	if askJSON {
		output, _ := json.MarshalIndent(out, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(output))
		return nil
	}

	printAnswer(cmd, out)
	return nil
}

func printAnswer(cmd *cobra.Command, out *domain.ResearchOutput) {
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, out.SynthesizedAnswer)
	if len(out.Sources) == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources:")
	for i, s := range out.Sources {
		title := strings.TrimSpace(s.Title)
		if title == "" {
			title = s.URL
		}
		fmt.Fprintf(w, "  [%d] %s (score: %.2f)\n      %s\n", i+1, title, s.Score, s.URL)
	}
}

// newIngestProgress returns a callback that draws a bar on stderr the first
// time it is called.
func newIngestProgress() func(done, total int) {
	var (
		mu  sync.Mutex
		bar *progressbar.ProgressBar
	)
	return func(done, total int) {
		mu.Lock()
		defer mu.Unlock()

		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Reading sources[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(os.Stderr)
				}),
			)
		}
		_ = bar.Set(done)
	}
}
