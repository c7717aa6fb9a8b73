package cli

import (
	"bufio"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/Azmorus/GPTScreener/internal/errors"
	"github.com/Azmorus/GPTScreener/internal/screener"
)

// scanRow is the JSON form of one screened symbol.
type scanRow struct {
	Symbol string           `json:"symbol"`
	Report *screener.Report `json:"report,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func newScreenCmd(app *App) *cobra.Command {
	var (
		file        string
		trend       string
		concurrency int
		matchedOnly bool
	)

	cmd := &cobra.Command{
		Use:   "screen [SYMBOL...]",
		Short: "Screen a list of symbols for patterns",
		Long: `Fetch and screen several symbols concurrently. Symbols come from the
arguments and, with --file, from a watchlist file holding one symbol per line.
Lines starting with # are ignored.`,
		Example: `  screener screen AAPL MSFT NVDA
  screener screen --file watchlist.txt --matched`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			symbols := append([]string(nil), args...)
			if file != "" {
				listed, err := readWatchlist(cmd, file)
				if err != nil {
					return err
				}
				symbols = append(symbols, listed...)
			}
			if len(symbols) == 0 {
				return apperrors.NewValidationError("symbols", "", "no symbols given")
			}

			svc, err := app.Service(trend, true)
			if err != nil {
				return err
			}
			if concurrency <= 0 {
				concurrency = app.Config.Resilience.Concurrency
			}

			results := svc.ScreenAll(cmd.Context(), symbols, concurrency)
			if matchedOnly {
				results = screener.Matched(results)
			}

			if output.IsJSON() {
				rows := make([]scanRow, len(results))
				for i, r := range results {
					rows[i] = scanRow{Symbol: r.Symbol, Report: r.Report}
					if r.Err != nil {
						rows[i].Error = r.Err.Error()
					}
				}
				return output.JSON(rows)
			}

			table := NewTable(output, "Symbol", "Outcome", "Patterns", "Prices", "Source")
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					table.AddRow(r.Symbol, output.Red("error"), TruncateString(r.Err.Error(), 60), "-", "-")
					continue
				}
				rep := r.Report
				table.AddRow(rep.Symbol, output.OutcomeText(rep.Result.Outcome), FormatPatterns(rep.Result),
					FormatCount(rep.Result.Observations), orDash(rep.Source))
			}
			table.Render()

			matched := len(screener.Matched(results))
			output.Println()
			output.Dim("%d screened, %d with patterns, %d failed", len(results), matched, failed)
			return cmd.Context().Err()
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "watchlist file with one symbol per line (- for stdin)")
	cmd.Flags().StringVar(&trend, "trend", "", "trend estimate: sma or hilbert (default from config)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "parallel lookups (default from config)")
	cmd.Flags().BoolVar(&matchedOnly, "matched", false, "only list symbols with at least one pattern")

	return cmd
}

func readWatchlist(cmd *cobra.Command, path string) ([]string, error) {
	r, closeFn, err := openInput(cmd, path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var symbols []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		symbols = append(symbols, strings.Fields(line)[0])
	}
	return symbols, scanner.Err()
}
