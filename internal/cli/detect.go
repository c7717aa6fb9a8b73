package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Azmorus/GPTScreener/internal/analysis"
	apperrors "github.com/Azmorus/GPTScreener/internal/errors"
	"github.com/Azmorus/GPTScreener/internal/screener"
	"github.com/Azmorus/GPTScreener/internal/source"
	"github.com/Azmorus/GPTScreener/internal/source/twelvedata"
	"github.com/Azmorus/GPTScreener/internal/store"
)

// inlineSymbol labels price lists given on the command line without a symbol.
const inlineSymbol = "INLINE"

// detectOutput is the JSON form of a detection.
type detectOutput struct {
	*screener.Report
	Summary      interface{}       `json:"summary"`
	Fundamentals *twelvedata.Quote `json:"fundamentals,omitempty"`
}

func newDetectCmd(app *App) *cobra.Command {
	var (
		prices       string
		file         string
		trend        string
		fundamentals bool
	)

	cmd := &cobra.Command{
		Use:   "detect [SYMBOL]",
		Short: "Detect chart patterns for a symbol",
		Long: `Detect Cup and Handle and Bull Flag patterns.

Without --prices or --file the closing prices are fetched from the configured
sources. At least 50 valid prices are needed for a verdict.`,
		Example: `  screener detect AAPL
  screener detect AAPL --trend hilbert
  screener detect --prices 101.5,102,103.25,...
  screener detect MSFT --file closes.csv --json
  screener detect AAPL --fundamentals`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)

			symbol := inlineSymbol
			if len(args) == 1 {
				symbol = args[0]
			}

			var (
				report *screener.Report
				err    error
			)
			if prices != "" || file != "" {
				raw, skipped, rerr := readPrices(cmd, prices, file)
				if rerr != nil {
					return rerr
				}
				svc, serr := app.Service(trend, false)
				if serr != nil {
					return serr
				}
				report, err = svc.ScreenValues(ctx, symbol, raw)
				if err == nil {
					report.Dropped += skipped
				}
			} else {
				if len(args) == 0 {
					return apperrors.NewValidationError("symbol", "", "a symbol is required unless --prices or --file is given")
				}
				svc, serr := app.Service(trend, true)
				if serr != nil {
					return serr
				}
				report, err = svc.Screen(ctx, symbol)
			}
			if err != nil {
				return err
			}

			var quote *twelvedata.Quote
			if fundamentals {
				if quote, err = fetchQuote(cmd, app, args); err != nil {
					return err
				}
			}

			if output.IsJSON() {
				return output.JSON(detectOutput{Report: report, Summary: report.Result.Summary(), Fundamentals: quote})
			}
			printReport(output, report)
			if quote != nil {
				printQuote(output, quote)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prices, "prices", "", "closing prices oldest first, comma separated (use ; when prices carry grouping commas)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read prices from a file (CSV candles or one price per line, - for stdin)")
	cmd.Flags().StringVar(&trend, "trend", "", "trend estimate: sma or hilbert (default from config)")
	cmd.Flags().BoolVar(&fundamentals, "fundamentals", false, "attach the latest Twelve Data quote for the symbol")

	return cmd
}

// readPrices loads raw prices from the --prices flag or a file. CSV files are
// parsed as candles, ordered by date and reduced to their closes, with the
// count of unparseable rows returned alongside. Anything else holds one price
// per line.
func readPrices(cmd *cobra.Command, prices, file string) ([]interface{}, int, error) {
	if prices != "" && file != "" {
		return nil, 0, apperrors.NewValidationError("prices", prices, "use either --prices or --file, not both")
	}
	if prices != "" {
		return ParsePriceList(prices), 0, nil
	}

	r, closeFn, err := openInput(cmd, file)
	if err != nil {
		return nil, 0, err
	}
	defer closeFn()

	if strings.EqualFold(filepath.Ext(file), ".csv") {
		res, err := store.ParseCandlesCSV(r)
		if err != nil {
			return nil, 0, err
		}
		raw := make([]interface{}, len(res.Candles))
		for i, c := range res.Candles {
			raw[i] = c.Close
		}
		return raw, res.Skipped, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", file, err)
	}
	return ParsePriceLines(string(data)), 0, nil
}

// fetchQuote loads the quote shown next to a detection. A symbol and a Twelve
// Data API key are required. A failed lookup is logged and leaves the
// detection in place.
func fetchQuote(cmd *cobra.Command, app *App, args []string) (*twelvedata.Quote, error) {
	if len(args) == 0 {
		return nil, apperrors.NewValidationError("fundamentals", "", "a symbol is required for --fundamentals")
	}
	sym, err := source.NormalizeSymbol(args[0])
	if err != nil {
		return nil, err
	}
	td, err := app.TwelveData()
	if err != nil {
		return nil, err
	}
	quote, err := td.Quote(cmd.Context(), sym)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, apperrors.ErrConfigInvalid) {
			return nil, err
		}
		app.Logger.Warn().Err(err).Str("symbol", sym).Msg("Quote lookup failed")
		return nil, nil
	}
	return quote, nil
}

// openInput opens path for reading, with "-" meaning standard input.
func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func printReport(output *Output, report *screener.Report) {
	title := report.Symbol
	if report.Source != "" {
		title += " " + output.DimText("["+report.Source+"]")
	}
	output.Println(output.BoldText(title))

	obs := FormatCount(report.Result.Observations)
	if report.Dropped > 0 {
		obs += fmt.Sprintf(" (%d dropped)", report.Dropped)
	}
	output.Printf("  Observations: %s\n", obs)
	output.Printf("  Outcome:      %s\n", output.OutcomeText(report.Result.Outcome))

	switch report.Result.Outcome {
	case analysis.OutcomePatternsDetected:
		for _, name := range report.Result.Names() {
			output.Printf("  %s %s\n", output.Green("✓"), name)
		}
	case analysis.OutcomeInsufficientData:
		output.Dim("  Not enough data: need at least 50 valid prices")
	default:
		output.Dim("  No patterns detected")
	}
}

func printQuote(output *Output, q *twelvedata.Quote) {
	output.Println("")
	title := "Fundamentals"
	if q.Name != "" {
		title += " " + output.DimText(q.Name)
	}
	output.Println(output.BoldText(title))

	table := NewTable(output, "FIELD", "VALUE")
	for _, row := range [][2]string{
		{"Exchange", q.Exchange},
		{"Currency", q.Currency},
		{"As of", q.Datetime},
		{"Price", q.Close},
		{"Prev Close", q.PreviousClose},
		{"Change %", q.PercentChange},
		{"Volume", q.Volume},
		{"Avg Volume", q.AverageVolume},
		{"52W Range", q.FiftyTwoWeek.Range},
	} {
		table.AddRow(row[0], orDash(row[1]))
	}
	table.Render()
}

func newFetchCmd(app *App) *cobra.Command {
	var tail int

	cmd := &cobra.Command{
		Use:   "fetch SYMBOL",
		Short: "Fetch raw closing prices for a symbol",
		Long:  "Fetch closing prices through the configured sources without running detection.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			facade, err := app.Facade()
			if err != nil {
				return err
			}
			series, err := facade.Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(series)
			}
			printSeries(output, series, tail)
			return nil
		},
	}

	cmd.Flags().IntVarP(&tail, "tail", "n", 10, "number of most recent prices to show")
	return cmd
}

func printSeries(output *Output, series *source.RawSeries, tail int) {
	output.Println(output.BoldText(series.Symbol) + " " + output.DimText("["+series.Source+"]"))
	output.Printf("  Prices:  %s\n", FormatCount(series.Len()))
	output.Printf("  Fetched: %s\n", FormatDateTime(series.FetchedAt))

	values := series.Values
	if tail > 0 && len(values) > tail {
		values = values[len(values)-tail:]
	}
	if len(values) == 0 {
		return
	}
	parts := make([]string, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case float64:
			parts[i] = FormatPrice(x)
		default:
			parts[i] = fmt.Sprint(x)
		}
	}
	output.Printf("  Latest:  %s\n", strings.Join(parts, " "))
}
