package cli

import (
	"time"

	"github.com/spf13/cobra"

	apperrors "github.com/Azmorus/GPTScreener/internal/errors"
	"github.com/Azmorus/GPTScreener/internal/source"
	"github.com/Azmorus/GPTScreener/internal/store"
)

// syncResult is the outcome of syncing one symbol.
type syncResult struct {
	Symbol    string `json:"symbol"`
	Saved     int    `json:"saved"`
	Skipped   bool   `json:"skipped,omitempty"`
	Freshness string `json:"freshness"`
	Error     string `json:"error,omitempty"`
}

func newSyncCmd(app *App) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "sync SYMBOL...",
		Short: "Download candles from Twelve Data into the local store",
		Long: `Download daily candles from Twelve Data and save them in the SQLite store,
which serves as the fallback source. Symbols whose candles are still fresh are
skipped unless --force is given.`,
		Example: `  screener sync AAPL MSFT
  screener sync AAPL --force`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)

			td, err := app.TwelveData()
			if err != nil {
				return err
			}
			db, err := app.Store()
			if err != nil {
				return err
			}
			interval := td.Interval()

			var results []syncResult
			failed := 0
			for _, arg := range args {
				res := syncResult{Symbol: arg}
				sym, err := source.NormalizeSymbol(arg)
				if err != nil {
					res.Error = err.Error()
					results = append(results, res)
					failed++
					continue
				}
				res.Symbol = sym

				fresh, err := store.CheckFreshness(ctx, db, sym, interval, app.Config.Store.StaleAfter, time.Now())
				if err != nil {
					return err
				}
				if fresh.IsFresh && !force {
					res.Skipped = true
					res.Freshness = store.FormatFreshness(fresh)
					results = append(results, res)
					continue
				}

				candles, err := td.Candles(ctx, sym)
				if err != nil {
					app.Logger.Warn().Err(err).Str("symbol", sym).Msg("Sync failed")
					res.Error = err.Error()
					results = append(results, res)
					failed++
					continue
				}
				if err := db.SaveCandles(ctx, sym, interval, candles); err != nil {
					return err
				}
				res.Saved = len(candles)

				if fresh, err = store.CheckFreshness(ctx, db, sym, interval, app.Config.Store.StaleAfter, time.Now()); err == nil {
					res.Freshness = store.FormatFreshness(fresh)
				}
				app.Logger.Info().Str("symbol", sym).Int("candles", res.Saved).Msg("Candles synced")
				results = append(results, res)
			}

			if output.IsJSON() {
				if err := output.JSON(results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					switch {
					case r.Error != "":
						output.Error("✗ %s: %s", r.Symbol, r.Error)
					case r.Skipped:
						output.Dim("- %s: up to date (%s)", r.Symbol, r.Freshness)
					default:
						output.Success("✓ %s: %d candles saved (%s)", r.Symbol, r.Saved, r.Freshness)
					}
				}
			}

			if failed == len(args) {
				return apperrors.Wrapf(apperrors.ErrDataNotFound, "no symbols synced")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "sync even when stored candles are fresh")
	return cmd
}

func newStoreCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Local candle store",
		Long:  "Inspect and load the SQLite candle store used as the fallback source.",
	}

	cmd.AddCommand(newStoreImportCmd(app))
	cmd.AddCommand(newStoreStatusCmd(app))
	return cmd
}

func newStoreImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import SYMBOL FILE",
		Short: "Import candles from a CSV file",
		Long: `Import candles from CSV with columns date,open,high,low,close[,volume] or
date,close. A header row is skipped. Use - to read from stdin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)

			sym, err := source.NormalizeSymbol(args[0])
			if err != nil {
				return err
			}
			r, closeFn, err := openInput(cmd, args[1])
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := store.ParseCandlesCSV(r)
			if err != nil {
				return apperrors.NewValidationError("file", args[1], err.Error())
			}
			if len(res.Candles) == 0 {
				return apperrors.Wrapf(apperrors.ErrDataNotFound, "no candles in %s", args[1])
			}

			db, err := app.Store()
			if err != nil {
				return err
			}
			interval := app.interval()
			if err := db.SaveCandles(ctx, sym, interval, res.Candles); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"symbol":    sym,
					"timeframe": interval,
					"imported":  len(res.Candles),
					"skipped":   res.Skipped,
				})
			}
			output.Success("✓ Imported %d candles for %s", len(res.Candles), sym)
			if res.Skipped > 0 {
				output.Warning("  %d rows skipped", res.Skipped)
			}
			return nil
		},
	}
}

func newStoreStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status SYMBOL...",
		Short: "Show stored candle counts and freshness",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			output := NewOutput(cmd)

			db, err := app.Store()
			if err != nil {
				return err
			}

			var all []*store.DataFreshness
			for _, arg := range args {
				sym, err := source.NormalizeSymbol(arg)
				if err != nil {
					return err
				}
				fresh, err := store.CheckFreshness(ctx, db, sym, app.interval(), app.Config.Store.StaleAfter, time.Now())
				if err != nil {
					return err
				}
				all = append(all, fresh)
			}

			if output.IsJSON() {
				return output.JSON(all)
			}
			table := NewTable(output, "Symbol", "Candles", "Last", "Status")
			for _, f := range all {
				status := output.Red("never synced")
				if !f.LastUpdated.IsZero() {
					if f.IsFresh {
						status = output.Green("fresh")
					} else {
						status = output.Yellow("stale")
					}
				}
				table.AddRow(f.Symbol, FormatCount(f.Count), FormatDate(f.LastUpdated), status)
			}
			table.Render()
			return nil
		},
	}
}
