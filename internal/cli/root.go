package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Azmorus/GPTScreener/internal/config"
	apperrors "github.com/Azmorus/GPTScreener/internal/errors"
)

// Version information
const (
	Version   = "0.3.0"
	BuildDate = "2026-10-01"
)

// Exit codes returned by Execute.
const (
	ExitOK      = 0
	ExitError   = 1
	ExitUsage   = 2
	ExitNoData  = 3
	ExitTimeout = 4
)

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *App) {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "screener",
		Short: "GPTScreener - chart pattern screener",
		Long: `GPTScreener detects Cup and Handle and Bull Flag formations in daily
closing prices.

Prices come from the Twelve Data API, with the local SQLite candle store as
fallback, or straight from the command line with 'screener detect --prices'.

Use 'screener <command> --help' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			dir, _ := cmd.Flags().GetString("config")
			debug, _ := cmd.Flags().GetBool("debug")

			cfg, err := config.Load(dir)
			if err != nil {
				return err
			}
			*app = *newApp(cfg, newLogger(cfg.Logging, debug))
			app.Logger.Debug().Str("config_dir", cfg.Dir()).Msg("Configuration loaded")
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/gptscreener)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newDetectCmd(app))
	rootCmd.AddCommand(newFetchCmd(app))
	rootCmd.AddCommand(newScreenCmd(app))
	rootCmd.AddCommand(newSyncCmd(app))
	rootCmd.AddCommand(newStoreCmd(app))

	return rootCmd, app
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	rootCmd, app := newRootCmd()
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	if err != nil && app.Config != nil {
		// PersistentPostRunE is skipped when a command fails.
		_ = app.Close()
	}
	if err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return exitCode(err)
	}
	return ExitOK
}

func exitCode(err error) int {
	switch {
	case apperrors.Is(err, apperrors.ErrInputValidation), apperrors.Is(err, apperrors.ErrConfigInvalid):
		return ExitUsage
	case apperrors.Is(err, apperrors.ErrDataNotFound), apperrors.Is(err, apperrors.ErrSymbolNotFound):
		return ExitNoData
	case apperrors.Is(err, apperrors.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ExitTimeout
	default:
		return ExitError
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("GPTScreener v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": app.Config.Dir()})
			} else {
				output.Println(app.Config.Dir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if app.Config.UsesTwelveData() && app.Config.Credentials.TwelveData.APIKey == "" {
				output.Warning("Twelve Data is configured but no API key is set")
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Sources")
	output.Printf("  Primary:         %s\n", cfg.Source.Primary)
	output.Printf("  Fallback:        %s\n", orDash(cfg.Source.Fallback))
	output.Printf("  Interval:        %s\n", cfg.Source.Interval)
	output.Printf("  Output Size:     %d\n", cfg.Source.OutputSize)
	output.Printf("  Rate Limit:      %d req/min\n", cfg.Source.RequestsPerMin)
	output.Printf("  API Key:         %s\n", maskSecret(cfg.Credentials.TwelveData.APIKey))
	output.Println()

	output.Bold("Store")
	output.Printf("  Path:            %s\n", cfg.Store.Path)
	output.Printf("  Limit:           %d\n", cfg.Store.Limit)
	output.Printf("  Stale After:     %s\n", FormatDuration(cfg.Store.StaleAfter))
	output.Println()

	output.Bold("Cache")
	output.Printf("  Enabled:         %v\n", cfg.Cache.Enabled)
	if cfg.Cache.Enabled {
		output.Printf("  Address:         %s\n", cfg.Cache.Address)
		output.Printf("  TTL:             %s\n", FormatDuration(cfg.Cache.TTL))
	}
	output.Println()

	output.Bold("Detection")
	output.Printf("  Trend Method:    %s\n", cfg.Detector.TrendMethod)
	output.Println()

	output.Bold("Resilience")
	output.Printf("  Retry Delay:     %s\n", FormatDuration(cfg.Resilience.RetryDelay))
	output.Printf("  Breaker:         %v\n", cfg.Resilience.BreakerEnabled)
	output.Printf("  Concurrency:     %d\n", cfg.Resilience.Concurrency)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", cfg.Logging.Level)
	output.Printf("  File:            %v\n", cfg.Logging.File)
	output.Printf("  Metrics:         %v\n", cfg.Metrics.Enabled)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
