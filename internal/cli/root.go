package cli

import (
	"context"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"cvoptimizer/internal/ai"
	"cvoptimizer/internal/common"
	"cvoptimizer/internal/config"
	"cvoptimizer/internal/errors"
	"cvoptimizer/internal/wallet"
)

// Define custom private types for context keys.
type configKeyType struct{}
type loggerKeyType struct{}

var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

var rootCmd = &cobra.Command{
	Use:   "cvoptimizer",
	Short: "Reconstruct, analyze and improve résumés with AI",
	Long: `cvoptimizer extracts résumés from PDF and DOCX files, rebuilding the
visual layout of every page, and uses AI to analyze them, compare them with
job descriptions and edit them. Paid operations draw from a token wallet.`,
	SilenceUsage: true,
}

// Seams replaced in tests.
var (
	newAIService = func(cfg *config.Config, operation string, logger *errors.Logger) (*ai.Service, error) {
		opCfg := cfg.GetOperationConfig(operation)
		return ai.NewService(&opCfg, operation, cfg, logger)
	}
	newWalletStore = func(ctx context.Context, cfg *config.Config, logger *errors.Logger) (wallet.Store, error) {
		return wallet.NewStore(ctx, cfg.Wallet, logger)
	}
)

func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

// getConfigFromContext is a helper function to get config from context
func getConfigFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg
	}
	panic("config not found in context") // Should not happen if properly initialized
}

// getLoggerFromContext is a helper function to get logger from context
func getLoggerFromContext(ctx context.Context) *errors.Logger {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger
	}
	panic("logger not found in context") // Should not happen if properly initialized
}

// Formats each kind of output can be rendered in.
var (
	reportFormats = []string{"json", "yaml", "text", "markdown", "html"}
	listFormats   = []string{"json", "yaml"}
)

// addOutputFlags registers --output and --format with shell completion.
func addOutputFlags(cmd *cobra.Command, cc *common.CommandConfig, available []string) {
	cmd.Flags().StringVarP(&cc.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&cc.OutputFormat, "format", "", "Output format: "+strings.Join(available, ", "))

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return common.AllowedFormats(cfg.App.SupportedFormats, available), cobra.ShellCompDirectiveNoFileComp
	})
}

// outputPreRun applies the default format and rejects formats the command
// cannot render.
func outputPreRun(cc *common.CommandConfig, available []string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg := getConfigFromContext(cmd.Context())
		allowed := common.AllowedFormats(cfg.App.SupportedFormats, available)
		if len(allowed) == 0 {
			allowed = []string{"json"}
		}
		if cc.OutputFormat == "" {
			cc.OutputFormat = cfg.App.DefaultFormat
			if !slices.Contains(allowed, cc.OutputFormat) {
				cc.OutputFormat = allowed[0]
			}
		}
		return common.ValidateOutputFormat(cc.OutputFormat, allowed)
	}
}

func outputHandler(cmd *cobra.Command, logger *errors.Logger) *common.OutputHandler {
	return common.NewOutputHandlerWithWriter(cmd.OutOrStdout(), logger)
}

// billing charges the CLI session configured under wallet.cliSession.
func billing(cfg *config.Config, store wallet.Store, operation string) *common.Billing {
	return &common.Billing{
		Store:     store,
		SessionID: cfg.Wallet.CLISession,
		Cost:      cfg.CostFor(operation),
	}
}

func closeStore(store wallet.Store, logger *errors.Logger) {
	if err := store.Close(); err != nil {
		logger.Warn("Failed to close wallet store", "error", err)
	}
}

func init() {
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(talentCmd)
	rootCmd.AddCommand(tokensCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
