package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cvoptimizer/internal/ai"
	"cvoptimizer/internal/common"
	"cvoptimizer/internal/config"
	"cvoptimizer/internal/types"
)

var editCmd = &cobra.Command{
	Use:   "edit <cv.json> --instruction <text>",
	Short: "Edit a structured résumé following an instruction",
	Long: `Apply a free-text instruction to a structured résumé, for example
"rewrite the summary for a tech lead role". The edited résumé is printed in
the chosen format; use --format json to feed it back into compare.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: outputPreRun(&editConfig, reportFormats),
	RunE:    runEdit,
}

var (
	editConfig      common.CommandConfig
	editInstruction string
)

func init() {
	addOutputFlags(editCmd, &editConfig, reportFormats)
	editCmd.Flags().StringVarP(&editInstruction, "instruction", "i", "", "What to change in the résumé")
	_ = editCmd.MarkFlagRequired("instruction")
}

func runEdit(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	aiService, err := newAIService(cfg, config.OperationEdit, logger)
	if err != nil {
		return fmt.Errorf("failed to create AI service: %w", err)
	}
	defer func() { _ = aiService.Close() }()

	store, err := newWalletStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	err = common.RunAICommand(cmd.Context(), logger, outputHandler(cmd, logger), common.Command[types.CVData, *types.CVData]{
		Config: editConfig,
		LoadInput: func(fp *common.FileProcessor) (types.CVData, error) {
			return common.ReadJSONFile[types.CVData](fp, args[0])
		},
		LogDetails: func(_ types.CVData, cc common.CommandConfig) {
			logger.Info("Starting CV edit",
				"instruction_chars", len(editInstruction),
				"output_format", cc.OutputFormat)
		},
		Operation: func(ctx context.Context, cv types.CVData) (*types.CVData, *ai.TokenUsage, error) {
			return aiService.EditCV(ctx, cv, editInstruction)
		},
		Billing: billing(cfg, store, config.OperationEdit),
	})
	if err != nil {
		return fmt.Errorf("failed to edit CV: %w", err)
	}

	logger.Info("CV edit completed successfully")
	return nil
}
