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

var compareCmd = &cobra.Command{
	Use:   "compare <cv.json> <job.txt>",
	Short: "Compare a structured résumé with a job description",
	Long: `Score how well a résumé matches a job description. The résumé is the
JSON produced by analyze (cvData) or edit; the job description is plain text.

Costs wallet.costs.compare tokens from the CLI session.`,
	Args:    cobra.ExactArgs(2),
	PreRunE: outputPreRun(&compareConfig, reportFormats),
	RunE:    runCompare,
}

var compareConfig common.CommandConfig

func init() {
	addOutputFlags(compareCmd, &compareConfig, reportFormats)
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	aiService, err := newAIService(cfg, config.OperationCompare, logger)
	if err != nil {
		return fmt.Errorf("failed to create AI service: %w", err)
	}
	defer func() { _ = aiService.Close() }()

	store, err := newWalletStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	err = common.RunAICommand(cmd.Context(), logger, outputHandler(cmd, logger), common.Command[types.CompareJobInput, *types.ComparisonResult]{
		Config: compareConfig,
		LoadInput: func(fp *common.FileProcessor) (types.CompareJobInput, error) {
			cv, err := common.ReadJSONFile[types.CVData](fp, args[0])
			if err != nil {
				return types.CompareJobInput{}, err
			}
			job, err := fp.ReadTextFile(args[1])
			if err != nil {
				return types.CompareJobInput{}, err
			}
			return types.CompareJobInput{CVData: cv, JobDescription: job}, nil
		},
		LogDetails: func(in types.CompareJobInput, cc common.CommandConfig) {
			logger.Info("Starting job comparison",
				"experience_entries", len(in.CVData.Experience),
				"job_chars", len(in.JobDescription),
				"output_format", cc.OutputFormat)
		},
		Operation: func(ctx context.Context, in types.CompareJobInput) (*types.ComparisonResult, *ai.TokenUsage, error) {
			return aiService.CompareWithJob(ctx, in.CVData, in.JobDescription)
		},
		Billing: billing(cfg, store, config.OperationCompare),
	})
	if err != nil {
		return fmt.Errorf("failed to compare CV: %w", err)
	}

	logger.Info("Job comparison completed successfully")
	return nil
}
