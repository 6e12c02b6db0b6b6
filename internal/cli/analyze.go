package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cvoptimizer/internal/ai"
	"cvoptimizer/internal/common"
	"cvoptimizer/internal/config"
	"cvoptimizer/internal/document"
	"cvoptimizer/internal/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a PDF or DOCX résumé",
	Long: `Analyze a résumé with AI. The file is extracted first, then the model
returns:
- Actionable advice with suggested rewrites
- An estimated monthly salary
- Job searches that match the profile
- Extra studies and interview tips
- A skills radar

Costs wallet.costs.analyze tokens from the CLI session.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: outputPreRun(&analyzeConfig, reportFormats),
	RunE:    runAnalyze,
}

var analyzeConfig common.CommandConfig

func init() {
	addOutputFlags(analyzeCmd, &analyzeConfig, reportFormats)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	aiService, err := newAIService(cfg, config.OperationAnalyze, logger)
	if err != nil {
		return fmt.Errorf("failed to create AI service: %w", err)
	}
	defer func() { _ = aiService.Close() }()

	store, err := newWalletStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	err = common.RunAICommand(cmd.Context(), logger, outputHandler(cmd, logger), common.Command[*document.Document, *types.AnalysisResult]{
		Config: analyzeConfig,
		LoadInput: func(fp *common.FileProcessor) (*document.Document, error) {
			return loadDocument(cmd, fp, cfg, logger, args[0])
		},
		LogDetails: func(doc *document.Document, cc common.CommandConfig) {
			logger.Info("Starting CV analysis",
				"file", doc.Filename,
				"pages", doc.PageCount,
				"cv_chars", len(doc.Text),
				"output_format", cc.OutputFormat)
		},
		Operation: func(ctx context.Context, doc *document.Document) (*types.AnalysisResult, *ai.TokenUsage, error) {
			return aiService.AnalyzeCV(ctx, doc.Text)
		},
		Billing: billing(cfg, store, config.OperationAnalyze),
	})
	if err != nil {
		return fmt.Errorf("failed to analyze CV: %w", err)
	}

	logger.Info("CV analysis completed successfully")
	return nil
}
