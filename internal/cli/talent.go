package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cvoptimizer/internal/common"
	"cvoptimizer/internal/talent"
	"cvoptimizer/internal/types"
)

var talentCmd = &cobra.Command{
	Use:   "talent",
	Short: "Talent network: promoted ads and résumé submissions",
}

var talentAdsCmd = &cobra.Command{
	Use:     "ads",
	Short:   "List the promoted job ads",
	Args:    cobra.NoArgs,
	PreRunE: outputPreRun(&talentAdsConfig, listFormats),
	RunE:    runTalentAds,
}

var talentSubmitCmd = &cobra.Command{
	Use:   "submit <cv.json>",
	Short: "Submit a structured résumé to the talent network",
	Long: `Publish a résumé to the talent network. With talent.publisher set to
amqp the submission goes to RabbitMQ; the log publisher only records it.

Costs wallet.costs.talent tokens from the CLI session.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: outputPreRun(&talentSubmitConfig, listFormats),
	RunE:    runTalentSubmit,
}

var (
	talentAdsConfig    common.CommandConfig
	talentSubmitConfig common.CommandConfig
)

func init() {
	addOutputFlags(talentAdsCmd, &talentAdsConfig, listFormats)
	addOutputFlags(talentSubmitCmd, &talentSubmitConfig, listFormats)
	talentCmd.AddCommand(talentAdsCmd)
	talentCmd.AddCommand(talentSubmitCmd)
}

func runTalentAds(cmd *cobra.Command, _ []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	ads := talent.NewCatalog(cfg.Talent.Ads).Ads()
	return outputHandler(cmd, logger).HandleOutput(ads, talentAdsConfig)
}

func runTalentSubmit(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	cv, err := common.ReadJSONFile[types.CVData](common.NewFileProcessor(logger), args[0])
	if err != nil {
		return err
	}

	store, err := newWalletStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	publisher, err := talent.NewPublisher(cfg.Talent, logger)
	if err != nil {
		return err
	}
	service := talent.NewService(cfg.Talent, cfg.CostFor("talent"), store, publisher, logger)
	defer func() { _ = service.Close() }()

	submission, state, err := service.Submit(cmd.Context(), cfg.Wallet.CLISession, cv)
	if err != nil {
		return fmt.Errorf("failed to submit CV: %w", err)
	}

	logger.Info("Remaining balance", "tokens", state.Tokens)
	return outputHandler(cmd, logger).HandleOutput(submission, talentSubmitConfig)
}
