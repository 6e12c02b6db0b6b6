package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cvoptimizer/internal/wallet"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Show or credit the CLI session balance",
	Long: `Show the token balance of the CLI session (wallet.cliSession) in the
configured store. With the memory backend the balance lives only as long as
the process; use the redis backend to keep it between runs.`,
	Args: cobra.NoArgs,
	RunE: runTokens,
}

var tokensAdd int

func init() {
	tokensCmd.Flags().IntVar(&tokensAdd, "add", 0, "Credit this many tokens before printing the balance")
}

func runTokens(cmd *cobra.Command, _ []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	store, err := newWalletStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	session := cfg.Wallet.CLISession
	var state wallet.State
	if cmd.Flags().Changed("add") {
		state, err = store.Add(cmd.Context(), session, tokensAdd)
	} else {
		state, err = store.Get(cmd.Context(), session)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Sessão %s: %d tokens\n", session, state.Tokens)
	return err
}
