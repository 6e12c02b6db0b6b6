package common

import (
	"context"

	"cvoptimizer/internal/ai"
	"cvoptimizer/internal/errors"
	"cvoptimizer/internal/wallet"
)

// LoadInputFunc reads the command arguments into the operation input.
type LoadInputFunc[Input any] func(fp *FileProcessor) (Input, error)

// LogDetailsFunc defines how to log the start of an operation.
type LogDetailsFunc[Input any] func(input Input, cfg CommandConfig)

// AIOperationFunc is a generic function signature for any AI operation with context and token usage.
type AIOperationFunc[Input, Output any] func(context.Context, Input) (Output, *ai.TokenUsage, error)

// Billing charges a wallet session for an operation.
type Billing struct {
	Store     wallet.Store
	SessionID string
	Cost      int
}

// Command describes one file-based AI command.
type Command[Input, Output any] struct {
	Config     CommandConfig
	LoadInput  LoadInputFunc[Input]
	Operation  AIOperationFunc[Input, Output]
	LogDetails LogDetailsFunc[Input]
	// Billing is optional; nil runs the operation for free.
	Billing *Billing
}

// RunAICommand loads the input, charges the session, runs the operation and
// writes the formatted result. Tokens are refunded when the operation fails.
func RunAICommand[Input, Output any](
	ctx context.Context,
	logger *errors.Logger,
	out *OutputHandler,
	cmd Command[Input, Output],
) error {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	if out == nil {
		out = NewOutputHandler(logger)
	}

	input, err := cmd.LoadInput(NewFileProcessor(logger))
	if err != nil {
		return err
	}

	if cmd.LogDetails != nil {
		cmd.LogDetails(input, cmd.Config)
	}

	if b := cmd.Billing; b != nil {
		state, err := wallet.Charge(ctx, b.Store, b.SessionID, b.Cost)
		if err != nil {
			return err
		}
		logger.Debug("Tokens charged", "cost", b.Cost, "balance", state.Tokens)
	}

	result, tokenUsage, err := cmd.Operation(ctx, input)
	if err != nil {
		if b := cmd.Billing; b != nil {
			state := wallet.Refund(ctx, b.Store, b.SessionID, b.Cost, logger)
			logger.Info("Tokens refunded after failure", "amount", b.Cost, "balance", state.Tokens)
		}
		return err
	}

	if tokenUsage != nil {
		logger.Info("AI token usage",
			"input_tokens", tokenUsage.InputTokens,
			"output_tokens", tokenUsage.OutputTokens,
			"total_tokens", tokenUsage.TotalTokens)
	}

	return out.HandleOutput(result, cmd.Config)
}
