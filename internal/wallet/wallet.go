// Package wallet tracks the token balance and login flag of each session.
package wallet

import (
	"context"
	"fmt"

	"cvoptimizer/internal/config"
	"cvoptimizer/internal/errors"
)

// State is the wallet of one session
type State struct {
	Tokens   int  `json:"tokens"`
	LoggedIn bool `json:"isLoggedIn"`
}

// Store persists wallets by session ID. Unknown sessions start with the
// configured initial balance and logged out. Spend must be atomic: a balance
// never goes negative under concurrent spends.
type Store interface {
	Get(ctx context.Context, sessionID string) (State, error)
	Login(ctx context.Context, sessionID string) (State, error)
	Logout(ctx context.Context, sessionID string) (State, error)
	// Spend debits n tokens. ok is false, and the balance unchanged, when
	// n <= 0 or the balance is below n.
	Spend(ctx context.Context, sessionID string, n int) (state State, ok bool, err error)
	// Add credits n tokens; n must be positive.
	Add(ctx context.Context, sessionID string, n int) (State, error)
	Close() error
}

// NewStore builds the store selected by cfg.Backend.
func NewStore(ctx context.Context, cfg config.WalletConfig, logger *errors.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStoreWithTTL(cfg.InitialTokens, cfg.TTL), nil
	case "redis":
		store, err := NewRedisStore(ctx, cfg.Redis, cfg.InitialTokens, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported wallet backend: %s", cfg.Backend), nil)
	}
}

func invalidAmount(n int) error {
	return errors.NewValidationError(errors.ErrCodeInvalidRequest,
		fmt.Sprintf("Token amount must be positive, got %d", n), nil)
}

func validSession(sessionID string) error {
	if sessionID == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "Session ID is required", nil)
	}
	return nil
}

// Charge debits cost tokens for an operation. A zero cost is free and
// returns the current state. An insufficient balance yields a quota error
// carrying the balance and the cost.
func Charge(ctx context.Context, s Store, sessionID string, cost int) (State, error) {
	if cost <= 0 {
		return s.Get(ctx, sessionID)
	}

	state, ok, err := s.Spend(ctx, sessionID, cost)
	if err != nil {
		return state, err
	}
	if !ok {
		return state, errors.NewQuotaError(errors.ErrCodeInsufficientTokens,
			fmt.Sprintf("Saldo insuficiente: esta operação custa %d tokens e você possui %d.", cost, state.Tokens), nil).
			WithContext("balance", state.Tokens).
			WithContext("cost", cost)
	}
	return state, nil
}

// Refund gives back tokens charged for an operation that failed. Failures
// are logged; the caller already has an error to report.
func Refund(ctx context.Context, s Store, sessionID string, cost int, logger *errors.Logger) State {
	if cost <= 0 {
		state, _ := s.Get(ctx, sessionID)
		return state
	}
	state, err := s.Add(context.WithoutCancel(ctx), sessionID, cost)
	if err != nil && logger != nil {
		logger.LogError(err, "Token refund failed", "session_id", sessionID, "amount", cost)
	}
	return state
}
