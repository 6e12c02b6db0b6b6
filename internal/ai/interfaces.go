package ai

import (
	"context"

	"cvoptimizer/internal/types"
)

// Provider is implemented by each model backend. All methods return token
// usage; callers can ignore it if not needed.
type Provider interface {
	AnalyzeCV(ctx context.Context, input types.AnalyzeCVInput) (*types.AnalysisResult, *TokenUsage, error)
	CompareWithJob(ctx context.Context, input types.CompareJobInput) (*types.ComparisonResult, *TokenUsage, error)
	EditCV(ctx context.Context, input types.EditCVInput) (*types.CVData, *TokenUsage, error)
	GetModelInfo(ctx context.Context) *ModelInfo
	Close() error
}

// StatsProvider is implemented by providers that expose breaker state.
type StatsProvider interface {
	GetCircuitBreakerStats() map[string]any
}

// PromptResolver returns the configured system and user prompts for an
// operation. Empty strings select the built-in defaults.
type PromptResolver interface {
	ResolvePrompts(operation string) (system, user string)
}

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
	TotalTokens  int64 `json:"totalTokens"`
}

// ModelInfo represents information about the AI model
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}
