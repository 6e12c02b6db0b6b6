package ai

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"cvoptimizer/internal/config"
	"cvoptimizer/internal/errors"
	"cvoptimizer/internal/types"
)

const (
	jobSource        = "Indeed"
	jobSearchBaseURL = "https://br.indeed.com/jobs?q="
	defaultCurrency  = "BRL"
)

// Service handles AI operations for one résumé operation and post-processes
// the model output.
type Service struct {
	Provider  Provider // exported for health checks in the server package
	operation string
	logger    *errors.Logger

	matchScore func() int
	newID      func() string
}

// NewService creates a new AI service instance with configuration for a specific operation
func NewService(cfg *config.OperationAIConfig, operation string, prompts PromptResolver, logger *errors.Logger) (*Service, error) {
	if logger == nil {
		logger = errors.NewNopLogger()
	}

	logger.Debug("Initializing AI service",
		"provider", cfg.Provider,
		"operation", operation,
		"model", cfg.Model)

	var provider Provider
	var err error
	switch cfg.Provider {
	case "gemini":
		provider, err = NewGeminiProvider(cfg, operation, prompts, logger)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", cfg.Provider), nil)
	}
	if err != nil {
		return nil, err
	}

	return NewServiceWithProvider(provider, operation, logger), nil
}

// NewServiceWithProvider wraps an existing provider.
func NewServiceWithProvider(provider Provider, operation string, logger *errors.Logger) *Service {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &Service{
		Provider:   provider,
		operation:  operation,
		logger:     logger,
		matchScore: randomMatchScore,
		newID:      uuid.NewString,
	}
}

// randomMatchScore returns an integer in [80, 99)
func randomMatchScore() int {
	return 80 + rand.IntN(19)
}

// Operation returns the operation name the service was built for.
func (s *Service) Operation() string {
	return s.operation
}

// AnalyzeCV analyses résumé text and decorates the job suggestions
func (s *Service) AnalyzeCV(ctx context.Context, cvText string) (*types.AnalysisResult, *TokenUsage, error) {
	if strings.TrimSpace(cvText) == "" {
		return nil, nil, errors.NewValidationError(errors.ErrCodeInvalidRequest, "CV text is empty", nil)
	}

	result, usage, err := s.Provider.AnalyzeCV(ctx, types.AnalyzeCVInput{CVText: cvText})
	if err != nil {
		return nil, nil, err
	}

	s.decorateAnalysis(result)
	s.logger.Debug("CV analysed",
		"advice", len(result.Advice),
		"job_matches", len(result.JobMatches),
		"estimated_salary", result.Valuation.EstimatedSalary)

	return result, usage, nil
}

// CompareWithJob scores a structured résumé against a job description
func (s *Service) CompareWithJob(ctx context.Context, cv types.CVData, jobDescription string) (*types.ComparisonResult, *TokenUsage, error) {
	if strings.TrimSpace(jobDescription) == "" {
		return nil, nil, errors.NewValidationError(errors.ErrCodeInvalidRequest, "Job description is empty", nil)
	}
	if cv.IsEmpty() {
		return nil, nil, errors.NewValidationError(errors.ErrCodeInvalidRequest, "CV data is empty", nil)
	}

	result, usage, err := s.Provider.CompareWithJob(ctx, types.CompareJobInput{CVData: cv, JobDescription: jobDescription})
	if err != nil {
		return nil, nil, err
	}

	result.MatchScore = clampScore(result.MatchScore)
	for i := range result.SpiderGraph {
		result.SpiderGraph[i].CVValue = clampScore(result.SpiderGraph[i].CVValue)
		result.SpiderGraph[i].JobValue = clampScore(result.SpiderGraph[i].JobValue)
	}
	if result.MissingKeywords == nil {
		result.MissingKeywords = []string{}
	}
	if result.Improvements == nil {
		result.Improvements = []string{}
	}

	return result, usage, nil
}

// EditCV applies a free-text instruction to a structured résumé
func (s *Service) EditCV(ctx context.Context, cv types.CVData, instruction string) (*types.CVData, *TokenUsage, error) {
	if strings.TrimSpace(instruction) == "" {
		return nil, nil, errors.NewValidationError(errors.ErrCodeInvalidRequest, "Edit instruction is empty", nil)
	}

	edited, usage, err := s.Provider.EditCV(ctx, types.EditCVInput{CVData: cv, Instruction: instruction})
	if err != nil {
		return nil, nil, err
	}
	s.fillCVIDs(edited)
	return edited, usage, nil
}

// GetModelInfo returns information about the AI model for health checks
func (s *Service) GetModelInfo(ctx context.Context) *ModelInfo {
	return s.Provider.GetModelInfo(ctx)
}

// Stats returns breaker stats when the provider exposes them.
func (s *Service) Stats() map[string]any {
	if sp, ok := s.Provider.(StatsProvider); ok {
		return sp.GetCircuitBreakerStats()
	}
	return map[string]any{}
}

// Close releases the provider.
func (s *Service) Close() error {
	return s.Provider.Close()
}

func (s *Service) decorateAnalysis(result *types.AnalysisResult) {
	for i := range result.JobMatches {
		job := &result.JobMatches[i]
		if job.ID == "" {
			job.ID = s.newID()
		}
		job.Source = jobSource
		job.URL = JobSearchURL(job.SearchQuery)
		job.MatchScore = s.matchScore()
	}
	for i := range result.Advice {
		if result.Advice[i].ID == "" {
			result.Advice[i].ID = s.newID()
		}
	}
	for _, list := range [][]types.Suggestion{result.ExtraStudies, result.InterviewTips} {
		for i := range list {
			if list[i].ID == "" {
				list[i].ID = s.newID()
			}
		}
	}
	for i := range result.SpiderGraph {
		result.SpiderGraph[i].Value = clampScore(result.SpiderGraph[i].Value)
	}
	if result.Valuation.Currency == "" {
		result.Valuation.Currency = defaultCurrency
	}
	if result.CVData != nil {
		s.fillCVIDs(result.CVData)
	}
}

func (s *Service) fillCVIDs(cv *types.CVData) {
	for i := range cv.Experience {
		if cv.Experience[i].ID == "" {
			cv.Experience[i].ID = s.newID()
		}
	}
	for i := range cv.Education {
		if cv.Education[i].ID == "" {
			cv.Education[i].ID = s.newID()
		}
	}
	for i := range cv.Languages {
		if cv.Languages[i].ID == "" {
			cv.Languages[i].ID = s.newID()
		}
	}
}

// JobSearchURL builds the job-board search link for a query. Spaces are
// encoded as %20.
func JobSearchURL(query string) string {
	return jobSearchBaseURL + strings.ReplaceAll(url.QueryEscape(query), "+", "%20")
}

func clampScore(v int) int {
	return max(0, min(100, v))
}

// Services bundles one Service per operation
type Services struct {
	Analyze *Service
	Compare *Service
	Edit    *Service
}

// NewServices builds every operation service from the application config.
func NewServices(cfg *config.Config, logger *errors.Logger) (*Services, error) {
	build := func(op string) (*Service, error) {
		opCfg := cfg.GetOperationConfig(op)
		svc, err := NewService(&opCfg, op, cfg, logger)
		if err != nil {
			return nil, err
		}
		if g, ok := svc.Provider.(*GeminiProvider); ok {
			g.SetModelCheckTimeout(cfg.Observability.HealthCheck.AIModelCheckTimeout)
		}
		return svc, nil
	}

	analyze, err := build(config.OperationAnalyze)
	if err != nil {
		return nil, err
	}
	compare, err := build(config.OperationCompare)
	if err != nil {
		return nil, err
	}
	edit, err := build(config.OperationEdit)
	if err != nil {
		return nil, err
	}
	return &Services{Analyze: analyze, Compare: compare, Edit: edit}, nil
}

// Close releases every provider.
func (s *Services) Close() error {
	for _, svc := range []*Service{s.Analyze, s.Compare, s.Edit} {
		if svc != nil {
			if err := svc.Close(); err != nil {
				return err
			}
		}
	}
	return nil
}
