package ai

import (
	"context"
	"crypto/rand"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"net/http"
	"regexp"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"cvoptimizer/internal/config"
	"cvoptimizer/internal/errors"
	"cvoptimizer/internal/types"
)

// DefaultModelCheckTimeout bounds GetModelInfo when no timeout is set
const DefaultModelCheckTimeout = 10 * time.Second

// modelsAPI is the subset of genai.Models used by the provider.
type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	Get(ctx context.Context, model string, config *genai.GetModelConfig) (*genai.Model, error)
}

// GeminiProvider implements Provider for Google Gemini
type GeminiProvider struct {
	models            modelsAPI
	config            *config.OperationAIConfig
	operation         string
	prompts           PromptResolver
	circuitBreaker    *CircuitBreaker[*genai.GenerateContentResponse]
	modelBreaker      *CircuitBreaker[*genai.Model]
	modelCheckTimeout time.Duration
	logger            *errors.Logger
}

var _ Provider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a new Gemini provider instance for a specific operation
func NewGeminiProvider(cfg *config.OperationAIConfig, operation string, prompts PromptResolver, logger *errors.Logger) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewConfigError(errors.ErrCodeMissingAPIKey, "Gemini API key is not configured", nil)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.NewAIError(errors.ErrCodeAIServiceFailed, "Failed to create Gemini client", err)
	}

	return newGeminiProvider(client.Models, cfg, operation, prompts, logger), nil
}

func newGeminiProvider(models modelsAPI, cfg *config.OperationAIConfig, operation string, prompts PromptResolver, logger *errors.Logger) *GeminiProvider {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &GeminiProvider{
		models:            models,
		config:            cfg,
		operation:         operation,
		prompts:           prompts,
		circuitBreaker:    NewAICircuitBreaker(operation, cfg, logger),
		modelBreaker:      NewModelCircuitBreaker(operation, cfg, logger),
		modelCheckTimeout: DefaultModelCheckTimeout,
		logger:            logger,
	}
}

// SetModelCheckTimeout overrides the GetModelInfo deadline.
func (g *GeminiProvider) SetModelCheckTimeout(d time.Duration) {
	if d > 0 {
		g.modelCheckTimeout = d
	}
}

// GetModelInfo checks the readiness and availability of the configured model
func (g *GeminiProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	modelInfo := &ModelInfo{Name: g.config.Model}

	checkCtx, cancel := context.WithTimeout(ctx, g.modelCheckTimeout)
	defer cancel()

	model, err := g.modelBreaker.Execute(func() (*genai.Model, error) {
		return g.models.Get(checkCtx, g.config.Model, &genai.GetModelConfig{})
	})
	if err != nil {
		modelInfo.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed",
			"model", g.config.Model,
			"operation", g.operation,
			"error", err.Error())
		return modelInfo
	}

	modelInfo.Available = true
	modelInfo.DisplayName = model.DisplayName
	modelInfo.Version = model.Version

	g.logger.Debug("Model availability check successful",
		"model", g.config.Model,
		"display_name", modelInfo.DisplayName,
		"version", modelInfo.Version)

	return modelInfo
}

// executeWithRetry executes an AI operation with retry logic and exponential backoff
func (g *GeminiProvider) executeWithRetry(ctx context.Context, operation string, fn func() (*genai.GenerateContentResponse, error)) (*genai.GenerateContentResponse, error) {
	maxRetries := 0
	if g.config.MaxRetries != nil {
		maxRetries = *g.config.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("Retrying AI operation",
				"operation", operation,
				"attempt", attempt,
				"max_retries", maxRetries,
				"error", lastErr.Error())

			select {
			case <-time.After(backoffDelay(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				g.logger.Info("AI operation succeeded after retry",
					"operation", operation,
					"total_attempts", attempt+1)
			}
			return result, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			g.logger.Debug("Error is not retryable, stopping retry attempts",
				"operation", operation,
				"error", err.Error())
			break
		}
	}

	g.logger.LogError(lastErr, "AI operation failed after all retry attempts",
		"operation", operation,
		"total_attempts", maxRetries+1)

	return nil, fmt.Errorf("operation '%s' failed after %d retries: %w", operation, maxRetries, lastErr)
}

// backoffDelay is 2^(attempt-1) seconds plus up to 10% jitter, capped at 30s
func backoffDelay(attempt int) time.Duration {
	baseDelay := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	var jitter time.Duration
	if jitterMax := int64(float64(baseDelay) * 0.1); jitterMax > 0 {
		if n, err := rand.Int(rand.Reader, big.NewInt(jitterMax)); err == nil {
			jitter = time.Duration(n.Int64())
		}
	}
	return min(baseDelay+jitter, 30*time.Second)
}

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}

	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}

	// genai returns APIError by value.
	var genaiErr genai.APIError
	if stderrors.As(err, &genaiErr) {
		return retryableStatus(genaiErr.Code)
	}
	var genaiErrPtr *genai.APIError
	if stderrors.As(err, &genaiErrPtr) && genaiErrPtr != nil {
		return retryableStatus(genaiErrPtr.Code)
	}

	return false
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// decodeJSONResponse decodes model output, falling back to the outermost
// {...} block when the text carries prose or code fences around the JSON.
func decodeJSONResponse[Out any](text string) (Out, error) {
	var out Out
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return out, nil
	}

	match := jsonObjectPattern.FindString(text)
	if match == "" {
		var zero Out
		return zero, fmt.Errorf("no JSON object found in model response")
	}

	var fallback Out
	if err := json.Unmarshal([]byte(match), &fallback); err != nil {
		return fallback, err
	}
	return fallback, nil
}

// executeAIOperation runs one generation with tracing, circuit breaking, retries and parsing.
func executeAIOperation[Out any](
	g *GeminiProvider,
	ctx context.Context,
	operationName string,
	userPrompt string,
	systemPrompt string,
	genaiConfig *genai.GenerateContentConfig,
	spanAttributes ...attribute.KeyValue,
) (Out, *TokenUsage, error) {
	var output Out
	ctx, span := otel.Tracer("cvoptimizer.ai.gemini").Start(ctx, "gemini."+operationName)
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.config.Model),
	)
	if g.config.Temperature != nil {
		span.SetAttributes(attribute.Float64("ai.temperature", float64(*g.config.Temperature)))
	}
	span.SetAttributes(spanAttributes...)

	if g.config.Timeout != nil && *g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *g.config.Timeout)
		defer cancel()
	}

	useSystem := g.config.UseSystemPrompts == nil || *g.config.UseSystemPrompts
	if useSystem && systemPrompt != "" {
		genaiConfig.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	result, err := g.circuitBreaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return g.executeWithRetry(ctx, operationName, func() (*genai.GenerateContentResponse, error) {
			return g.models.GenerateContent(ctx, g.config.Model, genai.Text(userPrompt), genaiConfig)
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		code := errors.ErrCodeAIServiceFailed
		if stderrors.Is(err, context.DeadlineExceeded) {
			code = errors.ErrCodeAITimeout
		}
		return output, nil, errors.NewAIError(code, "Failed to generate content for "+operationName, err)
	}

	output, err = decodeJSONResponse[Out](result.Text())
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return output, nil, errors.NewAIError(errors.ErrCodeInvalidFormat, "Failed to parse AI response for "+operationName, err)
	}

	tokenUsage := extractTokenUsage(result)
	if tokenUsage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", tokenUsage.InputTokens),
			attribute.Int64("ai.tokens.output", tokenUsage.OutputTokens),
			attribute.Int64("ai.tokens.total", tokenUsage.TotalTokens),
		)
	}

	span.SetAttributes(attribute.Bool("success", true))
	return output, tokenUsage, nil
}

// AnalyzeCV implements Provider for résumé analysis
func (g *GeminiProvider) AnalyzeCV(ctx context.Context, input types.AnalyzeCVInput) (*types.AnalysisResult, *TokenUsage, error) {
	p := promptsFor(g.prompts, config.OperationAnalyze)

	output, tokenUsage, err := executeAIOperation[types.AnalysisResult](
		g, ctx, "analyze_cv",
		fmt.Sprintf(p.User, input.CVText),
		p.System,
		g.withTemperature(analysisSchema()),
		attribute.Int("input.cv_length", len(input.CVText)),
	)
	if err != nil {
		return nil, nil, err
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.Int("output.advice_count", len(output.Advice)),
			attribute.Float64("output.estimated_salary", output.Valuation.EstimatedSalary),
		)
	}

	return &output, tokenUsage, nil
}

// CompareWithJob implements Provider for résumé-versus-job comparison
func (g *GeminiProvider) CompareWithJob(ctx context.Context, input types.CompareJobInput) (*types.ComparisonResult, *TokenUsage, error) {
	p := promptsFor(g.prompts, config.OperationCompare)
	cvJSON, err := json.MarshalIndent(input.CVData, "", "  ")
	if err != nil {
		return nil, nil, errors.NewInternalError(errors.ErrCodeInvalidFormat, "Failed to encode CV data", err)
	}

	output, tokenUsage, err := executeAIOperation[types.ComparisonResult](
		g, ctx, "compare_job",
		fmt.Sprintf(p.User, cvJSON, input.JobDescription),
		p.System,
		g.withTemperature(comparisonSchema()),
		attribute.Int("input.job_length", len(input.JobDescription)),
	)
	if err != nil {
		return nil, nil, err
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attribute.Int("output.match_score", output.MatchScore))
	}

	return &output, tokenUsage, nil
}

// EditCV implements Provider for instruction-driven edits
func (g *GeminiProvider) EditCV(ctx context.Context, input types.EditCVInput) (*types.CVData, *TokenUsage, error) {
	p := promptsFor(g.prompts, config.OperationEdit)
	cvJSON, err := json.MarshalIndent(input.CVData, "", "  ")
	if err != nil {
		return nil, nil, errors.NewInternalError(errors.ErrCodeInvalidFormat, "Failed to encode CV data", err)
	}

	output, tokenUsage, err := executeAIOperation[types.CVData](
		g, ctx, "edit_cv",
		fmt.Sprintf(p.User, input.Instruction, cvJSON),
		p.System,
		g.withTemperature(&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   cvDataSchema(),
		}),
		attribute.Int("input.instruction_length", len(input.Instruction)),
	)
	if err != nil {
		return nil, nil, err
	}

	return &output, tokenUsage, nil
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (g *GeminiProvider) GetCircuitBreakerStats() map[string]any {
	return map[string]any{
		"ai_operations":    g.circuitBreaker.Stats(),
		"model_operations": g.modelBreaker.Stats(),
		"overall_healthy":  g.circuitBreaker.IsHealthy() && g.modelBreaker.IsHealthy(),
	}
}

// Close implements Provider. The genai client holds no connections to release.
func (g *GeminiProvider) Close() error {
	return nil
}

func (g *GeminiProvider) withTemperature(cfg *genai.GenerateContentConfig) *genai.GenerateContentConfig {
	if g.config.Temperature != nil && *g.config.Temperature > 0 {
		t := *g.config.Temperature
		cfg.Temperature = &t
	}
	return cfg
}

// extractTokenUsage extracts token usage information from Gemini API response
func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}
