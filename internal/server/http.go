package server

import (
	"time"

	"cvoptimizer/internal/ai"
	"cvoptimizer/internal/config"
	"cvoptimizer/internal/document"
	"cvoptimizer/internal/errors"
	"cvoptimizer/internal/observability"
	"cvoptimizer/internal/talent"
	"cvoptimizer/internal/types"
	"cvoptimizer/internal/wallet"
)

// SessionHeader identifies the wallet session of a request.
const SessionHeader = "X-Session-ID"

// CompareRequest is the body of POST /api/v1/cv/compare
type CompareRequest struct {
	CVData         types.CVData `json:"cvData"`
	JobDescription string       `json:"jobDescription"`
}

// EditRequest is the body of POST /api/v1/cv/edit
type EditRequest struct {
	CVData      types.CVData `json:"cvData"`
	Instruction string       `json:"instruction"`
}

// SubmissionRequest is the body of POST /api/v1/talent/submissions
type SubmissionRequest struct {
	CVData types.CVData `json:"cvData"`
}

// TokensRequest is the body of POST /api/v1/session/tokens
type TokensRequest struct {
	Amount int `json:"amount"`
}

// AnalyzeResponse bundles the extracted document with its analysis.
type AnalyzeResponse struct {
	Document *document.Document   `json:"document"`
	Analysis *types.AnalysisResult `json:"analysis"`
	Balance  int                  `json:"balance"`
}

// CompareResponse is returned by the compare endpoint.
type CompareResponse struct {
	Comparison *types.ComparisonResult `json:"comparison"`
	Balance    int                     `json:"balance"`
}

// EditResponse is returned by the edit endpoint.
type EditResponse struct {
	CVData *types.CVData `json:"cvData"`
}

// SubmissionResponse is returned after a talent submission.
type SubmissionResponse struct {
	Submission *talent.Submission `json:"submission"`
	Balance    int                `json:"balance"`
}

// SessionResponse reports the wallet state of a session.
type SessionResponse struct {
	SessionID string `json:"sessionId"`
	wallet.State
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message,omitempty"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Dependencies are the domain services the HTTP layer delegates to.
type Dependencies struct {
	Extractor     *document.Extractor
	AI            *ai.Services
	Wallet        wallet.Store
	Talent        *talent.Service
	Observability *observability.ObservabilityManager
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	// API Authentication
	APIKeys map[string]bool

	AllowedOrigins []string

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limit
	MaxRequestSize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	Logger *errors.Logger

	extractor *document.Extractor
	ai        *ai.Services
	wallet    wallet.Store
	talent    *talent.Service
	om        *observability.ObservabilityManager
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	APIKeys        []string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	RateLimit      *config.RateLimitConfig
}

// ServerConfigFrom derives the server settings from the application config.
func ServerConfigFrom(cfg *config.Config, version string) ServerConfig {
	rl := cfg.Server.RateLimit
	return ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        version,
		APIKeys:        cfg.Server.APIKeys,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: cfg.Server.MaxBodySize,
		RateLimit:      &rl,
	}
}

// NewServer creates a new Server instance from a ServerConfig struct
func NewServer(appCfg *config.Config, cfg ServerConfig, deps Dependencies, logger *errors.Logger) *Server {
	if logger == nil {
		logger = errors.NewNopLogger()
	}

	// Convert API keys slice to map for O(1) lookup
	apiKeyMap := make(map[string]bool)
	for _, key := range cfg.APIKeys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstCapacity, logger)
	}

	return &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		APIKeys:        apiKeyMap,
		AllowedOrigins: cfg.AllowedOrigins,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		Logger:         logger,
		extractor:      deps.Extractor,
		ai:             deps.AI,
		wallet:         deps.Wallet,
		talent:         deps.Talent,
		om:             deps.Observability,
	}
}

func (s *Server) cost(operation string) int {
	if s.AppConfig == nil {
		return 0
	}
	return s.AppConfig.CostFor(operation)
}
