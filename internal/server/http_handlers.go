package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"cvoptimizer/internal/ai"
	"cvoptimizer/internal/errors"
)

const defaultHealthCheckTimeout = 15 * time.Second

// getHealthCheckTimeout returns the configured health check timeout
func (s *Server) getHealthCheckTimeout() time.Duration {
	if s.AppConfig == nil || s.AppConfig.Observability.HealthCheck.Timeout <= 0 {
		return defaultHealthCheckTimeout
	}
	return s.AppConfig.Observability.HealthCheck.Timeout
}

func (s *Server) aiServices() map[string]*ai.Service {
	services := map[string]*ai.Service{}
	if s.ai == nil {
		return services
	}
	for op, svc := range map[string]*ai.Service{
		"analyze": s.ai.Analyze,
		"compare": s.ai.Compare,
		"edit":    s.ai.Edit,
	} {
		if svc != nil {
			services[op] = svc
		}
	}
	return services
}

// healthHandler reports AI model availability, breaker state and the
// wallet store. Any unavailable dependency degrades the status to 503.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.getHealthCheckTimeout())
	defer cancel()

	response := map[string]any{
		"status":  "healthy",
		"service": "cvoptimizer",
		"version": s.Version,
	}

	healthy := true

	models := make(map[string]any)
	breakers := make(map[string]any)
	for op, svc := range s.aiServices() {
		info := svc.GetModelInfo(ctx)
		models[op] = info
		breakers[op] = svc.Stats()
		if info == nil || !info.Available {
			healthy = false
		}
	}
	response["ai_models"] = models
	response["circuit_breakers"] = breakers

	if pinger, ok := s.wallet.(interface{ Ping(context.Context) error }); ok {
		if err := pinger.Ping(ctx); err != nil {
			healthy = false
			response["wallet_store"] = map[string]any{"available": false, "error": err.Error()}
		} else {
			response["wallet_store"] = map[string]any{"available": true}
		}
	}

	status := http.StatusOK
	if !healthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, response)
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, _ *http.Request) {
	response := map[string]any{
		"service": "cvoptimizer",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"api_keys_configured":    len(s.APIKeys),
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{"enabled": false}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	breakers := make(map[string]any)
	for op, svc := range s.aiServices() {
		breakers[op] = svc.Stats()
	}
	response["circuit_breakers"] = breakers

	if s.AppConfig != nil {
		response["costs"] = s.AppConfig.Wallet.Costs
	}

	s.writeJSON(w, http.StatusOK, response)
}

// parseJSONRequest decodes a JSON request body into v
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "Content-Type must be application/json", err)
	}

	defer func() { _ = r.Body.Close() }()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if tooLarge := asMaxBytesError(err); tooLarge != nil {
			return tooLarge
		}
		return errors.NewValidationError(errors.ErrCodeInvalidFormat, "Failed to parse JSON body", err)
	}
	return nil
}

// asMaxBytesError converts a body-limit failure into FILE_TOO_LARGE.
func asMaxBytesError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if stderrors.As(err, &maxBytesErr) {
		return errors.NewValidationError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("Request body too large (limit is %d bytes)", maxBytesErr.Limit), err)
	}
	return nil
}

// statusFor maps an error to the HTTP status it is reported with.
func statusFor(err error) int {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		if asMaxBytesError(err) != nil {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusInternalServerError
	}

	switch appErr.Code {
	case errors.ErrCodeUnsupportedType:
		return http.StatusUnsupportedMediaType
	case errors.ErrCodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case errors.ErrCodeExtractionFailed:
		return http.StatusUnprocessableEntity
	}

	switch appErr.Type {
	case errors.ErrorTypeValidation:
		return http.StatusBadRequest
	case errors.ErrorTypeQuota:
		return http.StatusPaymentRequired
	case errors.ErrorTypeAI, errors.ErrorTypeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err with its mapped status. Internal failures are
// logged and their cause is not exposed.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	resp := ErrorResponse{Error: http.StatusText(status)}
	if appErr, ok := errors.AsAppError(err); ok {
		resp.Code = appErr.Code
		resp.Message = appErr.Message
		resp.Details = appErr.Context
	} else if tooLarge := asMaxBytesError(err); tooLarge != nil {
		appErr, _ := errors.AsAppError(tooLarge)
		resp.Code = appErr.Code
		resp.Message = appErr.Message
	}

	if status >= http.StatusInternalServerError {
		s.Logger.LogError(err, "Request failed", "endpoint", r.URL.Path, "status", status)
	} else {
		s.Logger.Debug("Request rejected", "endpoint", r.URL.Path, "status", status, "error", err)
	}

	writeResponse(w, status, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	if err := writeResponse(w, status, v); err != nil {
		s.Logger.LogError(err, "Failed to encode response")
	}
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	_ = writeResponse(w, statusCode, ErrorResponse{Error: error, Message: message})
}

func writeResponse(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
