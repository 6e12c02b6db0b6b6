package server

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"cvoptimizer/internal/ai"
	"cvoptimizer/internal/config"
	"cvoptimizer/internal/document"
	"cvoptimizer/internal/errors"
	"cvoptimizer/internal/observability"
	"cvoptimizer/internal/types"
	"cvoptimizer/internal/wallet"
)

const tracerName = "cvoptimizer.api"

func (s *Server) startSpan(r *http.Request, name string) (context.Context, oteltrace.Span) {
	ctx, span := s.om.Tracer(tracerName).Start(r.Context(), name)
	span.SetAttributes(attribute.String("session.id", sessionID(r)))
	return ctx, span
}

// fail records err on the span and writes the mapped error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, span oteltrace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if appErr, ok := errors.AsAppError(err); ok {
		span.SetAttributes(attribute.String("error.type", string(appErr.Type)))
	}
	s.writeError(w, r, err)
}

func unavailable(operation string) error {
	return errors.NewConfigError(errors.ErrCodeInvalidConfig, "Service not configured: "+operation, nil)
}

// readUpload pulls the "file" part out of a multipart request.
func (s *Server) readUpload(r *http.Request) (document.Upload, error) {
	limit := s.extractor.MaxFileSize()
	if err := r.ParseMultipartForm(limit); err != nil {
		if tooLarge := asMaxBytesError(err); tooLarge != nil {
			return document.Upload{}, tooLarge
		}
		return document.Upload{}, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Expected a multipart form with a file field", err)
	}
	// Parts spilled to disk are only cleaned up by net/http for the original
	// request, not the copies made by middleware.
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		return document.Upload{}, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Missing file field", err)
	}
	defer func() { _ = file.Close() }()

	return document.ReadUpload(file, header.Filename, header.Header.Get("Content-Type"), limit)
}

// extract validates and reconstructs an uploaded résumé.
func (s *Server) extract(ctx context.Context, r *http.Request) (*document.Document, error) {
	if s.extractor == nil {
		return nil, unavailable("extract")
	}
	upload, err := s.readUpload(r)
	if err != nil {
		return nil, err
	}
	doc, err := s.extractor.Extract(ctx, upload)
	s.om.GetMetrics().RecordBusinessMetric(ctx, observability.MetricDocumentExtracted, err == nil,
		attribute.String("content_type", upload.ContentType))
	return doc, err
}

// charged runs fn after debiting cost tokens from the session and gives
// the tokens back when fn fails.
func (s *Server) charged(ctx context.Context, session, operation string, fn func(context.Context) error) (wallet.State, error) {
	cost := s.cost(operation)
	state, err := wallet.Charge(ctx, s.wallet, session, cost)
	if err != nil {
		return state, err
	}

	if err := fn(ctx); err != nil {
		return wallet.Refund(ctx, s.wallet, session, cost, s.Logger), err
	}

	s.om.GetMetrics().RecordTokenSpend(ctx, operation, cost)
	return state, nil
}

// trackAI instruments one model call.
func (s *Server) trackAI(ctx context.Context, operation string, call func(context.Context) (*ai.TokenUsage, error)) error {
	return s.om.GetMetrics().TrackAIOperationWithTokens(ctx, operation, func(ctx context.Context) *observability.AIOperationResult {
		usage, err := call(ctx)
		return &observability.AIOperationResult{Error: err, TokenUsage: usage}
	})
}

func (s *Server) extractHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "api.extract")
	defer span.End()

	doc, err := s.extract(ctx, r)
	if err != nil {
		s.fail(w, r, span, err)
		return
	}

	span.SetAttributes(
		attribute.String("document.format", string(doc.Format)),
		attribute.Int("document.pages", doc.PageCount))
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "api.analyze")
	defer span.End()

	if s.ai == nil || s.ai.Analyze == nil || s.wallet == nil {
		s.fail(w, r, span, unavailable(config.OperationAnalyze))
		return
	}

	doc, err := s.extract(ctx, r)
	if err != nil {
		s.fail(w, r, span, err)
		return
	}
	if strings.TrimSpace(doc.Text) == "" {
		s.fail(w, r, span, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Nenhum texto foi encontrado no documento.", nil))
		return
	}

	var analysis *types.AnalysisResult
	state, err := s.charged(ctx, sessionID(r), config.OperationAnalyze, func(ctx context.Context) error {
		return s.trackAI(ctx, config.OperationAnalyze, func(ctx context.Context) (*ai.TokenUsage, error) {
			result, usage, err := s.ai.Analyze.AnalyzeCV(ctx, doc.Text)
			analysis = result
			return usage, err
		})
	})
	s.om.GetMetrics().RecordBusinessMetric(ctx, observability.MetricCVAnalyzed, err == nil,
		attribute.String("document.format", string(doc.Format)))
	if err != nil {
		s.fail(w, r, span, err)
		return
	}

	span.SetAttributes(
		attribute.Int("analysis.advice", len(analysis.Advice)),
		attribute.Int("analysis.job_matches", len(analysis.JobMatches)))
	s.writeJSON(w, http.StatusOK, AnalyzeResponse{Document: doc, Analysis: analysis, Balance: state.Tokens})
}

func (s *Server) compareHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "api.compare")
	defer span.End()

	if s.ai == nil || s.ai.Compare == nil || s.wallet == nil {
		s.fail(w, r, span, unavailable(config.OperationCompare))
		return
	}

	var req CompareRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.fail(w, r, span, err)
		return
	}
	if strings.TrimSpace(req.JobDescription) == "" || req.CVData.IsEmpty() {
		s.fail(w, r, span, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"cvData and jobDescription are required", nil))
		return
	}

	span.SetAttributes(attribute.Int("request.job_length", len(req.JobDescription)))

	var comparison *types.ComparisonResult
	state, err := s.charged(ctx, sessionID(r), config.OperationCompare, func(ctx context.Context) error {
		return s.trackAI(ctx, config.OperationCompare, func(ctx context.Context) (*ai.TokenUsage, error) {
			result, usage, err := s.ai.Compare.CompareWithJob(ctx, req.CVData, req.JobDescription)
			comparison = result
			return usage, err
		})
	})
	s.om.GetMetrics().RecordBusinessMetric(ctx, observability.MetricJobCompared, err == nil)
	if err != nil {
		s.fail(w, r, span, err)
		return
	}

	span.SetAttributes(attribute.Int("comparison.match_score", comparison.MatchScore))
	s.writeJSON(w, http.StatusOK, CompareResponse{Comparison: comparison, Balance: state.Tokens})
}

func (s *Server) editHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "api.edit")
	defer span.End()

	if s.ai == nil || s.ai.Edit == nil || s.wallet == nil {
		s.fail(w, r, span, unavailable(config.OperationEdit))
		return
	}

	var req EditRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.fail(w, r, span, err)
		return
	}
	if strings.TrimSpace(req.Instruction) == "" {
		s.fail(w, r, span, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"instruction is required", nil))
		return
	}

	var edited *types.CVData
	_, err := s.charged(ctx, sessionID(r), config.OperationEdit, func(ctx context.Context) error {
		return s.trackAI(ctx, config.OperationEdit, func(ctx context.Context) (*ai.TokenUsage, error) {
			result, usage, err := s.ai.Edit.EditCV(ctx, req.CVData, req.Instruction)
			edited = result
			return usage, err
		})
	})
	s.om.GetMetrics().RecordBusinessMetric(ctx, observability.MetricCVEdited, err == nil)
	if err != nil {
		s.fail(w, r, span, err)
		return
	}

	s.writeJSON(w, http.StatusOK, EditResponse{CVData: edited})
}

func (s *Server) adsHandler(w http.ResponseWriter, r *http.Request) {
	if s.talent == nil {
		s.writeError(w, r, unavailable("talent"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ads": s.talent.Catalog().Ads()})
}

func (s *Server) submissionHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "api.talent_submit")
	defer span.End()

	if s.talent == nil {
		s.fail(w, r, span, unavailable("talent"))
		return
	}

	var req SubmissionRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.fail(w, r, span, err)
		return
	}

	submission, state, err := s.talent.Submit(ctx, sessionID(r), req.CVData)
	s.om.GetMetrics().RecordBusinessMetric(ctx, observability.MetricTalentSubmitted, err == nil)
	if err != nil {
		s.fail(w, r, span, err)
		return
	}

	s.om.GetMetrics().RecordTokenSpend(ctx, "talent", s.talent.Cost())
	span.SetAttributes(attribute.String("submission.id", submission.ID))
	s.writeJSON(w, http.StatusCreated, SubmissionResponse{Submission: submission, Balance: state.Tokens})
}

// sessionAction serves the wallet endpoints that only differ by store call.
func (s *Server) sessionAction(action func(ctx context.Context, id string) (wallet.State, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.wallet == nil {
			s.writeError(w, r, unavailable("wallet"))
			return
		}
		id := sessionID(r)
		state, err := action(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, SessionResponse{SessionID: id, State: state})
	}
}

func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(func(ctx context.Context, id string) (wallet.State, error) {
		return s.wallet.Get(ctx, id)
	})(w, r)
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(func(ctx context.Context, id string) (wallet.State, error) {
		return s.wallet.Login(ctx, id)
	})(w, r)
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(func(ctx context.Context, id string) (wallet.State, error) {
		return s.wallet.Logout(ctx, id)
	})(w, r)
}

func (s *Server) tokensHandler(w http.ResponseWriter, r *http.Request) {
	var req TokensRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.sessionAction(func(ctx context.Context, id string) (wallet.State, error) {
		return s.wallet.Add(ctx, id, req.Amount)
	})(w, r)
}
