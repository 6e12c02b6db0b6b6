package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvoptimizer/internal/ai"
	"cvoptimizer/internal/config"
	"cvoptimizer/internal/document"
	"cvoptimizer/internal/errors"
	"cvoptimizer/internal/layout"
	"cvoptimizer/internal/talent"
	"cvoptimizer/internal/types"
	"cvoptimizer/internal/wallet"
)

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Maria Silva</w:t></w:r></w:p>
    <w:p><w:r><w:t>Desenvolvedora Go</w:t></w:r></w:p>
  </w:body>
</w:document>`

type fakeProvider struct {
	err       error
	available bool
	calls     int
}

func (f *fakeProvider) AnalyzeCV(_ context.Context, in types.AnalyzeCVInput) (*types.AnalysisResult, *ai.TokenUsage, error) {
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	return &types.AnalysisResult{
		Advice:     []types.Advice{{Title: "Quantifique resultados", Type: types.AdviceImprovement}},
		Valuation:  types.Valuation{EstimatedSalary: 8500},
		JobMatches: []types.JobMatch{{Title: "Desenvolvedora Go", SearchQuery: in.CVText[:5]}},
	}, &ai.TokenUsage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30}, nil
}

func (f *fakeProvider) CompareWithJob(context.Context, types.CompareJobInput) (*types.ComparisonResult, *ai.TokenUsage, error) {
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	return &types.ComparisonResult{MatchScore: 140, Analysis: "bom"}, nil, nil
}

func (f *fakeProvider) EditCV(_ context.Context, in types.EditCVInput) (*types.CVData, *ai.TokenUsage, error) {
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	out := in.CVData
	out.PersonalInfo.Summary = in.Instruction
	return &out, nil, nil
}

func (f *fakeProvider) GetModelInfo(context.Context) *ai.ModelInfo {
	return &ai.ModelInfo{Name: "fake", Available: f.available}
}

func (f *fakeProvider) Close() error { return nil }

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, talent.Submission) error {
	return stderrors.New("broker down")
}

func (failingPublisher) Close() error { return nil }

type testEnv struct {
	server   *Server
	handler  http.Handler
	provider *fakeProvider
	store    wallet.Store
}

func newTestEnv(t *testing.T, mutate func(*config.Config, *ServerConfig), publisher talent.Publisher) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.Wallet = config.WalletConfig{
		Backend:       "memory",
		InitialTokens: 10,
		Costs:         config.CostConfig{Analyze: 1, Compare: 2, Edit: 0, Talent: 3},
	}
	cfg.App.MaxFileSize = 1 << 20
	cfg.Talent.Ads = config.DefaultTalentAds()

	srvCfg := ServerConfig{Version: "test", MaxRequestSize: 2 << 20}
	if mutate != nil {
		mutate(cfg, &srvCfg)
	}

	store, err := wallet.NewStore(context.Background(), cfg.Wallet, nil)
	require.NoError(t, err)

	provider := &fakeProvider{available: true}
	services := &ai.Services{
		Analyze: ai.NewServiceWithProvider(provider, config.OperationAnalyze, nil),
		Compare: ai.NewServiceWithProvider(provider, config.OperationCompare, nil),
		Edit:    ai.NewServiceWithProvider(provider, config.OperationEdit, nil),
	}
	if publisher == nil {
		publisher = talent.NewLogPublisher(nil)
	}

	srv := NewServer(cfg, srvCfg, Dependencies{
		Extractor: document.NewExtractor(document.Config{MaxFileSize: cfg.App.MaxFileSize, Layout: layout.DefaultConfig()}, nil),
		AI:        services,
		Wallet:    store,
		Talent:    talent.NewService(cfg.Talent, cfg.CostFor("talent"), store, publisher, nil),
	}, errors.NewNopLogger())
	t.Cleanup(srv.cleanupRateLimiter)

	return &testEnv{server: srv, handler: srv.Handler(), provider: provider, store: store}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, path, session string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	return req
}

func uploadRequest(t *testing.T, path, session, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	return req
}

func buildDocx(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(docxBody))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func sampleCV() types.CVData {
	return types.CVData{PersonalInfo: types.PersonalInfo{FullName: "Maria Silva", Email: "maria@example.com"}}
}

func TestHealthAndStats(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", health["status"])
	assert.Contains(t, health["ai_models"], "analyze")

	env.provider.available = false
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode[map[string]any](t, rec)["status"])

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, rec)
	assert.Equal(t, map[string]any{"enabled": false}, stats["rate_limiting"])
}

func TestSessionIssuedWhenMissing(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	issued := rec.Header().Get(SessionHeader)
	require.NotEmpty(t, issued)

	resp := decode[SessionResponse](t, rec)
	assert.Equal(t, issued, resp.SessionID)
	assert.Equal(t, 10, resp.Tokens)
	assert.False(t, resp.LoggedIn)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	const session = "sess-1"

	rec := env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/session/login", session, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[SessionResponse](t, rec).LoggedIn)
	assert.Equal(t, session, rec.Header().Get(SessionHeader))

	rec = env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/session/tokens", session, TokensRequest{Amount: 5}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 15, decode[SessionResponse](t, rec).Tokens)

	rec = env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/session/tokens", session, TokensRequest{Amount: 0}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/session/logout", session, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[SessionResponse](t, rec).LoggedIn)
}

func TestExtractEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	t.Run("docx", func(t *testing.T) {
		rec := env.do(t, uploadRequest(t, "/api/v1/documents/extract", "", "cv.docx", document.MIMETypeDOCX, buildDocx(t)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		doc := decode[document.Document](t, rec)
		assert.Equal(t, document.FormatDOCX, doc.Format)
		assert.Contains(t, doc.HTML, "<h1>Maria Silva</h1>")
	})

	t.Run("unsupported type", func(t *testing.T) {
		rec := env.do(t, uploadRequest(t, "/api/v1/documents/extract", "", "cv.txt", "text/plain", []byte("hello")))
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assert.Equal(t, errors.ErrCodeUnsupportedType, decode[ErrorResponse](t, rec).Code)
	})

	t.Run("corrupt docx", func(t *testing.T) {
		rec := env.do(t, uploadRequest(t, "/api/v1/documents/extract", "", "cv.docx", document.MIMETypeDOCX, []byte("not a zip")))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		rec := env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/documents/extract", "", map[string]string{}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestExtractTooLarge(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config, _ *ServerConfig) { c.App.MaxFileSize = 64 }, nil)

	rec := env.do(t, uploadRequest(t, "/api/v1/documents/extract", "", "cv.docx", document.MIMETypeDOCX, buildDocx(t)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, errors.ErrCodeFileTooLarge, decode[ErrorResponse](t, rec).Code)
}

func TestUploadLeavesNoTempFiles(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)
	env := newTestEnv(t, func(c *config.Config, _ *ServerConfig) { c.App.MaxFileSize = 64 }, nil)

	rec := env.do(t, uploadRequest(t, "/api/v1/documents/extract", "", "cv.docx", document.MIMETypeDOCX, buildDocx(t)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAnalyzeChargesOneToken(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, uploadRequest(t, "/api/v1/cv/analyze", "s", "cv.docx", document.MIMETypeDOCX, buildDocx(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[AnalyzeResponse](t, rec)
	assert.Equal(t, 9, resp.Balance)
	require.NotNil(t, resp.Analysis)
	require.Len(t, resp.Analysis.JobMatches, 1)
	assert.Equal(t, "Indeed", resp.Analysis.JobMatches[0].Source)
	assert.Contains(t, resp.Document.Text, "Desenvolvedora Go")
}

func TestAnalyzeRefundsOnAIFailure(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.provider.err = errors.NewAIError(errors.ErrCodeAIServiceFailed, "model failed", nil)

	rec := env.do(t, uploadRequest(t, "/api/v1/cv/analyze", "s", "cv.docx", document.MIMETypeDOCX, buildDocx(t)))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	state, err := env.store.Get(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, 10, state.Tokens)
}

func TestAnalyzeRejectedForInvalidFileIsFree(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, uploadRequest(t, "/api/v1/cv/analyze", "s", "cv.png", "image/png", []byte{0x89, 'P', 'N', 'G'}))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Zero(t, env.provider.calls)

	state, err := env.store.Get(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, 10, state.Tokens)
}

func TestCompare(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	req := CompareRequest{CVData: sampleCV(), JobDescription: "Vaga Go"}

	rec := env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/cv/compare", "s", req))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[CompareResponse](t, rec)
	assert.Equal(t, 8, resp.Balance)
	assert.Equal(t, 100, resp.Comparison.MatchScore)

	rec = env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/cv/compare", "s", CompareRequest{CVData: sampleCV()}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompareInsufficientTokens(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config, _ *ServerConfig) { c.Wallet.InitialTokens = 1 }, nil)

	rec := env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/cv/compare", "s",
		CompareRequest{CVData: sampleCV(), JobDescription: "Vaga"}))
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, errors.ErrCodeInsufficientTokens, resp.Code)
	assert.EqualValues(t, 1, resp.Details["balance"])
	assert.EqualValues(t, 2, resp.Details["cost"])
	assert.Zero(t, env.provider.calls)
}

func TestEditIsFree(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/cv/edit", "s",
		EditRequest{CVData: sampleCV(), Instruction: "Resumo mais curto"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Resumo mais curto", decode[EditResponse](t, rec).CVData.PersonalInfo.Summary)

	state, err := env.store.Get(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, 10, state.Tokens)

	rec = env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/cv/edit", "s", EditRequest{CVData: sampleCV()}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTalentEndpoints(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/talent/ads", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	ads := decode[map[string][]types.TalentAd](t, rec)["ads"]
	require.Len(t, ads, 2)
	assert.True(t, ads[0].IsPromoted)

	rec = env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/talent/submissions", "s", SubmissionRequest{CVData: sampleCV()}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[SubmissionResponse](t, rec)
	assert.Equal(t, 7, resp.Balance)
	assert.Equal(t, "s", resp.Submission.SessionID)
}

func TestTalentSubmissionRefundedWhenPublishFails(t *testing.T) {
	env := newTestEnv(t, nil, failingPublisher{})

	rec := env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/talent/submissions", "s", SubmissionRequest{CVData: sampleCV()}))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, errors.ErrCodePublishFailed, decode[ErrorResponse](t, rec).Code)

	state, err := env.store.Get(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, 10, state.Tokens)
}

func TestParseJSONRequestErrors(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cv/edit", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "text/plain")
	assert.Equal(t, http.StatusBadRequest, env.do(t, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/cv/edit", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec := env.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.ErrCodeInvalidFormat, decode[ErrorResponse](t, rec).Code)
}

func TestRequestBodyLimit(t *testing.T) {
	env := newTestEnv(t, func(_ *config.Config, s *ServerConfig) { s.MaxRequestSize = 32 }, nil)

	rec := env.do(t, jsonRequest(t, http.MethodPost, "/api/v1/cv/edit", "s",
		EditRequest{CVData: sampleCV(), Instruction: strings.Repeat("x", 100)}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, func(_ *config.Config, s *ServerConfig) {
		s.APIKeys = []string{"secret-key-123"}
	}, nil)

	tests := []struct {
		name   string
		header func(*http.Request)
		want   int
	}{
		{"missing", func(*http.Request) {}, http.StatusUnauthorized},
		{"invalid", func(r *http.Request) { r.Header.Set("X-API-Key", "nope") }, http.StatusUnauthorized},
		{"header", func(r *http.Request) { r.Header.Set("X-API-Key", "secret-key-123") }, http.StatusOK},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer secret-key-123") }, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/talent/ads", nil)
			tt.header(req)
			assert.Equal(t, tt.want, env.do(t, req).Code)
		})
	}

	// Health stays public.
	assert.Equal(t, http.StatusOK, env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(_ *config.Config, s *ServerConfig) {
		s.RateLimit = &config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstCapacity: 2, ByIP: true}
	}, nil)

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/talent/ads", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		codes = append(codes, env.do(t, req).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	other := httptest.NewRequest(http.MethodGet, "/api/v1/talent/ads", nil)
	other.RemoteAddr = "198.51.100.1:5555"
	assert.Equal(t, http.StatusOK, env.do(t, other).Code)

	stats := env.server.RateLimiter.GetStats()
	assert.Equal(t, 2, stats["active_limiters"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.NewValidationError(errors.ErrCodeInvalidRequest, "x", nil), http.StatusBadRequest},
		{errors.NewValidationError(errors.ErrCodeUnsupportedType, "x", nil), http.StatusUnsupportedMediaType},
		{errors.NewValidationError(errors.ErrCodeFileTooLarge, "x", nil), http.StatusRequestEntityTooLarge},
		{errors.NewIOError(errors.ErrCodeExtractionFailed, "x", nil), http.StatusUnprocessableEntity},
		{errors.NewQuotaError(errors.ErrCodeInsufficientTokens, "x", nil), http.StatusPaymentRequired},
		{errors.NewAIError(errors.ErrCodeAIServiceFailed, "x", nil), http.StatusBadGateway},
		{errors.NewNetworkError(errors.ErrCodeStoreFailed, "x", nil), http.StatusBadGateway},
		{errors.NewConfigError(errors.ErrCodeInvalidConfig, "x", nil), http.StatusInternalServerError},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{stderrors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", getClientIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "garbage, 10.0.0.3, 10.0.0.4")
	assert.Equal(t, "10.0.0.3", getClientIP(req))

	assert.Equal(t, "****", maskAPIKey("short"))
	assert.Equal(t, "abcdefgh****", maskAPIKey("abcdefghijkl"))
}

func TestServerInfo(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	var buf bytes.Buffer
	env.server.writeServerInfo(&buf, "127.0.0.1:8080")
	out := buf.String()
	assert.Contains(t, out, "http://127.0.0.1:8080")
	assert.Contains(t, out, "/api/v1/cv/analyze")
	assert.Contains(t, out, "API authentication: DISABLED")
}
