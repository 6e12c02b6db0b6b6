package server

import (
	"fmt"
	"io"
	"os"
)

// displayServerInfo prints the listening address and the security posture
// to stderr so stdout stays clean for scripted use.
func (s *Server) displayServerInfo(addr string) {
	s.writeServerInfo(os.Stderr, addr)
}

func (s *Server) writeServerInfo(w io.Writer, addr string) {
	_, _ = fmt.Fprintf(w, "cvoptimizer %s listening on http://%s\n", s.Version, addr)
	s.displayEndpoints(w)
	s.displayAuthInfo(w)
	s.displayRequestLimitInfo(w)
	s.displayRateLimitInfo(w)
}

func (s *Server) displayEndpoints(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Available endpoints:")
	for _, line := range []string{
		"  GET  /health                      - Health check",
		"  GET  /stats                       - Server statistics",
		"  POST /api/v1/documents/extract    - Reconstruct an uploaded PDF/DOCX",
		"  POST /api/v1/cv/analyze           - Analyze a résumé",
		"  POST /api/v1/cv/compare           - Compare a résumé with a job",
		"  POST /api/v1/cv/edit              - Edit a résumé with the AI",
		"  GET  /api/v1/talent/ads           - Promoted talent ads",
		"  POST /api/v1/talent/submissions   - Submit a résumé",
		"  GET  /api/v1/session              - Session balance",
		"  POST /api/v1/session/{login,logout,tokens}",
	} {
		_, _ = fmt.Fprintln(w, line)
	}
	if s.om.MetricsHandler() != nil {
		_, _ = fmt.Fprintf(w, "  GET  %s\n", s.metricsEndpoint())
	}
}

func (s *Server) displayAuthInfo(w io.Writer) {
	if len(s.APIKeys) > 0 {
		_, _ = fmt.Fprintf(w, "API authentication: ENABLED (%d keys configured)\n", len(s.APIKeys))
		return
	}
	_, _ = fmt.Fprintln(w, "API authentication: DISABLED (no API keys configured)")
	_, _ = fmt.Fprintln(w, "WARNING: API endpoints are publicly accessible!")
}

func (s *Server) displayRequestLimitInfo(w io.Writer) {
	if s.MaxRequestSize > 0 {
		_, _ = fmt.Fprintf(w, "Request size limit: %d bytes (%.1f MB)\n", s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
		return
	}
	_, _ = fmt.Fprintln(w, "Request size limit: DISABLED")
}

func (s *Server) displayRateLimitInfo(w io.Writer) {
	if s.RateLimit == nil || !s.RateLimit.Enabled {
		_, _ = fmt.Fprintln(w, "Rate limiting: DISABLED")
		return
	}
	_, _ = fmt.Fprintf(w, "Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
		s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
	if s.RateLimit.ByAPIKey {
		_, _ = fmt.Fprintln(w, "  - Per API key rate limiting enabled")
	}
	if s.RateLimit.ByIP {
		_, _ = fmt.Fprintln(w, "  - Per IP address rate limiting enabled")
	}
}
