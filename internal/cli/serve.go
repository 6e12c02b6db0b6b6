package cli

import (
	"github.com/spf13/cobra"

	"cvoptimizer/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start an HTTP server exposing document extraction, résumé analysis,
comparison and editing, the talent network and the session wallet.

Available endpoints:
- POST /api/v1/documents/extract: Reconstruct an uploaded PDF or DOCX
- POST /api/v1/cv/analyze: Analyze an uploaded résumé
- POST /api/v1/cv/compare: Compare a résumé with a job description
- POST /api/v1/cv/edit: Edit a résumé with an instruction
- GET  /api/v1/talent/ads, POST /api/v1/talent/submissions
- GET  /api/v1/session, POST /api/v1/session/{login,logout,tokens}
- GET  /health, GET /stats`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Server.Port = port
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}

	if cfg.AI.WatchPrompts {
		if err := cfg.WatchPrompts(cmd.Context(), logger); err != nil {
			logger.LogError(err, "Prompt hot reload disabled")
		}
	}

	deps, closeDeps, err := server.NewDependencies(cmd.Context(), cfg, Version, logger)
	if err != nil {
		return err
	}
	defer closeDeps()

	srv := server.NewServer(cfg, server.ServerConfigFrom(cfg, Version), deps, logger)
	return srv.Start(cmd.Context())
}
