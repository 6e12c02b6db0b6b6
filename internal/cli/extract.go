package cli

import (
	"github.com/spf13/cobra"

	"cvoptimizer/internal/common"
	"cvoptimizer/internal/config"
	"cvoptimizer/internal/document"
	"cvoptimizer/internal/errors"
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract a PDF or DOCX résumé and rebuild its layout",
	Long: `Extract the content of a PDF or DOCX résumé.

PDF pages are rebuilt line by line from the positioned text fragments, so the
html output keeps the original left margins and vertical spacing. DOCX files
keep headings, bold and italic runs.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: outputPreRun(&extractConfig, reportFormats),
	RunE:    runExtract,
}

var extractConfig common.CommandConfig

func init() {
	addOutputFlags(extractCmd, &extractConfig, reportFormats)
}

// loadDocument reads and reconstructs a résumé file.
func loadDocument(cmd *cobra.Command, fp *common.FileProcessor, cfg *config.Config, logger *errors.Logger, filename string) (*document.Document, error) {
	upload, err := fp.ReadUpload(filename, cfg.App.MaxFileSize)
	if err != nil {
		return nil, err
	}
	extractor := document.NewExtractor(document.Config{
		MaxFileSize: cfg.App.MaxFileSize,
		Layout:      cfg.Layout,
	}, logger)
	return extractor.Extract(cmd.Context(), upload)
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	doc, err := loadDocument(cmd, common.NewFileProcessor(logger), cfg, logger, args[0])
	if err != nil {
		return err
	}

	return outputHandler(cmd, logger).HandleOutput(doc, extractConfig)
}
