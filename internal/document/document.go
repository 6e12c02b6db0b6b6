// Package document validates résumé uploads and extracts their text,
// reconstructing page layout for PDFs.
package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"strings"

	"cvoptimizer/internal/errors"
	"cvoptimizer/internal/layout"
	"cvoptimizer/internal/utils"
)

// Format identifies a supported upload format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

const (
	MIMETypePDF  = "application/pdf"
	MIMETypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	// DefaultMaxFileSize is the upload ceiling (5 MB).
	DefaultMaxFileSize int64 = 5 * 1024 * 1024
)

const (
	msgUnsupported = "Formato de arquivo não suportado. Use PDF ou DOCX."
	msgCorrupt     = "Não foi possível processar o arquivo. Verifique se ele não está corrompido."
)

// Upload is a file handed in by a user.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Size returns the upload size in bytes.
func (u Upload) Size() int64 {
	return int64(len(u.Data))
}

// Document is the extracted content of an upload.
type Document struct {
	Filename  string             `json:"filename"`
	Format    Format             `json:"format"`
	PageCount int                `json:"pageCount"`
	Pages     []layout.PageBlock `json:"pages,omitempty"`
	HTML      string             `json:"html"`
	Text      string             `json:"text"`
}

// Config controls validation and layout reconstruction.
type Config struct {
	MaxFileSize int64
	Layout      layout.Config
}

// Extractor turns uploads into Documents.
type Extractor struct {
	maxFileSize   int64
	reconstructor *layout.Reconstructor
	logger        *errors.Logger
}

// NewExtractor creates an Extractor. A non-positive MaxFileSize falls back to DefaultMaxFileSize.
func NewExtractor(cfg Config, logger *errors.Logger) *Extractor {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &Extractor{
		maxFileSize:   cfg.MaxFileSize,
		reconstructor: layout.New(cfg.Layout),
		logger:        logger,
	}
}

// MaxFileSize returns the configured upload ceiling.
func (e *Extractor) MaxFileSize() int64 {
	return e.maxFileSize
}

// DetectFormat maps a content type and filename to a Format. The declared
// MIME type wins; the extension is consulted only when the type is absent
// or generic.
func DetectFormat(contentType, filename string) (Format, bool) {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}

	switch mediaType {
	case MIMETypePDF:
		return FormatPDF, true
	case MIMETypeDOCX:
		return FormatDOCX, true
	}

	ext := utils.GetFileExtension(filename)
	if ext == ".docx" {
		return FormatDOCX, true
	}
	if ext == ".pdf" && (mediaType == "" || mediaType == "application/octet-stream") {
		return FormatPDF, true
	}
	return "", false
}

// Validate checks type and size before any parsing happens.
func (e *Extractor) Validate(u Upload) (Format, error) {
	format, ok := DetectFormat(u.ContentType, u.Filename)
	if !ok {
		return "", errors.NewValidationError(errors.ErrCodeUnsupportedType, msgUnsupported, nil).
			WithContext("content_type", u.ContentType).
			WithContext("filename", u.Filename)
	}
	if u.Size() > e.maxFileSize {
		return "", errors.NewValidationError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("O arquivo deve ter no máximo %s.", utils.FormatFileSize(e.maxFileSize)), nil).
			WithContext("size", u.Size()).
			WithContext("filename", u.Filename)
	}
	if u.Size() == 0 {
		return "", errors.NewValidationError(errors.ErrCodeInvalidRequest, "O arquivo está vazio.", nil).
			WithContext("filename", u.Filename)
	}
	return format, nil
}

// Extract validates the upload and extracts its content. Any failure
// aborts the whole document.
func (e *Extractor) Extract(ctx context.Context, u Upload) (*Document, error) {
	format, err := e.Validate(u)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Extracting document",
		"filename", u.Filename,
		"format", format,
		"size", utils.FormatFileSize(u.Size()))

	var doc *Document
	switch format {
	case FormatPDF:
		doc, err = e.extractPDF(ctx, u.Data)
	case FormatDOCX:
		doc, err = extractDOCX(ctx, u.Data)
	}
	if err != nil {
		if _, ok := errors.AsAppError(err); ok {
			return nil, err
		}
		return nil, errors.NewIOError(errors.ErrCodeExtractionFailed, msgCorrupt, err).
			WithContext("filename", u.Filename).
			WithContext("format", string(format))
	}

	doc.Filename = u.Filename
	doc.Format = format

	e.logger.Info("Document extracted",
		"filename", u.Filename,
		"format", format,
		"pages", doc.PageCount,
		"characters", len(doc.Text))

	return doc, nil
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte) (*Document, error) {
	pages, err := readPDFPages(ctx, data)
	if err != nil {
		return nil, err
	}
	blocks := e.reconstructor.ReconstructDocument(pages)
	return &Document{
		PageCount: len(blocks),
		Pages:     blocks,
		HTML:      layout.RenderHTML(blocks),
		Text:      layout.PlainText(blocks),
	}, nil
}

// ReadUpload reads at most limit+1 bytes from r so oversize bodies are
// detected without buffering them whole.
func ReadUpload(r io.Reader, filename, contentType string, limit int64) (Upload, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(r, limit+1)); err != nil {
		return Upload{}, errors.NewIOError(errors.ErrCodeFileNotReadable, "Falha ao ler o arquivo enviado.", err).
			WithContext("filename", filename)
	}
	return Upload{Filename: filename, ContentType: contentType, Data: buf.Bytes()}, nil
}
