package formatters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"

	"cvoptimizer/internal/document"
	"cvoptimizer/internal/layout"
	"cvoptimizer/internal/types"
)

// Data types the registry knows how to render.
const (
	TypeAnalysis   = "analysis"
	TypeComparison = "comparison"
	TypeCV         = "cv"
	TypeDocument   = "document"
	TypeAny        = "any"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", TypeAny, &JSONFormatter{})
	registry.RegisterFormatter("yaml", TypeAny, &YAMLFormatter{})

	registry.RegisterFormatter("text", TypeAnalysis, &AnalysisTextFormatter{})
	registry.RegisterFormatter("markdown", TypeAnalysis, &AnalysisMarkdownFormatter{})
	registry.RegisterFormatter("html", TypeAnalysis, &HTMLFormatter{markdown: &AnalysisMarkdownFormatter{}})

	registry.RegisterFormatter("text", TypeComparison, &ComparisonTextFormatter{})
	registry.RegisterFormatter("markdown", TypeComparison, &ComparisonMarkdownFormatter{})
	registry.RegisterFormatter("html", TypeComparison, &HTMLFormatter{markdown: &ComparisonMarkdownFormatter{}})

	registry.RegisterFormatter("text", TypeCV, &CVTextFormatter{})
	registry.RegisterFormatter("markdown", TypeCV, &CVMarkdownFormatter{})
	registry.RegisterFormatter("html", TypeCV, &HTMLFormatter{markdown: &CVMarkdownFormatter{}})

	registry.RegisterFormatter("text", TypeDocument, &DocumentTextFormatter{})
	registry.RegisterFormatter("markdown", TypeDocument, &DocumentTextFormatter{})
	registry.RegisterFormatter("html", TypeDocument, &DocumentHTMLFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	data, dataType := normalize(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters[TypeAny]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

// normalize dereferences known pointer types and names the data type.
func normalize(data any) (any, string) {
	switch v := data.(type) {
	case *types.AnalysisResult:
		if v != nil {
			return *v, TypeAnalysis
		}
	case types.AnalysisResult:
		return v, TypeAnalysis
	case *types.ComparisonResult:
		if v != nil {
			return *v, TypeComparison
		}
	case types.ComparisonResult:
		return v, TypeComparison
	case *types.CVData:
		if v != nil {
			return *v, TypeCV
		}
	case types.CVData:
		return v, TypeCV
	case *document.Document:
		if v != nil {
			return *v, TypeDocument
		}
	case document.Document:
		return v, TypeDocument
	}
	return data, TypeAny
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return TypeAny
}

// YAMLFormatter renders any data as block-style YAML using the JSON field
// names and order.
type YAMLFormatter struct{}

func (yf *YAMLFormatter) Format(data any) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	// JSON is valid YAML; decoding into a node keeps key order.
	var node yaml.Node
	if err := yaml.Unmarshal(jsonData, &node); err != nil {
		return "", err
	}
	clearStyle(&node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (yf *YAMLFormatter) SupportedType() string {
	return TypeAny
}

func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		clearStyle(c)
	}
}

// HTMLFormatter renders the markdown of another formatter through goldmark.
// Raw HTML in the data is not passed through.
type HTMLFormatter struct {
	markdown Formatter
}

func (hf *HTMLFormatter) Format(data any) (string, error) {
	md, err := hf.markdown.Format(data)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := goldmark.New().Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

func (hf *HTMLFormatter) SupportedType() string {
	return hf.markdown.SupportedType()
}

// DocumentHTMLFormatter returns the page blocks of an extracted document.
type DocumentHTMLFormatter struct{}

func (df *DocumentHTMLFormatter) Format(data any) (string, error) {
	doc, ok := data.(document.Document)
	if !ok {
		return "", fmt.Errorf("expected Document, got %T", data)
	}
	if doc.HTML != "" {
		return doc.HTML, nil
	}
	return layout.RenderHTML(doc.Pages), nil
}

func (df *DocumentHTMLFormatter) SupportedType() string {
	return TypeDocument
}

// DocumentTextFormatter returns the reconstructed plain text.
type DocumentTextFormatter struct{}

func (df *DocumentTextFormatter) Format(data any) (string, error) {
	doc, ok := data.(document.Document)
	if !ok {
		return "", fmt.Errorf("expected Document, got %T", data)
	}
	if doc.Text != "" {
		return doc.Text, nil
	}
	return layout.PlainText(doc.Pages), nil
}

func (df *DocumentTextFormatter) SupportedType() string {
	return TypeDocument
}

// GlobalRegistry is the shared registry used by the CLI and the HTTP server.
var GlobalRegistry = NewFormatterRegistry()
