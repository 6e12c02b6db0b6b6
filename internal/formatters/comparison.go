package formatters

import (
	"fmt"
	"strings"

	"cvoptimizer/internal/types"
)

// ComparisonTextFormatter handles text formatting for job comparisons
type ComparisonTextFormatter struct{}

func (cf *ComparisonTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.ComparisonResult)
	if !ok {
		return "", fmt.Errorf("expected ComparisonResult, got %T", data)
	}

	var output strings.Builder

	output.WriteString("=== COMPATIBILIDADE COM A VAGA ===\n")
	fmt.Fprintf(&output, "Score: %d/100\n\n", result.MatchScore)
	output.WriteString(result.Analysis)
	output.WriteString("\n\n")

	if len(result.MissingKeywords) > 0 {
		output.WriteString("Palavras-chave ausentes:\n")
		output.WriteString(strings.Join(result.MissingKeywords, ", "))
		output.WriteString("\n\n")
	}

	if len(result.Improvements) > 0 {
		output.WriteString("Melhorias:\n")
		for i, imp := range result.Improvements {
			fmt.Fprintf(&output, "%d. %s\n", i+1, imp)
		}
		output.WriteString("\n")
	}

	if len(result.SpiderGraph) > 0 {
		output.WriteString("Competência               CV  Vaga\n")
		for _, p := range result.SpiderGraph {
			fmt.Fprintf(&output, "%-24s %3d  %3d\n", p.Variable, p.CVValue, p.JobValue)
		}
	}

	return output.String(), nil
}

func (cf *ComparisonTextFormatter) SupportedType() string {
	return TypeComparison
}

// ComparisonMarkdownFormatter handles markdown formatting for job comparisons
type ComparisonMarkdownFormatter struct{}

func (cf *ComparisonMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(types.ComparisonResult)
	if !ok {
		return "", fmt.Errorf("expected ComparisonResult, got %T", data)
	}

	var output strings.Builder

	output.WriteString("# Compatibilidade com a Vaga\n\n")
	fmt.Fprintf(&output, "**Score:** %d/100\n\n", result.MatchScore)
	output.WriteString(result.Analysis)
	output.WriteString("\n\n")

	if len(result.MissingKeywords) > 0 {
		output.WriteString("## Palavras-chave Ausentes\n\n")
		for _, k := range result.MissingKeywords {
			fmt.Fprintf(&output, "- `%s`\n", k)
		}
		output.WriteString("\n")
	}

	if len(result.Improvements) > 0 {
		output.WriteString("## Melhorias\n\n")
		for i, imp := range result.Improvements {
			fmt.Fprintf(&output, "%d. %s\n", i+1, imp)
		}
		output.WriteString("\n")
	}

	if len(result.SpiderGraph) > 0 {
		output.WriteString("## Competências\n\n")
		output.WriteString("| Competência | CV | Vaga |\n|---|---|---|\n")
		for _, p := range result.SpiderGraph {
			fmt.Fprintf(&output, "| %s | %d | %d |\n", p.Variable, p.CVValue, p.JobValue)
		}
		output.WriteString("\n")
	}

	return output.String(), nil
}

func (cf *ComparisonMarkdownFormatter) SupportedType() string {
	return TypeComparison
}
