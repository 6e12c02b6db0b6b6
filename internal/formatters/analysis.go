package formatters

import (
	"fmt"
	"strings"

	"cvoptimizer/internal/types"
)

var adviceLabels = map[types.AdviceType]string{
	types.AdviceImprovement: "Melhoria",
	types.AdviceStrength:    "Ponto forte",
	types.AdviceWarning:     "Atenção",
}

func adviceLabel(t types.AdviceType) string {
	if label, ok := adviceLabels[t]; ok {
		return label
	}
	return string(t)
}

// AnalysisTextFormatter handles text formatting for analysis results
type AnalysisTextFormatter struct{}

func (af *AnalysisTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.AnalysisResult)
	if !ok {
		return "", fmt.Errorf("expected AnalysisResult, got %T", data)
	}

	var output strings.Builder

	output.WriteString("=== VALORAÇÃO ===\n")
	fmt.Fprintf(&output, "Salário estimado: %s\n", FormatSalary(result.Valuation.EstimatedSalary, result.Valuation.Currency))
	if result.Valuation.Justification != "" {
		output.WriteString(result.Valuation.Justification)
		output.WriteString("\n")
	}
	output.WriteString("\n")

	if len(result.Advice) > 0 {
		output.WriteString("=== RECOMENDAÇÕES ===\n\n")
		for i, a := range result.Advice {
			fmt.Fprintf(&output, "%d. [%s] %s\n", i+1, adviceLabel(a.Type), a.Title)
			fmt.Fprintf(&output, "   %s\n", a.Description)
			if a.SuggestedText != "" {
				fmt.Fprintf(&output, "   Sugestão: %s\n", a.SuggestedText)
			}
			output.WriteString("\n")
		}
	}

	if len(result.JobMatches) > 0 {
		output.WriteString("=== VAGAS SUGERIDAS ===\n\n")
		for _, j := range result.JobMatches {
			fmt.Fprintf(&output, "- %s (%d%%) %s\n", j.Title, j.MatchScore, j.URL)
		}
		output.WriteString("\n")
	}

	writeTextSuggestions(&output, "ESTUDOS COMPLEMENTARES", result.ExtraStudies)
	writeTextSuggestions(&output, "DICAS DE ENTREVISTA", result.InterviewTips)

	if len(result.SpiderGraph) > 0 {
		output.WriteString("=== COMPETÊNCIAS ===\n")
		for _, s := range result.SpiderGraph {
			fmt.Fprintf(&output, "%-24s %3d\n", s.Variable, s.Value)
		}
	}

	return output.String(), nil
}

func (af *AnalysisTextFormatter) SupportedType() string {
	return TypeAnalysis
}

func writeTextSuggestions(output *strings.Builder, title string, items []types.Suggestion) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(output, "=== %s ===\n\n", title)
	for i, s := range items {
		fmt.Fprintf(output, "%d. %s\n   %s\n\n", i+1, s.Title, s.Description)
	}
}

// AnalysisMarkdownFormatter handles markdown formatting for analysis results
type AnalysisMarkdownFormatter struct{}

func (af *AnalysisMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(types.AnalysisResult)
	if !ok {
		return "", fmt.Errorf("expected AnalysisResult, got %T", data)
	}

	var output strings.Builder

	output.WriteString("# Análise do Currículo\n\n")
	output.WriteString("## Valoração\n\n")
	fmt.Fprintf(&output, "**Salário estimado:** %s\n\n", FormatSalary(result.Valuation.EstimatedSalary, result.Valuation.Currency))
	if result.Valuation.Justification != "" {
		output.WriteString(result.Valuation.Justification)
		output.WriteString("\n\n")
	}

	if len(result.Advice) > 0 {
		output.WriteString("## Recomendações\n\n")
		for _, a := range result.Advice {
			fmt.Fprintf(&output, "### %s: %s\n\n", adviceLabel(a.Type), a.Title)
			output.WriteString(a.Description)
			output.WriteString("\n\n")
			if a.SuggestedText != "" {
				fmt.Fprintf(&output, "> %s\n\n", a.SuggestedText)
			}
		}
	}

	if len(result.JobMatches) > 0 {
		output.WriteString("## Vagas Sugeridas\n\n")
		for _, j := range result.JobMatches {
			fmt.Fprintf(&output, "- [%s](%s) (%s, %d%%)\n", j.Title, j.URL, j.Source, j.MatchScore)
		}
		output.WriteString("\n")
	}

	writeMarkdownSuggestions(&output, "Estudos Complementares", result.ExtraStudies)
	writeMarkdownSuggestions(&output, "Dicas de Entrevista", result.InterviewTips)

	if len(result.SpiderGraph) > 0 {
		output.WriteString("## Competências\n\n")
		output.WriteString("| Competência | Nota |\n|---|---|\n")
		for _, s := range result.SpiderGraph {
			fmt.Fprintf(&output, "| %s | %d |\n", s.Variable, s.Value)
		}
		output.WriteString("\n")
	}

	return output.String(), nil
}

func (af *AnalysisMarkdownFormatter) SupportedType() string {
	return TypeAnalysis
}

func writeMarkdownSuggestions(output *strings.Builder, title string, items []types.Suggestion) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(output, "## %s\n\n", title)
	for _, s := range items {
		fmt.Fprintf(output, "- **%s**: %s\n", s.Title, s.Description)
	}
	output.WriteString("\n")
}
