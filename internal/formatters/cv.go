package formatters

import (
	"fmt"
	"strings"

	"cvoptimizer/internal/types"
)

func period(start, end string, current bool) string {
	switch {
	case current:
		end = "Atual"
	case end == "":
		return start
	}
	if start == "" {
		return end
	}
	return start + " - " + end
}

func contactLine(p types.PersonalInfo) string {
	var parts []string
	for _, v := range []string{p.Email, p.Phone, p.Location, p.LinkedIn, p.Website} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " | ")
}

// CVTextFormatter handles text formatting for structured résumés
type CVTextFormatter struct{}

func (cf *CVTextFormatter) Format(data any) (string, error) {
	cv, ok := data.(types.CVData)
	if !ok {
		return "", fmt.Errorf("expected CVData, got %T", data)
	}

	var output strings.Builder

	p := cv.PersonalInfo
	output.WriteString(strings.ToUpper(p.FullName))
	output.WriteString("\n")
	if contact := contactLine(p); contact != "" {
		output.WriteString(contact)
		output.WriteString("\n")
	}
	if p.Summary != "" {
		output.WriteString("\n")
		output.WriteString(p.Summary)
		output.WriteString("\n")
	}

	if len(cv.Experience) > 0 {
		output.WriteString("\n=== EXPERIÊNCIA ===\n\n")
		for _, e := range cv.Experience {
			fmt.Fprintf(&output, "%s - %s (%s)\n", e.Position, e.Company, period(e.StartDate, e.EndDate, e.Current))
			if e.Description != "" {
				output.WriteString(e.Description)
				output.WriteString("\n")
			}
			output.WriteString("\n")
		}
	}

	if len(cv.Education) > 0 {
		output.WriteString("=== FORMAÇÃO ===\n\n")
		for _, e := range cv.Education {
			fmt.Fprintf(&output, "%s em %s, %s (%s)\n", e.Degree, e.FieldOfStudy, e.Institution, period(e.StartDate, e.EndDate, e.Current))
		}
		output.WriteString("\n")
	}

	if len(cv.Skills) > 0 {
		output.WriteString("=== HABILIDADES ===\n")
		output.WriteString(strings.Join(cv.Skills, ", "))
		output.WriteString("\n\n")
	}

	if len(cv.Languages) > 0 {
		output.WriteString("=== IDIOMAS ===\n")
		for _, l := range cv.Languages {
			fmt.Fprintf(&output, "%s: %s\n", l.Language, l.Proficiency)
		}
	}

	return output.String(), nil
}

func (cf *CVTextFormatter) SupportedType() string {
	return TypeCV
}

// CVMarkdownFormatter handles markdown formatting for structured résumés
type CVMarkdownFormatter struct{}

func (cf *CVMarkdownFormatter) Format(data any) (string, error) {
	cv, ok := data.(types.CVData)
	if !ok {
		return "", fmt.Errorf("expected CVData, got %T", data)
	}

	var output strings.Builder

	p := cv.PersonalInfo
	fmt.Fprintf(&output, "# %s\n\n", p.FullName)
	if contact := contactLine(p); contact != "" {
		output.WriteString(contact)
		output.WriteString("\n\n")
	}
	if p.Summary != "" {
		output.WriteString(p.Summary)
		output.WriteString("\n\n")
	}

	if len(cv.Experience) > 0 {
		output.WriteString("## Experiência\n\n")
		for _, e := range cv.Experience {
			fmt.Fprintf(&output, "### %s, %s\n\n", e.Position, e.Company)
			fmt.Fprintf(&output, "*%s*\n\n", period(e.StartDate, e.EndDate, e.Current))
			if e.Description != "" {
				output.WriteString(e.Description)
				output.WriteString("\n\n")
			}
		}
	}

	if len(cv.Education) > 0 {
		output.WriteString("## Formação\n\n")
		for _, e := range cv.Education {
			fmt.Fprintf(&output, "- **%s** em %s, %s (%s)\n", e.Degree, e.FieldOfStudy, e.Institution, period(e.StartDate, e.EndDate, e.Current))
		}
		output.WriteString("\n")
	}

	if len(cv.Skills) > 0 {
		output.WriteString("## Habilidades\n\n")
		output.WriteString(strings.Join(cv.Skills, ", "))
		output.WriteString("\n\n")
	}

	if len(cv.Languages) > 0 {
		output.WriteString("## Idiomas\n\n")
		for _, l := range cv.Languages {
			fmt.Fprintf(&output, "- %s: %s\n", l.Language, l.Proficiency)
		}
		output.WriteString("\n")
	}

	return output.String(), nil
}

func (cf *CVMarkdownFormatter) SupportedType() string {
	return TypeCV
}
