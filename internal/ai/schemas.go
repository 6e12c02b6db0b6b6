package ai

import "google.golang.org/genai"

func stringSchema() *genai.Schema  { return &genai.Schema{Type: genai.TypeString} }
func integerSchema() *genai.Schema { return &genai.Schema{Type: genai.TypeInteger} }
func boolSchema() *genai.Schema    { return &genai.Schema{Type: genai.TypeBoolean} }

func arrayOf(items *genai.Schema) *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: items}
}

func suggestionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"id":          stringSchema(),
			"title":       stringSchema(),
			"description": stringSchema(),
		},
		Required: []string{"title", "description"},
	}
}

func cvDataSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"personalInfo": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"fullName": stringSchema(),
					"email":    stringSchema(),
					"phone":    stringSchema(),
					"linkedin": stringSchema(),
					"website":  stringSchema(),
					"location": stringSchema(),
					"summary":  stringSchema(),
				},
				Required: []string{"fullName", "email", "phone"},
			},
			"experience": arrayOf(&genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"id":          stringSchema(),
					"company":     stringSchema(),
					"position":    stringSchema(),
					"startDate":   stringSchema(),
					"endDate":     stringSchema(),
					"current":     boolSchema(),
					"description": stringSchema(),
				},
				Required: []string{"company", "position"},
			}),
			"education": arrayOf(&genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"id":           stringSchema(),
					"institution":  stringSchema(),
					"degree":       stringSchema(),
					"fieldOfStudy": stringSchema(),
					"startDate":    stringSchema(),
					"endDate":      stringSchema(),
					"current":      boolSchema(),
				},
				Required: []string{"institution", "degree"},
			}),
			"skills": arrayOf(stringSchema()),
			"languages": arrayOf(&genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"id":          stringSchema(),
					"language":    stringSchema(),
					"proficiency": stringSchema(),
				},
				Required: []string{"language", "proficiency"},
			}),
		},
		Required: []string{"personalInfo", "experience", "education", "skills", "languages"},
	}
}

// analysisSchema creates the response config for résumé analysis
func analysisSchema() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"advice": arrayOf(&genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"id":            stringSchema(),
						"type":          {Type: genai.TypeString, Enum: []string{"improvement", "strength", "warning"}},
						"title":         stringSchema(),
						"description":   stringSchema(),
						"suggestedText": stringSchema(),
					},
					Required: []string{"type", "title", "description", "suggestedText"},
				}),
				"valuation": {
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"estimatedSalary": {Type: genai.TypeNumber},
						"currency":        stringSchema(),
						"justification":   stringSchema(),
					},
					Required: []string{"estimatedSalary", "currency", "justification"},
				},
				"jobMatches": arrayOf(&genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"id":          stringSchema(),
						"title":       stringSchema(),
						"searchQuery": stringSchema(),
					},
					Required: []string{"title", "searchQuery"},
				}),
				"extraStudies":  arrayOf(suggestionSchema()),
				"interviewTips": arrayOf(suggestionSchema()),
				"spiderGraph": arrayOf(&genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"variable": stringSchema(),
						"value":    integerSchema(),
					},
					Required: []string{"variable", "value"},
				}),
				"cvData": cvDataSchema(),
			},
			Required: []string{"advice", "valuation", "jobMatches", "extraStudies", "interviewTips", "spiderGraph"},
		},
	}
}

// comparisonSchema creates the response config for job comparison
func comparisonSchema() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"matchScore":      integerSchema(),
				"analysis":        stringSchema(),
				"missingKeywords": arrayOf(stringSchema()),
				"improvements":    arrayOf(stringSchema()),
				"spiderGraph": arrayOf(&genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"variable": stringSchema(),
						"cvValue":  integerSchema(),
						"jobValue": integerSchema(),
					},
					Required: []string{"variable", "cvValue", "jobValue"},
				}),
			},
			Required: []string{"matchScore", "analysis", "missingKeywords", "improvements", "spiderGraph"},
		},
	}
}
