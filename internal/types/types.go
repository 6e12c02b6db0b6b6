package types

// AdviceType classifies a piece of résumé advice
type AdviceType string

const (
	AdviceImprovement AdviceType = "improvement"
	AdviceStrength    AdviceType = "strength"
	AdviceWarning     AdviceType = "warning"
)

// Advice is one actionable recommendation about the résumé
type Advice struct {
	ID            string     `json:"id"`
	Type          AdviceType `json:"type"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	SuggestedText string     `json:"suggestedText,omitempty"`
}

// Valuation is the estimated monthly salary for the profile
type Valuation struct {
	EstimatedSalary float64 `json:"estimatedSalary"`
	Currency        string  `json:"currency"`
	Justification   string  `json:"justification"`
}

// JobMatch is a job-search suggestion. Source, URL and MatchScore are
// filled in after the model responds.
type JobMatch struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	SearchQuery string `json:"searchQuery"`
	Source      string `json:"source"`
	URL         string `json:"url"`
	MatchScore  int    `json:"matchScore"`
}

// Suggestion is a titled recommendation, used for studies and interview tips
type Suggestion struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SkillScore is one axis of the skills radar chart
type SkillScore struct {
	Variable string `json:"variable"`
	Value    int    `json:"value"` // 0-100
}

// AnalyzeCVInput represents the input for analyzing a résumé
type AnalyzeCVInput struct {
	CVText string `json:"cvText"`
}

// AnalysisResult is the full output of a résumé analysis
type AnalysisResult struct {
	Advice        []Advice     `json:"advice"`
	Valuation     Valuation    `json:"valuation"`
	JobMatches    []JobMatch   `json:"jobMatches"`
	ExtraStudies  []Suggestion `json:"extraStudies"`
	InterviewTips []Suggestion `json:"interviewTips"`
	SpiderGraph   []SkillScore `json:"spiderGraph"`
	CVData        *CVData      `json:"cvData,omitempty"`
}

// CompareJobInput represents the input for comparing a résumé with a job
type CompareJobInput struct {
	CVData         CVData `json:"cvData"`
	JobDescription string `json:"jobDescription"`
}

// ComparisonPoint is one axis of the résumé-versus-job radar chart
type ComparisonPoint struct {
	Variable string `json:"variable"`
	CVValue  int    `json:"cvValue"`  // 0-100
	JobValue int    `json:"jobValue"` // 0-100
}

// ComparisonResult represents how well a résumé fits a job description
type ComparisonResult struct {
	MatchScore      int               `json:"matchScore"` // 0-100
	Analysis        string            `json:"analysis"`
	MissingKeywords []string          `json:"missingKeywords"`
	Improvements    []string          `json:"improvements"`
	SpiderGraph     []ComparisonPoint `json:"spiderGraph"`
}

// EditCVInput represents an instruction-driven edit of a résumé
type EditCVInput struct {
	CVData      CVData `json:"cvData"`
	Instruction string `json:"instruction"`
}

// PersonalInfo holds contact details and summary
type PersonalInfo struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	LinkedIn string `json:"linkedin,omitempty"`
	Website  string `json:"website,omitempty"`
	Location string `json:"location,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

// Experience is one job in the work history
type Experience struct {
	ID          string `json:"id"`
	Company     string `json:"company"`
	Position    string `json:"position"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Current     bool   `json:"current"`
	Description string `json:"description"`
}

// Education is one academic entry
type Education struct {
	ID           string `json:"id"`
	Institution  string `json:"institution"`
	Degree       string `json:"degree"`
	FieldOfStudy string `json:"fieldOfStudy"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	Current      bool   `json:"current"`
}

// Language is a spoken language and proficiency level
type Language struct {
	ID          string `json:"id"`
	Language    string `json:"language"`
	Proficiency string `json:"proficiency"`
}

// CVData is the structured form of a résumé
type CVData struct {
	PersonalInfo PersonalInfo `json:"personalInfo"`
	Experience   []Experience `json:"experience"`
	Education    []Education  `json:"education"`
	Skills       []string     `json:"skills"`
	Languages    []Language   `json:"languages"`
}

// IsEmpty reports whether the résumé carries no content at all.
func (cv CVData) IsEmpty() bool {
	return cv.PersonalInfo == (PersonalInfo{}) &&
		len(cv.Experience) == 0 &&
		len(cv.Education) == 0 &&
		len(cv.Skills) == 0 &&
		len(cv.Languages) == 0
}

// TalentAd is a promoted job posting from the talent network
type TalentAd struct {
	ID         string `json:"id" mapstructure:"id"`
	Title      string `json:"title" mapstructure:"title"`
	Company    string `json:"company" mapstructure:"company"`
	Location   string `json:"location" mapstructure:"location"`
	URL        string `json:"url" mapstructure:"url"`
	IsPromoted bool   `json:"isPromoted" mapstructure:"isPromoted"`
}
