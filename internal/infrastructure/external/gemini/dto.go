package gemini

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST TYPES
// ══════════════════════════════════════════════════════════════════════════════

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
	SafetySettings   []safetySetting  `json:"safetySettings,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// defaultSafetySettings disables content blocking, matching the study-log
// use case where logs may mention e.g. adversarial attacks.
var defaultSafetySettings = []safetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE TYPES
// ══════════════════════════════════════════════════════════════════════════════

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content content `json:"content"`
}

// Text returns the first candidate's text, or "".
func (r *generateResponse) Text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	parts := r.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return ""
	}
	return parts[0].Text
}

// WeeklySummary is the weekly summary the model returns.
type WeeklySummary struct {
	WeekRating           string   `json:"week_rating"`
	TotalConceptsLearned int      `json:"total_concepts_learned"`
	StrongestArea        string   `json:"strongest_area"`
	WeakestArea          string   `json:"weakest_area"`
	ConsistencyTrend     string   `json:"consistency_trend"`
	DepthTrend           string   `json:"depth_trend"`
	WeeklyFeedback       string   `json:"weekly_feedback"`
	GoalsForNextWeek     []string `json:"goals_for_next_week"`
	Celebration          string   `json:"celebration"`
	Fallback             bool     `json:"-"`
}
