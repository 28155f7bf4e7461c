// Package gemini implements the Google Gemini API client used for AI
// analysis and mentorship. Every operation degrades to a deterministic
// fallback when the API is unavailable, so evaluation never blocks on
// the model.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mentor-hub/learning-mentor/config"
	"github.com/mentor-hub/learning-mentor/internal/domain/shared"
	"github.com/mentor-hub/learning-mentor/internal/domain/state"
	"github.com/mentor-hub/learning-mentor/pkg/circuitbreaker"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
	"github.com/mentor-hub/learning-mentor/pkg/retry"
	"github.com/mentor-hub/learning-mentor/pkg/timeutil"
)

// DefaultBaseURL is the Gemini REST endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig configures the Gemini client.
type ClientConfig struct {
	APIKey            string
	Model             string
	BaseURL           string
	Temperature       float64
	Timeout           time.Duration
	DailyLimitPerUser int
	Zone              *timeutil.Zone
	Logger            *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client calls the Gemini generateContent API.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
	log        *logger.Logger

	// Per-user daily request counts for the rate limit.
	mu       sync.Mutex
	requests map[string]map[string]int
}

// NewClient creates a Gemini client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.DailyLimitPerUser == 0 {
		cfg.DailyLimitPerUser = 1
	}
	if cfg.Zone == nil {
		cfg.Zone = timeutil.NewZone("UTC", 0)
	}
	log := cfg.Logger
	if log == nil {
		log = logger.New(logger.DefaultOptions())
	}
	log = log.With(logger.Component("gemini"))

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retrier:    retry.GeminiRetrier(),
		breaker: circuitbreaker.GeminiAPIBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		}),
		log:      log,
		requests: make(map[string]map[string]int),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITING
// ══════════════════════════════════════════════════════════════════════════════

// allowRequest reports whether the user has daily quota left.
func (c *Client) allowRequest(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[userID][c.cfg.Zone.Today()] < c.cfg.DailyLimitPerUser
}

// recordRequest charges one request against the user's daily quota.
func (c *Client) recordRequest(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	today := c.cfg.Zone.Today()
	if c.requests[userID] == nil {
		c.requests[userID] = make(map[string]int)
	}
	// Stale dates accumulate slowly (one entry per user per day), drop
	// everything but today.
	for date := range c.requests[userID] {
		if date != today {
			delete(c.requests[userID], date)
		}
	}
	c.requests[userID][today]++
}

// RemainingRequests returns the user's remaining daily quota.
func (c *Client) RemainingRequests(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	remaining := c.cfg.DailyLimitPerUser - c.requests[userID][c.cfg.Zone.Today()]
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ══════════════════════════════════════════════════════════════════════════════
// ANALYSIS OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// AnalyzeLogs runs the analyzer prompt over a day's concatenated logs.
// Returns the analysis and whether the AI produced it (false means
// fallback). The user's daily quota is charged only on success.
func (c *Client) AnalyzeLogs(ctx context.Context, userID, logs string, conceptHistory map[string]int) (*state.Analysis, bool) {
	if !c.allowRequest(userID) {
		c.log.Warn("daily limit reached", logger.UserID(userID))
		return FallbackAnalysis(), false
	}

	prompt := fmt.Sprintf(analyzerPrompt, logs, formatConceptHistory(conceptHistory))

	text, err := c.generate(ctx, prompt, 0.3, 1024)
	if err != nil || text == "" {
		c.log.Error("analysis failed, using fallback", logger.UserID(userID), logger.Err(err))
		return FallbackAnalysis(), false
	}

	var analysis state.Analysis
	if !c.parseJSON(text, &analysis) {
		return FallbackAnalysis(), false
	}
	if analysis.PrimaryFocus == "" {
		c.log.Warn("analysis missing primary_focus, using fallback", logger.UserID(userID))
		return FallbackAnalysis(), false
	}

	c.recordRequest(userID)
	return &analysis, true
}

// MentorFeedback runs the mentor prompt over today's analysis plus the
// user's recent evaluations.
func (c *Client) MentorFeedback(ctx context.Context, userID string, analysis *state.Analysis, u *state.UserRecord, recent []*state.Evaluation) (*state.MentorFeedback, bool) {
	analysisJSON, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return FallbackMentorFeedback(u), false
	}

	prompt := fmt.Sprintf(mentorPrompt,
		string(analysisJSON),
		u.Streak,
		u.Points,
		config.SkillLevelByIndex(u.SkillLevel).Name,
		u.DaysActive,
		formatRecentPerformance(recent))

	text, err := c.generate(ctx, prompt, 0.7, 1024)
	if err != nil || text == "" {
		c.log.Error("mentor feedback failed, using fallback", logger.UserID(userID), logger.Err(err))
		return FallbackMentorFeedback(u), false
	}

	var feedback state.MentorFeedback
	if !c.parseJSON(text, &feedback) {
		return FallbackMentorFeedback(u), false
	}
	return &feedback, true
}

// GenerateWeeklySummary runs the weekly summary prompt over a week of
// evaluations.
func (c *Client) GenerateWeeklySummary(ctx context.Context, userID string, evals []*state.Evaluation, u *state.UserRecord) (*WeeklySummary, bool) {
	if !c.allowRequest(userID) {
		return FallbackWeeklySummary(), false
	}

	weeklyData := buildWeeklyData(evals)
	dataJSON, err := json.MarshalIndent(weeklyData, "", "  ")
	if err != nil {
		return FallbackWeeklySummary(), false
	}

	prompt := fmt.Sprintf(weeklySummaryPrompt,
		string(dataJSON),
		u.Streak,
		u.Points,
		config.SkillLevelByIndex(u.SkillLevel).Name)

	text, err := c.generate(ctx, prompt, 0.7, 1024)
	if err != nil || text == "" {
		c.log.Error("weekly summary failed, using fallback", logger.UserID(userID), logger.Err(err))
		return FallbackWeeklySummary(), false
	}

	var summary WeeklySummary
	if !c.parseJSON(text, &summary) {
		return FallbackWeeklySummary(), false
	}

	c.recordRequest(userID)
	return &summary, true
}

// AskMentor answers a free-form question with the student's context.
// Errors degrade to a canned response rather than failing the command.
func (c *Client) AskMentor(ctx context.Context, profile, levelName string, u *state.UserRecord, pathwayInfo, recentActivity, question string) string {
	prompt := fmt.Sprintf(mentorQAPrompt,
		profile,
		levelName,
		u.Points,
		u.Streak,
		u.DaysActive,
		u.TotalLogs,
		pathwayInfo,
		recentActivity,
		question)

	text, err := c.generate(ctx, prompt, 0.7, 1024)
	if err != nil || strings.TrimSpace(text) == "" {
		c.log.Error("mentor Q&A failed", logger.UserID(u.UserID), logger.Err(err))
		return "I'm having trouble connecting to my AI brain right now. Try again in a moment!"
	}
	return strings.TrimSpace(text)
}

// Trajectory generates a free-form mastery trajectory.
func (c *Client) Trajectory(ctx context.Context, u *state.UserRecord, recent []*state.Evaluation) string {
	var focuses []string
	start := 0
	if len(recent) > 5 {
		start = len(recent) - 5
	}
	for _, e := range recent[start:] {
		focuses = append(focuses, e.Analysis.PrimaryFocus)
	}

	coverageJSON, _ := json.Marshal(u.TopicCoverage)
	prompt := fmt.Sprintf(trajectoryPrompt,
		u.Points,
		u.Streak,
		config.SkillLevelByIndex(u.SkillLevel).Name,
		u.DaysActive,
		string(coverageJSON),
		strings.Join(focuses, ", "))

	text, err := c.generate(ctx, prompt, 0.8, 512)
	if err != nil || strings.TrimSpace(text) == "" {
		return fallbackTrajectory
	}
	return strings.TrimSpace(text)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST PLUMBING
// ══════════════════════════════════════════════════════════════════════════════

// generate calls generateContent through the breaker and retrier.
func (c *Client) generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	var out string
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			text, err := c.generateOnce(ctx, prompt, temperature, maxTokens)
			if err != nil {
				return err
			}
			out = text
			return nil
		})
	})
	return out, err
}

func (c *Client) generateOnce(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     temperature,
			MaxOutputTokens: maxTokens,
			TopP:            0.95,
			TopK:            40,
		},
		SafetySettings: defaultSafetySettings,
	}

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.BaseURL, c.cfg.Model, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", retry.Retryable(shared.ErrGeminiRateLimited)
	case resp.StatusCode >= 500:
		return "", retry.Retryable(fmt.Errorf("gemini api status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return "", retry.Permanent(fmt.Errorf("gemini api status %d: %s", resp.StatusCode, truncate(string(respBody), 200)))
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", retry.Permanent(shared.WrapError("gemini", "Parse", shared.ErrInvalidFormat, "response body invalid", err))
	}
	return parsed.Text(), nil
}

// parseJSON extracts and unmarshals the JSON object in a model response,
// tolerating markdown fences and surrounding prose.
func (c *Client) parseJSON(text string, out any) bool {
	extracted := ExtractJSON(text)
	if extracted == "" {
		c.log.Warn("no JSON found in model response")
		return false
	}
	if err := json.Unmarshal([]byte(extracted), out); err != nil {
		c.log.Warn("model JSON failed to parse", logger.Err(err))
		return false
	}
	return true
}

var (
	fencePattern  = regexp.MustCompile("```(?:json)?\\s*")
	objectPattern = regexp.MustCompile(`\{[\s\S]*\}`)
	arrayPattern  = regexp.MustCompile(`\[[\s\S]*\]`)
)

// ExtractJSON pulls the first JSON object (or array) out of free text.
// Returns "" when nothing valid is found.
func ExtractJSON(text string) string {
	text = fencePattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "```", "")

	for _, pattern := range []*regexp.Regexp{objectPattern, arrayPattern} {
		match := pattern.FindString(text)
		if match == "" {
			continue
		}
		if json.Valid([]byte(match)) {
			return match
		}
	}
	return ""
}

// ══════════════════════════════════════════════════════════════════════════════
// FALLBACKS
// ══════════════════════════════════════════════════════════════════════════════

// FallbackAnalysis is the analysis used when the AI is unavailable. Zero
// confidence tells the depth blender to rely on local scores.
func FallbackAnalysis() *state.Analysis {
	return &state.Analysis{
		PrimaryFocus: "Mixed",
		DepthScore:   5,
		Confidence:   0,
	}
}

// FallbackMentorFeedback builds feedback from the user's stats alone.
func FallbackMentorFeedback(u *state.UserRecord) *state.MentorFeedback {
	feedback := "Every learning session counts. Keep pushing forward!"
	switch {
	case u.Streak >= 7:
		feedback = "Keep up the consistent work! Your dedication is showing."
	case u.Streak >= 3:
		feedback = "Good progress! Stay consistent to build momentum."
	}

	progress := u.Points / 50
	if progress > 100 {
		progress = 100
	}

	health := u.StreakHealth
	if health == "" {
		health = state.HealthSafe
	}

	return &state.MentorFeedback{
		ConsistencyScore:       5,
		MasteryProgressPercent: progress,
		MentorFeedback:         feedback,
		NextDayFocus:           "Continue exploring current topics",
		StreakHealth:           health,
		MotivationalNote:       "Small steps lead to big achievements!",
		AreasForImprovement:    []string{"Consistency", "Depth", "Variety"},
		Confidence:             0,
	}
}

// FallbackWeeklySummary is the summary used when the AI is unavailable.
func FallbackWeeklySummary() *WeeklySummary {
	return &WeeklySummary{
		WeekRating:       "C",
		StrongestArea:    "Mixed",
		WeakestArea:      "Mixed",
		ConsistencyTrend: "stable",
		DepthTrend:       "stable",
		WeeklyFeedback:   "Keep learning! Weekly AI analysis unavailable.",
		GoalsForNextWeek: []string{
			"Log daily learnings",
			"Explore new concepts",
			"Review previous material",
		},
		Celebration: "You're committed to learning!",
		Fallback:    true,
	}
}

const fallbackTrajectory = `📊 **Your Learning Trajectory**

Based on your current progress, you're on a solid path toward mastery!

**Next Steps:**
1. Focus on building foundational understanding
2. Apply concepts through practical projects
3. Explore connections between AI/ML/DL domains

**Timeline:** Continue your current pace for steady improvement.

*Keep logging your daily learnings to get personalized AI-powered insights!*`

// ══════════════════════════════════════════════════════════════════════════════
// PROMPT FORMATTING HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// formatConceptHistory renders the top twenty concepts by frequency.
func formatConceptHistory(history map[string]int) string {
	if len(history) == 0 {
		return "No previous concept history"
	}

	type entry struct {
		concept string
		count   int
	}
	entries := make([]entry, 0, len(history))
	for c, n := range history {
		entries = append(entries, entry{c, n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].concept < entries[j].concept
	})
	if len(entries) > 20 {
		entries = entries[:20]
	}

	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = fmt.Sprintf("%s (%dx)", e.concept, e.count)
	}
	return strings.Join(parts, ", ")
}

func formatRecentPerformance(recent []*state.Evaluation) string {
	if len(recent) == 0 {
		return "No recent performance data"
	}

	start := 0
	if len(recent) > 7 {
		start = len(recent) - 7
	}
	var lines []string
	for i, e := range recent[start:] {
		lines = append(lines, fmt.Sprintf("- Day %d: Depth %.1f, Focus: %s",
			i+1, e.Analysis.DepthScore, e.Analysis.PrimaryFocus))
	}
	return strings.Join(lines, "\n")
}

func buildWeeklyData(evals []*state.Evaluation) map[string]any {
	topics := make(map[string]bool)
	concepts := make(map[string]bool)
	totalDepth := 0.0
	for _, e := range evals {
		topics[e.Analysis.PrimaryFocus] = true
		for _, c := range e.Analysis.ConceptsDetected {
			concepts[c] = true
		}
		totalDepth += e.Analysis.DepthScore
	}

	days := len(evals)
	avgDepth := 0.0
	if days > 0 {
		avgDepth = totalDepth / float64(days)
	}

	return map[string]any{
		"days_logged":    days,
		"evaluations":    evals,
		"avg_depth":      avgDepth,
		"topics_covered": sortedKeys(topics),
		"all_concepts":   sortedKeys(concepts),
	}
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
