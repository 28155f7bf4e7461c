package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentor-hub/learning-mentor/internal/domain/state"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
	"github.com/mentor-hub/learning-mentor/pkg/timeutil"
)

func testZone(t *testing.T) *timeutil.Zone {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, "2026-08-29T12:00:00Z")
	require.NoError(t, err)
	return timeutil.NewZone("UTC", 3).WithClock(timeutil.FixedClock{T: ts})
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(ClientConfig{
		APIKey:            "test-key",
		Model:             "gemini-1.5-flash",
		BaseURL:           srv.URL,
		Timeout:           5 * time.Second,
		DailyLimitPerUser: 2,
		Zone:              testZone(t),
		Logger:            logger.New(logger.Options{Level: logger.LevelFatal, Output: io.Discard}),
	})
}

func modelResponse(text string) generateResponse {
	return generateResponse{
		Candidates: []candidate{{Content: content{Parts: []part{{Text: text}}}}},
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"fenced json", "```json\n{\"a\": 1}\n```", "{\"a\": 1}\n"},
		{"surrounded by prose", `Here is the result: {"a": 1} hope it helps`, `{"a": 1}`},
		{"array", `[1, 2, 3]`, `[1, 2, 3]`},
		{"no json", `just some words`, ""},
		{"invalid json", `{broken`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractJSON(tt.text)
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.JSONEq(t, tt.want, got)
		})
	}
}

func TestAnalyzeLogs(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "models/gemini-1.5-flash:generateContent")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Contents)
		assert.Contains(t, req.Contents[0].Parts[0].Text, "transformer (4x)")

		json.NewEncoder(w).Encode(modelResponse(`{
			"primary_focus": "DL",
			"concepts_detected": ["transformer", "attention mechanism"],
			"new_concepts": ["attention mechanism"],
			"repeated_concepts": ["transformer"],
			"depth_score": 8,
			"technical_indicators": ["multi-head attention"],
			"confidence": 0.9
		}`))
	}))

	analysis, usedAI := c.AnalyzeLogs(context.Background(), "123",
		"studied transformers today", map[string]int{"transformer": 4})

	assert.True(t, usedAI)
	assert.Equal(t, "DL", analysis.PrimaryFocus)
	assert.Equal(t, 8.0, analysis.DepthScore)
	assert.Equal(t, 0.9, analysis.Confidence)
	assert.Equal(t, 1, 2-c.RemainingRequests("123"), "one request charged")
}

func TestAnalyzeLogsFallbackOnServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	analysis, usedAI := c.AnalyzeLogs(context.Background(), "123", "logs", nil)

	assert.False(t, usedAI)
	assert.Equal(t, "Mixed", analysis.PrimaryFocus)
	assert.Equal(t, 0.0, analysis.Confidence)
	assert.Equal(t, 2, c.RemainingRequests("123"), "fallback does not charge quota")
}

func TestAnalyzeLogsFallbackOnGarbageResponse(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(modelResponse("sorry, I can't produce JSON today"))
	}))

	analysis, usedAI := c.AnalyzeLogs(context.Background(), "123", "logs", nil)
	assert.False(t, usedAI)
	assert.Equal(t, "Mixed", analysis.PrimaryFocus)
}

func TestAnalyzeLogsDailyLimit(t *testing.T) {
	var calls int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(modelResponse(`{"primary_focus": "ML", "concepts_detected": [], "depth_score": 5, "confidence": 0.8}`))
	}))

	for i := 0; i < 2; i++ {
		_, usedAI := c.AnalyzeLogs(context.Background(), "123", "logs", nil)
		assert.True(t, usedAI)
	}

	_, usedAI := c.AnalyzeLogs(context.Background(), "123", "logs", nil)
	assert.False(t, usedAI, "third request hits the daily limit")
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, c.RemainingRequests("123"))
}

func TestMentorFeedback(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(modelResponse(`{
			"consistency_score": 8,
			"mastery_progress_percent": 40,
			"mentor_feedback": "Solid depth today.",
			"next_day_focus": "attention variants",
			"streak_health": "safe",
			"motivational_note": "Keep going!",
			"areas_for_improvement": ["breadth"],
			"confidence": 0.85
		}`))
	}))

	u := state.NewUserRecord("123", "alice", "")
	u.Streak, u.Points = 9, 800

	fb, usedAI := c.MentorFeedback(context.Background(), "123", FallbackAnalysis(), u, nil)
	assert.True(t, usedAI)
	assert.Equal(t, 8, fb.ConsistencyScore)
	assert.Equal(t, "attention variants", fb.NextDayFocus)
}

func TestFallbackMentorFeedback(t *testing.T) {
	u := state.NewUserRecord("123", "alice", "")
	u.Streak = 10
	u.Points = 300

	fb := FallbackMentorFeedback(u)
	assert.Contains(t, fb.MentorFeedback, "consistent")
	assert.Equal(t, 6, fb.MasteryProgressPercent)
	assert.Equal(t, state.HealthSafe, fb.StreakHealth)
	assert.Equal(t, 0.0, fb.Confidence)
}

func TestFormatConceptHistory(t *testing.T) {
	assert.Equal(t, "No previous concept history", formatConceptHistory(nil))

	out := formatConceptHistory(map[string]int{"cnn": 2, "transformer": 5})
	assert.Equal(t, "transformer (5x), cnn (2x)", out)
}

func TestAskMentorDegrades(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	u := state.NewUserRecord("123", "alice", "")
	reply := c.AskMentor(context.Background(), "profile", "Foundation", u, "pathway", "activity", "how do I learn RL?")
	assert.Contains(t, reply, "Try again")
}
