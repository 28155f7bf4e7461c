package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages runtime feature toggles.
// Every optional subsystem of the bot can be switched off with an
// environment variable without touching code, which keeps a broken
// Gemini key or a noisy reminder job from taking the whole bot down.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// Predefined feature flag names.
const (
	// === AI Features ===
	FeatureGeminiEvaluation = "ai.gemini_evaluation" // nightly AI analysis of logs
	FeatureMentorQA         = "ai.mentor_qa"         // interactive Q&A in threads
	FeatureWeeklySummary    = "ai.weekly_summary"    // AI weekly report

	// === Tracking Features ===
	FeatureReactions      = "tracking.reactions"       // emoji feedback on logs
	FeatureStreakReminder = "tracking.streak_reminder" // at-risk streak pings

	// === Channel Features ===
	FeatureDashboard    = "channel.dashboard"     // periodic dashboard refresh
	FeatureDailyThreads = "channel.daily_threads" // per-day learning threads

	// === Maintenance Features ===
	FeatureAutoBackup = "maintenance.auto_backup" // snapshot before risky ops
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features: make(map[string]*Feature),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	defaults := []Feature{
		{FeatureGeminiEvaluation, "Nightly Gemini analysis of learning logs", true},
		{FeatureMentorQA, "Interactive mentor Q&A in daily threads", true},
		{FeatureWeeklySummary, "AI-generated weekly summaries", true},
		{FeatureReactions, "Emoji reactions on qualifying logs", true},
		{FeatureStreakReminder, "Reminders when a streak is at risk", true},
		{FeatureDashboard, "Periodic dashboard embed refresh", true},
		{FeatureDailyThreads, "Automatic daily learning threads", true},
		{FeatureAutoBackup, "Automatic state backups before admin operations", true},
	}

	for i := range defaults {
		f := defaults[i]
		ff.features[f.Name] = &f
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false
// Example: FEATURE_AI_GEMINI_EVALUATION=false
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "ai.gemini_evaluation" -> "FEATURE_AI_GEMINI_EVALUATION"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled.
// Unknown feature names are treated as disabled.
func (ff *FeatureFlags) IsEnabled(featureName string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}
	return feature.Enabled
}

// EnableFeature enables a feature at runtime.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.setEnabled(featureName, true)
}

// DisableFeature disables a feature at runtime.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.setEnabled(featureName, false)
}

func (ff *FeatureFlags) setEnabled(featureName string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	feature.Enabled = enabled
	return nil
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// AIFeaturesEnabled checks if any AI-backed feature is enabled.
func (ff *FeatureFlags) AIFeaturesEnabled() bool {
	return ff.IsEnabled(FeatureGeminiEvaluation) ||
		ff.IsEnabled(FeatureMentorQA) ||
		ff.IsEnabled(FeatureWeeklySummary)
}

// --- Errors ---

var ErrFeatureNotFound = &FeatureFlagError{Message: "feature not found"}

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
