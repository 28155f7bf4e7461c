package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	// Application
	App AppConfig

	// Discord API
	Discord DiscordConfig

	// Gemini LLM API
	Gemini GeminiConfig

	// Learning tracking rules
	Tracking TrackingConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Feature Flags
	Features *FeatureFlags

	// Observability
	Observability ObservabilityConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string
	Environment Environment
	Debug       bool
	Version     string

	// Timezone for streaks, daily flags and scheduled jobs
	Timezone string
	Location *time.Location

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration
}

// DiscordConfig holds Discord REST API settings.
type DiscordConfig struct {
	// Bot token from the Discord developer portal
	Token string

	// Guild the bot operates in
	GuildID string

	// Channel IDs
	StateChannelID        string // pinned state message lives here
	LearningChannelID     string // learning logs are posted here
	DashboardChannelID    string // dashboard embed lives here
	DailyThreadsChannelID string // daily threads are created here

	// Message polling
	PollingInterval time.Duration
	PollingLimit    int // messages per poll (max 100)

	// Request behavior
	RequestTimeout time.Duration
	MaxRetries     int

	// Command prefix for text commands
	CommandPrefix string

	// Admin user IDs (for admin commands)
	AdminIDs []string
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string

	// Generation settings
	Temperature    float64
	RequestTimeout time.Duration
	MaxRetries     int

	// Per-user daily call budget for evaluations
	DailyLimitPerUser int

	// Circuit breaker settings
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

// TrackingConfig holds the scoring and streak rules.
type TrackingConfig struct {
	// Tracked user IDs (Discord snowflakes)
	UserIDs []string

	// Qualification
	MinMessageLength int

	// Points
	BasePoints int
	DepthBonus int

	// Hour of day before which a log still counts toward yesterday's streak
	StreakGraceHour int

	// Evaluation cache entries kept per user
	EvaluationCacheSize int

	// Daily-flag history kept before pruning (days)
	DailyFlagRetentionDays int
}

// SchedulerConfig holds background job settings.
type SchedulerConfig struct {
	// Enable/disable scheduler
	Enabled bool

	// Job intervals
	DashboardRefreshInterval time.Duration // re-render dashboard embed
	MaintenanceInterval      time.Duration // flag pruning, streak-health sweep

	// Daily thread creation time (in configured timezone)
	DailyThreadHour   int // 0-23
	DailyThreadMinute int // 0-59

	// Nightly evaluation time (in configured timezone)
	EvaluationHour   int // 0-23
	EvaluationMinute int // 0-59

	// Concurrency
	JobTimeout time.Duration
}

// ObservabilityConfig holds logging and health settings.
type ObservabilityConfig struct {
	// Logging
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text

	// Health endpoint
	HealthEnabled bool
	HealthPort    int
}

// Load loads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.App = loadAppConfig()
	cfg.Discord = loadDiscordConfig()
	cfg.Gemini = loadGeminiConfig()
	cfg.Tracking = loadTrackingConfig()
	cfg.Scheduler = loadSchedulerConfig()
	cfg.Features = LoadFeatureFlags()
	cfg.Observability = loadObservabilityConfig()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func loadAppConfig() AppConfig {
	env := Environment(getEnv("APP_ENV", "development"))
	timezone := getEnv("TIMEZONE", "Asia/Kathmandu")

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}

	return AppConfig{
		Name:            getEnv("APP_NAME", "learning-mentor"),
		Environment:     env,
		Debug:           env == EnvDevelopment || getEnvBool("APP_DEBUG", false),
		Version:         getEnv("APP_VERSION", "1.0.0"),
		Timezone:        timezone,
		Location:        loc,
		ShutdownTimeout: getEnvDuration("APP_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadDiscordConfig() DiscordConfig {
	return DiscordConfig{
		Token:                 getEnv("DISCORD_TOKEN", ""),
		GuildID:               getEnv("GUILD_ID", ""),
		StateChannelID:        getEnv("STATE_CHANNEL_ID", ""),
		LearningChannelID:     getEnv("LEARNING_CHANNEL_ID", ""),
		DashboardChannelID:    getEnv("DASHBOARD_CHANNEL_ID", ""),
		DailyThreadsChannelID: getEnv("DAILY_THREADS_CHANNEL_ID", ""),
		PollingInterval:       getEnvDuration("DISCORD_POLLING_INTERVAL", 5*time.Second),
		PollingLimit:          getEnvInt("DISCORD_POLLING_LIMIT", 50),
		RequestTimeout:        getEnvDuration("DISCORD_REQUEST_TIMEOUT", 15*time.Second),
		MaxRetries:            getEnvInt("DISCORD_MAX_RETRIES", 5),
		CommandPrefix:         getEnv("COMMAND_PREFIX", "!"),
		AdminIDs:              getEnvStringSlice("ADMIN_IDS", nil),
	}
}

func loadGeminiConfig() GeminiConfig {
	return GeminiConfig{
		APIKey:                  getEnv("GEMINI_API_KEY", ""),
		Model:                   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		BaseURL:                 getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		Temperature:             getEnvFloat("GEMINI_TEMPERATURE", 0.3),
		RequestTimeout:          getEnvDuration("GEMINI_REQUEST_TIMEOUT", 60*time.Second),
		MaxRetries:              getEnvInt("GEMINI_MAX_RETRIES", 3),
		DailyLimitPerUser:       getEnvInt("GEMINI_DAILY_LIMIT_PER_USER", 1),
		CircuitBreakerThreshold: getEnvInt("GEMINI_CB_THRESHOLD", 3),
		CircuitBreakerTimeout:   getEnvDuration("GEMINI_CB_TIMEOUT", 60*time.Second),
	}
}

func loadTrackingConfig() TrackingConfig {
	return TrackingConfig{
		UserIDs:                getEnvStringSlice("USER_IDS", nil),
		MinMessageLength:       getEnvInt("MIN_MESSAGE_LENGTH", 30),
		BasePoints:             getEnvInt("BASE_POINTS", 10),
		DepthBonus:             getEnvInt("DEPTH_BONUS", 5),
		StreakGraceHour:        getEnvInt("STREAK_GRACE_HOUR", 3),
		EvaluationCacheSize:    getEnvInt("EVALUATION_CACHE_SIZE", 7),
		DailyFlagRetentionDays: getEnvInt("DAILY_FLAG_RETENTION_DAYS", 7),
	}
}

func loadSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:                  getEnvBool("SCHEDULER_ENABLED", true),
		DashboardRefreshInterval: getEnvDuration("DASHBOARD_REFRESH_INTERVAL", 5*time.Minute),
		MaintenanceInterval:      getEnvDuration("MAINTENANCE_INTERVAL", 1*time.Hour),
		DailyThreadHour:          getEnvInt("DAILY_THREAD_HOUR", 6),
		DailyThreadMinute:        getEnvInt("DAILY_THREAD_MINUTE", 0),
		EvaluationHour:           getEnvInt("EVALUATION_HOUR", 23),
		EvaluationMinute:         getEnvInt("EVALUATION_MINUTE", 30),
		JobTimeout:               getEnvDuration("SCHEDULER_JOB_TIMEOUT", 5*time.Minute),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		HealthEnabled: getEnvBool("HEALTH_ENABLED", true),
		HealthPort:    getEnvInt("HEALTH_PORT", 8080),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Discord.Token == "" {
		errs = append(errs, "DISCORD_TOKEN is required")
	}
	if c.Discord.GuildID == "" {
		errs = append(errs, "GUILD_ID is required")
	}
	if c.Discord.StateChannelID == "" {
		errs = append(errs, "STATE_CHANNEL_ID is required")
	}
	if c.Discord.LearningChannelID == "" {
		errs = append(errs, "LEARNING_CHANNEL_ID is required")
	}
	if c.Discord.DashboardChannelID == "" {
		errs = append(errs, "DASHBOARD_CHANNEL_ID is required")
	}
	if c.Discord.DailyThreadsChannelID == "" {
		errs = append(errs, "DAILY_THREADS_CHANNEL_ID is required")
	}
	if c.Gemini.APIKey == "" {
		errs = append(errs, "GEMINI_API_KEY is required")
	}
	if len(c.Tracking.UserIDs) == 0 {
		errs = append(errs, "USER_IDS is required (comma-separated Discord user IDs)")
	}

	if c.Tracking.StreakGraceHour < 0 || c.Tracking.StreakGraceHour > 12 {
		errs = append(errs, "STREAK_GRACE_HOUR must be 0-12")
	}
	if c.Scheduler.DailyThreadHour < 0 || c.Scheduler.DailyThreadHour > 23 {
		errs = append(errs, "DAILY_THREAD_HOUR must be 0-23")
	}
	if c.Scheduler.EvaluationHour < 0 || c.Scheduler.EvaluationHour > 23 {
		errs = append(errs, "EVALUATION_HOUR must be 0-23")
	}
	if c.Discord.PollingLimit < 1 || c.Discord.PollingLimit > 100 {
		errs = append(errs, "DISCORD_POLLING_LIMIT must be 1-100")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// IsTrackedUser reports whether the given Discord user ID is tracked.
func (c *Config) IsTrackedUser(userID string) bool {
	for _, id := range c.Tracking.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the given Discord user ID is an admin.
func (c *Config) IsAdmin(userID string) bool {
	for _, id := range c.Discord.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// --- Helper functions for environment variable parsing ---

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}

	parts := strings.Split(val, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		result = append(result, p)
	}
	return result
}
