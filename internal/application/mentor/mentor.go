// Package mentor answers questions in daily threads and produces the
// weekly summaries. Answers are grounded in the user's profile, career
// pathway position and recent evaluation history.
package mentor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mentor-hub/learning-mentor/config"
	"github.com/mentor-hub/learning-mentor/internal/domain/shared"
	"github.com/mentor-hub/learning-mentor/internal/domain/state"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/external/discord"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/external/gemini"
	"github.com/mentor-hub/learning-mentor/internal/store"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
	"github.com/mentor-hub/learning-mentor/pkg/timeutil"
)

// minQuestionLength filters out throwaway messages like "ok?".
const minQuestionLength = 10

// questionStarters mark a message as a question even without a question
// mark.
var questionStarters = []string{
	"how", "what", "why", "when", "where", "which", "who",
	"can i", "can you", "should i", "could you", "is it", "are there",
	"explain", "help",
}

// transport is the slice of the Discord client the mentor needs.
type transport interface {
	CreateMessage(ctx context.Context, channelID string, req discord.CreateMessageRequest) (*discord.Message, error)
}

// mentorAI is the slice of the Gemini client the mentor needs.
type mentorAI interface {
	AskMentor(ctx context.Context, profile, levelName string, u *state.UserRecord, pathwayInfo, recentActivity, question string) string
	GenerateWeeklySummary(ctx context.Context, userID string, evals []*state.Evaluation, u *state.UserRecord) (*gemini.WeeklySummary, bool)
}

// Service implements the interactive mentor.
type Service struct {
	cfg   *config.Config
	store *store.Store
	disc  transport
	ai    mentorAI
	zone  *timeutil.Zone
	bus   shared.EventPublisher
	log   *logger.Logger
}

// New creates the mentor service.
func New(cfg *config.Config, st *store.Store, disc transport, ai mentorAI, zone *timeutil.Zone, bus shared.EventPublisher, log *logger.Logger) *Service {
	return &Service{
		cfg:   cfg,
		store: st,
		disc:  disc,
		ai:    ai,
		zone:  zone,
		bus:   bus,
		log:   log.With(logger.Component("mentor")),
	}
}

// IsQuestion reports whether content looks like a question for the
// mentor rather than a learning log.
func IsQuestion(content string) bool {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < minQuestionLength {
		return false
	}

	if strings.Contains(trimmed, "?") {
		return true
	}

	lower := strings.ToLower(trimmed)
	for _, starter := range questionStarters {
		if strings.HasPrefix(lower, starter+" ") {
			return true
		}
	}
	return false
}

// HandleMessage answers a question asked in the user's daily thread.
// Returns true when the message was consumed as a question; the poller
// passes unconsumed messages on to the tracker.
func (s *Service) HandleMessage(ctx context.Context, msg discord.Message) (bool, error) {
	if msg.Author.Bot || !s.cfg.IsTrackedUser(msg.Author.ID) {
		return false, nil
	}
	if !IsQuestion(msg.Content) {
		return false, nil
	}

	u, err := s.store.User(msg.Author.ID)
	if err != nil || u.DailyThreadID == "" || u.DailyThreadID != msg.ChannelID {
		// Questions only get answered in the user's own daily thread.
		return false, nil
	}

	answer := s.Answer(ctx, u, msg.Content)
	if _, err := s.disc.CreateMessage(ctx, msg.ChannelID, discord.CreateMessageRequest{Content: answer}); err != nil {
		return true, fmt.Errorf("send mentor answer: %w", err)
	}

	s.log.Info("question answered", logger.UserID(msg.Author.ID))
	return true, nil
}

// Answer produces the mentor's reply to a question.
func (s *Service) Answer(ctx context.Context, u *state.UserRecord, question string) string {
	level := config.SkillLevelByIndex(u.SkillLevel)
	return s.ai.AskMentor(ctx,
		buildProfile(u),
		level.Name,
		u,
		pathwaySummary(u.Points),
		s.recentActivity(u.UserID),
		strings.TrimSpace(question))
}

// WeeklySummary generates the summary over the user's last week of
// cached evaluations.
func (s *Service) WeeklySummary(ctx context.Context, userID string) (*gemini.WeeklySummary, error) {
	u, err := s.store.User(userID)
	if err != nil {
		return nil, err
	}

	doc, err := s.store.Snapshot()
	if err != nil {
		return nil, err
	}
	evals := doc.CachedEvaluations(userID, s.zone.LastNDays(7))
	if len(evals) == 0 {
		return nil, shared.NewDomainError("mentor", "WeeklySummary", shared.ErrNotFound, "no evaluations cached for the past week")
	}

	summary, usedAI := s.ai.GenerateWeeklySummary(ctx, userID, evals, u)

	if s.bus != nil {
		_ = s.bus.Publish(shared.NewWeeklySummaryReadyEvent(userID, u.Username, summary.WeekRating, usedAI))
	}

	s.log.Info("weekly summary generated",
		logger.UserID(userID),
		logger.Int("evaluations", len(evals)),
		logger.Bool("used_ai", usedAI))
	return summary, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROMPT CONTEXT
// ══════════════════════════════════════════════════════════════════════════════

// buildProfile renders the user's learning profile for the prompt.
func buildProfile(u *state.UserRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Badges: %d. Evaluations: %d.\n", len(u.Badges), u.EvaluationCount)

	// Coverage values are credit counts; render each topic's share.
	var total float64
	for _, v := range u.TopicCoverage {
		total += v
	}
	if total > 0 {
		topics := make([]string, 0, len(config.Topics))
		for _, topic := range config.Topics {
			topics = append(topics, fmt.Sprintf("%s %.0f%%", topic, u.TopicCoverage[topic]/total*100))
		}
		fmt.Fprintf(&b, "Topic coverage: %s.\n", strings.Join(topics, ", "))
	}

	if top := topConcepts(u.ConceptFrequency, 5); len(top) > 0 {
		fmt.Fprintf(&b, "Most-logged concepts: %s.", strings.Join(top, ", "))
	}

	return b.String()
}

// pathwaySummary renders the career-pathway position for the prompt.
func pathwaySummary(points int) string {
	progress := config.PathwayProgress(points)

	next := "top of the pathway"
	if progress.Next != nil {
		next = fmt.Sprintf("%s at %d points", progress.Next.Name, progress.Next.MinPoints)
	}

	return fmt.Sprintf("Milestone: %s (%.0f%% to next). Next: %s. Focus areas: %s.",
		progress.Current.Name,
		progress.ProgressPercent,
		next,
		strings.Join(progress.FocusAreas, ", "))
}

// recentActivity summarizes the last week of evaluations for the prompt.
func (s *Service) recentActivity(userID string) string {
	doc, err := s.store.Snapshot()
	if err != nil {
		return "No recent activity available."
	}

	evals := doc.CachedEvaluations(userID, s.zone.LastNDays(7))
	if len(evals) == 0 {
		return "No evaluations in the past week."
	}

	var lines []string
	for _, e := range evals {
		lines = append(lines, fmt.Sprintf("%s: %s (depth %.1f)", e.Date, e.Analysis.PrimaryFocus, e.Analysis.DepthScore))
	}
	return strings.Join(lines, "\n")
}

// topConcepts returns the most frequent concepts, ties broken
// alphabetically.
func topConcepts(frequency map[string]int, max int) []string {
	concepts := make([]string, 0, len(frequency))
	for c := range frequency {
		concepts = append(concepts, c)
	}
	sort.Slice(concepts, func(i, j int) bool {
		if frequency[concepts[i]] != frequency[concepts[j]] {
			return frequency[concepts[i]] > frequency[concepts[j]]
		}
		return concepts[i] < concepts[j]
	})

	if len(concepts) > max {
		concepts = concepts[:max]
	}
	return concepts
}
