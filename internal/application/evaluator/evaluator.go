// Package evaluator implements the nightly evaluation: it gathers each
// user's logs for the day, scores them locally and through the Gemini
// analyzer, blends the two by model confidence, applies the results in a
// single state mutation and delivers the mentor feedback.
package evaluator

import (
	"context"
	"fmt"
	"strings"

	"github.com/mentor-hub/learning-mentor/config"
	"github.com/mentor-hub/learning-mentor/internal/domain/scoring"
	"github.com/mentor-hub/learning-mentor/internal/domain/shared"
	"github.com/mentor-hub/learning-mentor/internal/domain/state"
	"github.com/mentor-hub/learning-mentor/internal/infrastructure/external/discord"
	"github.com/mentor-hub/learning-mentor/internal/store"
	"github.com/mentor-hub/learning-mentor/pkg/logger"
	"github.com/mentor-hub/learning-mentor/pkg/timeutil"
)

const (
	// collectLimit caps how many channel messages one evaluation scans.
	collectLimit = 100

	// logSummaryLimit caps the text handed to the analyzer prompt.
	logSummaryLimit = 4000

	// weeklyScoreWindow is how many daily aggregates are kept for trends.
	weeklyScoreWindow = 7
)

// transport is the slice of the Discord client the evaluator needs.
type transport interface {
	GetMessages(ctx context.Context, channelID string, opts discord.ListMessagesOptions) ([]discord.Message, error)
	CreateMessage(ctx context.Context, channelID string, req discord.CreateMessageRequest) (*discord.Message, error)
}

// analyzer is the slice of the Gemini client the evaluator needs.
type analyzer interface {
	AnalyzeLogs(ctx context.Context, userID, logs string, conceptHistory map[string]int) (*state.Analysis, bool)
	MentorFeedback(ctx context.Context, userID string, analysis *state.Analysis, u *state.UserRecord, recent []*state.Evaluation) (*state.MentorFeedback, bool)
}

// Service runs daily evaluations.
type Service struct {
	cfg   *config.Config
	store *store.Store
	disc  transport
	ai    analyzer
	zone  *timeutil.Zone
	bus   shared.EventPublisher
	log   *logger.Logger
}

// New creates the evaluator service.
func New(cfg *config.Config, st *store.Store, disc transport, ai analyzer, zone *timeutil.Zone, bus shared.EventPublisher, log *logger.Logger) *Service {
	return &Service{
		cfg:   cfg,
		store: st,
		disc:  disc,
		ai:    ai,
		zone:  zone,
		bus:   bus,
		log:   log.With(logger.Component("evaluator")),
	}
}

// EvaluateAll evaluates every tracked user for today. Users already
// carrying the evaluated flag, or with no logs, are skipped. Implements
// the nightly evaluation job.
func (s *Service) EvaluateAll(ctx context.Context) (evaluated, skipped, failed int, err error) {
	doc, err := s.store.Snapshot()
	if err != nil {
		return 0, 0, 0, err
	}

	date := s.zone.Today()
	for _, userID := range s.cfg.Tracking.UserIDs {
		if doc.GetDailyFlag(date, userID, state.FlagEvaluated) {
			skipped++
			continue
		}

		eval, evalErr := s.EvaluateUser(ctx, userID, date)
		switch {
		case evalErr != nil:
			failed++
			s.log.Error("evaluation failed", logger.UserID(userID), logger.Err(evalErr))
		case eval == nil:
			skipped++
		default:
			evaluated++
		}
	}

	return evaluated, skipped, failed, nil
}

// EvaluateUser evaluates one user's logs for the given date. Returns nil
// without error when the user has nothing to evaluate.
func (s *Service) EvaluateUser(ctx context.Context, userID, date string) (*state.Evaluation, error) {
	logs, err := s.collectLogs(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		s.log.Debug("no logs to evaluate", logger.UserID(userID), logger.String("date", date))
		return nil, nil
	}

	u, err := s.store.User(userID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return nil, err
		}
		u = state.NewUserRecord(userID, userID, s.zone.Now().Format(timeutil.FormatDateTime))
	}

	combined := strings.Join(logs, "\n")
	localDepth, _ := scoring.DetectDepth(strings.ToLower(combined))

	summary := scoring.SummarizeLogs(logs, logSummaryLimit)
	analysis, usedAI := s.ai.AnalyzeLogs(ctx, userID, summary, u.ConceptFrequency)

	// Low-confidence AI results lean on the local classifier for topic too.
	if analysis.Confidence < 0.5 {
		if topic, _ := scoring.ClassifyTopic(strings.ToLower(combined)); topic != "" {
			analysis.PrimaryFocus = topic
		}
	}

	concepts := analysis.ConceptsDetected
	if len(concepts) == 0 {
		concepts = scoring.ExtractConcepts(strings.ToLower(combined), 10)
		analysis.ConceptsDetected = concepts
	}
	penalty, repeated := scoring.RepetitionPenalty(concepts, u.ConceptFrequency)
	newConcepts := conceptsNotSeen(concepts, u.ConceptFrequency)

	eval := &state.Evaluation{
		UserID:            userID,
		Date:              date,
		Analysis:          *analysis,
		NewConcepts:       newConcepts,
		RepeatedConcepts:  repeated,
		RepetitionPenalty: penalty,
		Timestamp:         s.zone.Now().Format(timeutil.FormatDateTime),
	}

	combinedDepth := eval.CombinedDepth(float64(localDepth))
	qualified := s.countQualified(logs)
	eval.PointsEarned = scoring.EvaluationPoints(qualified, combinedDepth, penalty,
		s.cfg.Tracking.BasePoints, s.cfg.Tracking.DepthBonus)

	recent := s.recentEvaluations(userID)
	feedback, _ := s.ai.MentorFeedback(ctx, userID, analysis, u, recent)
	eval.MentorFeedback = *feedback

	if err := s.apply(ctx, userID, u.Username, date, eval, combinedDepth); err != nil {
		return nil, err
	}

	s.deliverFeedback(ctx, u, eval, combinedDepth)

	if s.bus != nil {
		_ = s.bus.Publish(shared.NewEvaluationCompletedEvent(
			userID, u.Username, date, int(combinedDepth), eval.PointsEarned, usedAI))
	}

	s.log.Info("user evaluated",
		logger.UserID(userID),
		logger.String("date", date),
		logger.Int("points", eval.PointsEarned),
		logger.Float64("depth", combinedDepth),
		logger.Bool("used_ai", usedAI))
	return eval, nil
}

// apply commits the evaluation outcome in one mutation.
func (s *Service) apply(ctx context.Context, userID, username, date string, eval *state.Evaluation, combinedDepth float64) error {
	err := s.store.Mutate(ctx, func(doc *state.Document) error {
		u := doc.EnsureUser(userID, username, s.zone.Now().Format(timeutil.FormatDateTime))

		u.Points += eval.PointsEarned
		u.EvaluationCount++
		scoring.AddConcepts(u, eval.Analysis.ConceptsDetected)
		scoring.AddTopicCoverage(u, eval.Analysis.PrimaryFocus)
		scoring.CheckBadges(u, combinedDepth)
		scoring.UpdateSkillLevel(u)

		u.WeeklyScores = append(u.WeeklyScores, state.WeeklyScore{
			Date:     date,
			AvgDepth: combinedDepth,
			Points:   eval.PointsEarned,
		})
		if len(u.WeeklyScores) > weeklyScoreWindow {
			u.WeeklyScores = u.WeeklyScores[len(u.WeeklyScores)-weeklyScoreWindow:]
		}

		doc.CacheEvaluation(userID, eval)
		doc.SetDailyFlag(date, userID, state.FlagEvaluated)
		doc.BotMetadata.TotalEvaluations++
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply evaluation: %w", err)
	}
	return nil
}

// deliverFeedback posts the mentor feedback to the user's daily thread,
// falling back to the learning channel. Delivery failure is not fatal;
// the evaluation is already persisted.
func (s *Service) deliverFeedback(ctx context.Context, u *state.UserRecord, eval *state.Evaluation, combinedDepth float64) {
	channelID := u.DailyThreadID
	if channelID == "" {
		channelID = s.cfg.Discord.LearningChannelID
	}

	embed := feedbackEmbed(u, eval, combinedDepth)
	if _, err := s.disc.CreateMessage(ctx, channelID, discord.CreateMessageRequest{
		Content: fmt.Sprintf("<@%s>", u.UserID),
		Embeds:  []discord.Embed{embed},
	}); err != nil {
		s.log.Warn("feedback delivery failed", logger.UserID(u.UserID), logger.Err(err))
	}
}

// feedbackEmbed renders the nightly evaluation card.
func feedbackEmbed(u *state.UserRecord, eval *state.Evaluation, combinedDepth float64) discord.Embed {
	fb := eval.MentorFeedback

	fields := []discord.EmbedField{
		{Name: "📊 Depth", Value: fmt.Sprintf("%.1f/10", combinedDepth), Inline: true},
		{Name: "🎯 Focus", Value: eval.Analysis.PrimaryFocus, Inline: true},
		{Name: "⭐ Points", Value: fmt.Sprintf("+%d", eval.PointsEarned), Inline: true},
	}
	if len(eval.NewConcepts) > 0 {
		fields = append(fields, discord.EmbedField{
			Name: "🆕 New concepts", Value: scoring.FormatConcepts(eval.NewConcepts, 5),
		})
	}
	if eval.RepetitionPenalty < 1 {
		fields = append(fields, discord.EmbedField{
			Name:  "🔁 Repetition",
			Value: fmt.Sprintf("Penalty ×%.2f — try new ground: %s", eval.RepetitionPenalty, scoring.FormatConcepts(eval.RepeatedConcepts, 3)),
		})
	}
	if fb.NextDayFocus != "" {
		fields = append(fields, discord.EmbedField{Name: "🧭 Tomorrow", Value: fb.NextDayFocus})
	}

	description := fb.MentorFeedback
	if fb.MotivationalNote != "" {
		description += "\n\n_" + fb.MotivationalNote + "_"
	}

	return discord.Embed{
		Title:       fmt.Sprintf("🌙 Daily Evaluation — %s", eval.Date),
		Description: description,
		Color:       0x5865F2,
		Fields:      fields,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LOG COLLECTION
// ══════════════════════════════════════════════════════════════════════════════

// collectLogs gathers the user's log texts for the date from the learning
// channel and their daily thread.
func (s *Service) collectLogs(ctx context.Context, userID, date string) ([]string, error) {
	var logs []string

	channels := []string{s.cfg.Discord.LearningChannelID}
	if u, err := s.store.User(userID); err == nil && u.DailyThreadID != "" {
		channels = append(channels, u.DailyThreadID)
	}

	for _, channelID := range channels {
		msgs, err := s.disc.GetMessages(ctx, channelID, discord.ListMessagesOptions{Limit: collectLimit})
		if err != nil {
			return nil, fmt.Errorf("collect logs from %s: %w", channelID, err)
		}

		for _, msg := range msgs {
			if msg.Author.ID != userID || msg.Author.Bot {
				continue
			}
			if strings.HasPrefix(msg.Content, s.cfg.Discord.CommandPrefix) {
				continue
			}
			ts, err := msg.CreatedAt()
			if err != nil || ts.In(s.zone.Location()).Format(timeutil.FormatDate) != date {
				continue
			}

			cleaned := scoring.CleanContent(msg.Content)
			if len(cleaned) >= s.cfg.Tracking.MinMessageLength {
				logs = append(logs, cleaned)
			}
		}
	}

	return logs, nil
}

func (s *Service) countQualified(logs []string) int {
	n := 0
	for _, l := range logs {
		if ok, _ := scoring.Qualifies(l, s.cfg.Tracking.MinMessageLength); ok {
			n++
		}
	}
	return n
}

// recentEvaluations returns up to a week of cached evaluations, oldest
// first, for the mentor prompt.
func (s *Service) recentEvaluations(userID string) []*state.Evaluation {
	doc, err := s.store.Snapshot()
	if err != nil {
		return nil
	}
	return doc.CachedEvaluations(userID, s.zone.LastNDays(weeklyScoreWindow))
}

func conceptsNotSeen(concepts []string, frequency map[string]int) []string {
	var fresh []string
	for _, c := range concepts {
		if frequency[c] == 0 {
			fresh = append(fresh, c)
		}
	}
	return fresh
}
