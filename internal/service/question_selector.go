package service

import (
	"context"
	"credahead_backend/internal/model"
	"credahead_backend/internal/repository"
	"credahead_backend/internal/util"
	"credahead_backend/pkg/logger"
	"credahead_backend/pkg/monitoring"
	"credahead_backend/pkg/tracing"
	"math"
	"math/rand/v2"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	maxSearchWidth     = 10
	windowCandidateCap = 20
	fallbackCap        = 10
)

// QuestionFinder queries the question bank.
type QuestionFinder interface {
	FindCandidates(ctx context.Context, f repository.QuestionFilter) ([]model.Question, error)
}

// HistoryLookup returns the question ids a user already saw in a context.
type HistoryLookup interface {
	QuestionHistory(ctx context.Context, userID uint, contextKey string) (map[string]struct{}, error)
}

type SelectionOptions struct {
	UserID            uint
	Context           string
	CurrentDifficulty float64
	UsedQuestionIDs   map[string]struct{}
	LessonID          string
}

type searchState int

const (
	searchWindow searchState = iota
	searchFallback
	searchExhausted
)

// QuestionSelector picks the next unseen question near the current difficulty.
type QuestionSelector struct {
	questions QuestionFinder
	history   HistoryLookup
	pick      func(n int) int
}

func NewQuestionSelector(questions QuestionFinder, history HistoryLookup) *QuestionSelector {
	return &QuestionSelector{
		questions: questions,
		history:   history,
		pick:      rand.IntN,
	}
}

// DifficultyWindow is the inclusive integer difficulty range searched at width.
func DifficultyWindow(current float64, width int) (int, int) {
	lo := int(math.Ceil(current - float64(width)))
	hi := int(math.Floor(current + float64(width)))
	return util.ClampInt(lo, util.MinDifficulty, util.MaxDifficulty), util.ClampInt(hi, util.MinDifficulty, util.MaxDifficulty)
}

func (s *QuestionSelector) exclusion(ctx context.Context, opts SelectionOptions) []string {
	excluded := make(map[string]struct{}, len(opts.UsedQuestionIDs))
	for id := range opts.UsedQuestionIDs {
		excluded[id] = struct{}{}
	}

	seen, err := s.history.QuestionHistory(ctx, opts.UserID, opts.Context)
	if err != nil {
		logger.Log.Error("question history lookup failed, excluding session questions only",
			zap.Uint("userId", opts.UserID),
			zap.String("context", opts.Context),
			zap.Error(err))
	}
	for id := range seen {
		excluded[id] = struct{}{}
	}

	ids := make([]string, 0, len(excluded))
	for id := range excluded {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// scope returns the base filter: level band for the assessment, the lesson
// otherwise.
func scope(opts SelectionOptions, exclude []string) repository.QuestionFilter {
	f := repository.QuestionFilter{ExcludeIDs: exclude}
	if opts.Context == model.AssessmentContext {
		band := DifficultyLevelRange(opts.CurrentDifficulty)
		f.LevelRange = &band
		return f
	}
	f.LessonID = opts.LessonID
	if f.LessonID == "" {
		f.LessonID = opts.Context
	}
	return f
}

func sessionTypeLabel(contextKey string) string {
	if contextKey == model.AssessmentContext {
		return string(model.SessionAssessment)
	}
	return string(model.SessionLesson)
}

// SelectNextQuestion returns nil when no eligible question is left; callers
// end the session on nil. Query failures are logged and count as empty.
func (s *QuestionSelector) SelectNextQuestion(ctx context.Context, opts SelectionOptions) *model.Question {
	ctx, span := tracing.Tracer().Start(ctx, "QuestionSelector.SelectNextQuestion")
	defer span.End()
	span.SetAttributes(
		attribute.String("selection.context", opts.Context),
		attribute.Float64("selection.difficulty", opts.CurrentDifficulty),
	)

	label := sessionTypeLabel(opts.Context)
	base := scope(opts, s.exclusion(ctx, opts))

	state := searchWindow
	width := 0
	for {
		switch state {
		case searchWindow:
			if width > maxSearchWidth {
				state = searchFallback
				continue
			}
			lo, hi := DifficultyWindow(opts.CurrentDifficulty, width)
			if lo <= hi {
				f := base
				f.MinDifficulty, f.MaxDifficulty, f.Limit = lo, hi, windowCandidateCap
				if q := s.pickFrom(ctx, f, width); q != nil {
					monitoring.QuestionSelections.WithLabelValues(label, "window").Inc()
					monitoring.SelectionWidth.Observe(float64(width))
					span.SetAttributes(attribute.Int("selection.width", width))
					return q
				}
			}
			width++

		case searchFallback:
			f := base
			f.Limit = fallbackCap
			if q := s.pickFrom(ctx, f, -1); q != nil {
				monitoring.QuestionSelections.WithLabelValues(label, "fallback").Inc()
				span.SetAttributes(attribute.Bool("selection.fallback", true))
				return q
			}
			state = searchExhausted

		case searchExhausted:
			monitoring.QuestionSelections.WithLabelValues(label, "exhausted").Inc()
			span.SetAttributes(attribute.Bool("selection.exhausted", true))
			logger.Log.Info("no eligible question left",
				zap.Uint("userId", opts.UserID),
				zap.String("context", opts.Context))
			return nil
		}
	}
}

func (s *QuestionSelector) pickFrom(ctx context.Context, f repository.QuestionFilter, width int) *model.Question {
	candidates, err := s.questions.FindCandidates(ctx, f)
	if err != nil {
		logger.Log.Error("question candidate query failed",
			zap.Int("width", width),
			zap.Error(err))
		return nil
	}
	if len(candidates) == 0 {
		return nil
	}
	q := candidates[s.pick(len(candidates))]
	return &q
}
