package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"credahead_backend/internal/config"
	"credahead_backend/internal/model"
	"credahead_backend/internal/repository"
	"credahead_backend/pkg/database"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// testEnv 基于内存 SQLite 的完整服务组装
type testEnv struct {
	db         *gorm.DB
	clock      *manualClock
	engine     config.EngineConfig
	questions  *repository.QuestionRepository
	history    *repository.HistoryRepository
	sessions   *repository.SessionRepository
	users      *repository.UserRepository
	progress   *repository.ProgressRepository
	scores     *repository.ScoreRepository
	cache      *HistoryCache
	session    *SessionService
	assessment *AssessmentService
	lessonQuiz *LessonQuizService
	pathway    *PathwayService
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	require.NoError(t, database.Seed(db, config.SeedConfig{DummyScores: true}))
	return db
}

// seedCurriculum 10 节课（等级 1-10），每节课 10 道难度 1-10 的题目
func seedCurriculum(t *testing.T, db *gorm.DB) {
	t.Helper()
	for level := 1; level <= 10; level++ {
		lessonID := fmt.Sprintf("L%02d", level)
		lesson := model.Lesson{
			LessonID: lessonID,
			Title:    fmt.Sprintf("Lesson %d", level),
			Level:    level,
			ModuleID: model.DefaultModules[(level-1)%len(model.DefaultModules)].ModuleID,
		}
		if level == 2 {
			lesson.Prerequisites = []string{"L01"}
		}
		require.NoError(t, db.Create(&lesson).Error)

		for d := 1; d <= 10; d++ {
			require.NoError(t, db.Create(&model.Question{
				QuestionID:    fmt.Sprintf("%s-Q%02d", lessonID, d),
				LessonID:      lessonID,
				Text:          fmt.Sprintf("Question %d of %s", d, lessonID),
				Options:       []string{"A", "B", "C", "D"},
				CorrectAnswer: d % 4,
				Difficulty:    d,
				Explanation:   "because",
			}).Error)
		}
	}
}

func newTestEnv(t *testing.T, engine config.EngineConfig) *testEnv {
	t.Helper()
	db := openTestDB(t)
	seedCurriculum(t, db)

	env := &testEnv{
		db:        db,
		clock:     &manualClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
		engine:    engine,
		questions: repository.NewQuestionRepository(db),
		history:   repository.NewHistoryRepository(db),
		sessions:  repository.NewSessionRepository(db),
		users:     repository.NewUserRepository(db),
		progress:  repository.NewProgressRepository(db),
		scores:    repository.NewScoreRepository(db),
	}
	curriculum := repository.NewCurriculumRepository(db)

	env.cache = NewHistoryCache(env.history, nil, engine.HistoryTTL)
	env.cache.now = env.clock.now
	selector := NewQuestionSelector(env.questions, env.cache)

	env.session = NewSessionService(db, env.sessions, env.history, env.questions, env.cache, selector, engine)
	env.session.now = func() time.Time {
		// 每次调用前进 1 秒，保证作答时间有序
		env.clock.advance(time.Second)
		return env.clock.now()
	}
	env.pathway = NewPathwayService(env.users, curriculum, env.progress)
	env.assessment = NewAssessmentService(env.session, env.users, env.scores,
		NewModulePerformanceService(env.questions, curriculum), NewPercentileService(env.scores))
	env.lessonQuiz = NewLessonQuizService(env.session, curriculum, env.progress, env.pathway, NewLessonPassPolicy(engine))
	return env
}

func (e *testEnv) createUser(t *testing.T, email string) *model.User {
	t.Helper()
	u := &model.User{Name: "Test", Email: email, Password: "x", Role: model.Student, LiteracyLevel: 1, CurrentPathwayLevel: 1}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

// answerFor 返回正确或错误的选项下标
func (e *testEnv) answerFor(t *testing.T, questionID string, correct bool) int {
	t.Helper()
	q, err := e.questions.FindByQuestionID(context.Background(), questionID)
	require.NoError(t, err)
	if correct {
		return q.CorrectAnswer
	}
	return (q.CorrectAnswer + 1) % len(q.Options)
}
