package app

import (
	"context"
	"credahead_backend/internal/config"
	"credahead_backend/internal/controller"
	"credahead_backend/internal/repository"
	"credahead_backend/internal/service"
	"credahead_backend/pkg/configwatcher"
	"credahead_backend/pkg/database"
	"credahead_backend/pkg/logger"
	"credahead_backend/pkg/monitoring"
	"credahead_backend/pkg/security"
	"credahead_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	configDir          = "configs"
	inactivitySweepInt = time.Minute
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client

	services        *services
	tracer          *sdktrace.TracerProvider
	cancel          context.CancelFunc
	background      sync.WaitGroup
	mu              sync.Mutex
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user       *repository.UserRepository
	question   *repository.QuestionRepository
	curriculum *repository.CurriculumRepository
	history    *repository.HistoryRepository
	session    *repository.SessionRepository
	progress   *repository.ProgressRepository
	score      *repository.ScoreRepository
	mirror     *repository.RedisHistoryMirror
}

type services struct {
	historyCache *service.HistoryCache
	selector     *service.QuestionSelector
	modules      *service.ModulePerformanceService
	percentile   *service.PercentileService
	session      *service.SessionService
	assessment   *service.AssessmentService
	lessonQuiz   *service.LessonQuizService
	pathway      *service.PathwayService
	question     *service.QuestionService
	auth         *service.AuthService
}

type controllers struct {
	auth       *controller.AuthController
	assessment *controller.AssessmentController
	lessonQuiz *controller.LessonQuizController
	session    *controller.SessionController
	score      *controller.ScoreController
	pathway    *controller.PathwayController
	question   *controller.QuestionController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configCallbacks = append(a.configCallbacks, callback)
}

// applyConfig 配置热更新：回调各组件
func (a *App) applyConfig(cfg *config.Config) {
	a.mu.Lock()
	callbacks := append([]func(*config.Config){}, a.configCallbacks...)
	a.mu.Unlock()
	for _, cb := range callbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *repositories {
	repos := &repositories{
		user:       repository.NewUserRepository(db),
		question:   repository.NewQuestionRepository(db),
		curriculum: repository.NewCurriculumRepository(db),
		history:    repository.NewHistoryRepository(db),
		session:    repository.NewSessionRepository(db),
		progress:   repository.NewProgressRepository(db),
		score:      repository.NewScoreRepository(db),
	}
	// Redis 未配置时历史缓存只保存在内存
	if rdb != nil {
		repos.mirror = repository.NewRedisHistoryMirror(rdb, cfg.Engine.HistoryTTL)
	}
	return repos
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB) *services {
	s := &services{}

	var mirror service.HistoryMirror
	if repos.mirror != nil {
		mirror = repos.mirror
	}
	s.historyCache = service.NewHistoryCache(repos.history, mirror, cfg.Engine.HistoryTTL)
	s.selector = service.NewQuestionSelector(repos.question, s.historyCache)
	s.modules = service.NewModulePerformanceService(repos.question, repos.curriculum)
	s.percentile = service.NewPercentileService(repos.score)

	s.session = service.NewSessionService(db, repos.session, repos.history, repos.question, s.historyCache, s.selector, cfg.Engine)
	s.assessment = service.NewAssessmentService(s.session, repos.user, repos.score, s.modules, s.percentile)
	s.pathway = service.NewPathwayService(repos.user, repos.curriculum, repos.progress)
	s.lessonQuiz = service.NewLessonQuizService(s.session, repos.curriculum, repos.progress, s.pathway, service.NewLessonPassPolicy(cfg.Engine))
	s.question = service.NewQuestionService(repos.question, repos.history)
	s.auth = service.NewAuthService(repos.user, s.historyCache, cfg)

	a.RegisterConfigCallback(func(newCfg *config.Config) {
		s.historyCache.SetTTL(newCfg.Engine.HistoryTTL)
		if repos.mirror != nil {
			repos.mirror.SetTTL(newCfg.Engine.HistoryTTL)
		}
	})

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:       controller.NewAuthController(s.auth),
		assessment: controller.NewAssessmentController(s.assessment),
		lessonQuiz: controller.NewLessonQuizController(s.lessonQuiz),
		session:    controller.NewSessionController(s.session),
		score:      controller.NewScoreController(s.percentile),
		pathway:    controller.NewPathwayController(s.pathway),
		question:   controller.NewQuestionController(s.question),
		health:     controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, window, security.ClientIPKey))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// sweepInactive 定期放弃长时间无作答的会话，并清理过期的历史缓存
func (a *App) sweepInactive(ctx context.Context) {
	ticker := time.NewTicker(inactivitySweepInt)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweepOnce(ctx)
		}
	}
}

func (a *App) sweepOnce(ctx context.Context) {
	if pruned := a.services.historyCache.Prune(); pruned > 0 {
		logger.Log.Debug("expired history cache entries pruned", zap.Int("count", pruned))
	}
	n, err := a.services.session.AbandonInactive(ctx)
	if err != nil {
		logger.Log.Error("inactive session sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		logger.Log.Info("inactive sessions abandoned", zap.Int("count", n))
	}
}

func (a *App) startBackgroundTasks(ctx context.Context) {
	a.background.Add(1)
	go func() {
		defer a.background.Done()
		a.sweepInactive(ctx)
	}()

	configFile := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(configFile); err == nil {
		if err := configwatcher.Watch(ctx, configFile, a.applyConfig); err != nil {
			logger.Log.Warn("Config watcher disabled", zap.Error(err))
		}
	}
}

// New 基于已建立的连接组装应用；rdb 可以为 nil
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *App {
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db, rdb, cfg)
	app.services = app.initServices(repos, cfg, db)
	controllers := app.initControllers(app.services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	return app
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// release 模式下默认不自动迁移，需显式 -migrate
	if cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode {
		if err := database.Migrate(db, cfg.Seed); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	if cfg.MigrateOnly {
		return &App{Config: cfg, DB: db}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := New(cfg, db, rdb)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("credahead-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel
	app.startBackgroundTasks(ctx)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	if a.cancel != nil {
		a.cancel()
	}
	a.background.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
