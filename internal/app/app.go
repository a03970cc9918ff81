package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"quizicle_backend/internal/config"
	"quizicle_backend/internal/controller"
	"quizicle_backend/internal/repository"
	"quizicle_backend/internal/service"
	"quizicle_backend/internal/util"
	"quizicle_backend/pkg/database"
	"quizicle_backend/pkg/logger"
	"quizicle_backend/pkg/monitoring"
	"quizicle_backend/pkg/security"
	"quizicle_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client

	services *services
	limiter  *security.Limiter
	tracer   *sdktrace.TracerProvider
	stop     chan struct{}

	jwtSecret atomic.Value

	mu              sync.Mutex
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user    *repository.UserRepository
	quiz    *repository.QuizRepository
	result  *repository.ResultRepository
	comment *repository.CommentRepository
	report  *repository.ReportRepository
}

type services struct {
	storage   *service.StorageService
	authoring *service.AuthoringService
	grading   *service.GradingService
	result    *service.ResultService
	quiz      *service.QuizService
	feedback  *service.FeedbackService
	hub       *service.LeaderboardHub
}

type controllers struct {
	quiz     *controller.QuizController
	attempt  *controller.AttemptController
	feedback *controller.FeedbackController
	admin    *controller.AdminController
	health   *controller.HealthController
}

// RegisterConfigCallback 配置热更新后依次回调
func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig 由 configwatcher 调用
func (a *App) ApplyConfig(cfg *config.Config) {
	a.mu.Lock()
	callbacks := append([]func(*config.Config){}, a.configCallbacks...)
	a.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
}

func (a *App) secret() string {
	s, _ := a.jwtSecret.Load().(string)
	return s
}

func initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:    repository.NewUserRepository(db),
		quiz:    repository.NewQuizRepository(db),
		result:  repository.NewResultRepository(db),
		comment: repository.NewCommentRepository(db),
		report:  repository.NewReportRepository(db),
	}
}

func initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)

	var locker service.EditLocker = service.NoopLocker{}
	if rdb != nil {
		locker = service.NewRedisEditLocker(rdb)
	}

	s.authoring = service.NewAuthoringService(db, repos.quiz, s.storage, locker, cfg.Quiz)
	s.grading = service.NewGradingService(db, repos.quiz, repos.result)
	s.result = service.NewResultService(repos.quiz, repos.result, cfg.Quiz.LeaderboardSize)
	s.hub = service.NewLeaderboardHub(s.result, rdb)
	s.grading.Notifier = s.hub
	s.quiz = service.NewQuizService(db, repos.quiz, s.storage)
	s.feedback = service.NewFeedbackService(repos.quiz, repos.comment, repos.report)
	return s
}

func initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		quiz:     controller.NewQuizController(s.quiz, s.authoring),
		attempt:  controller.NewAttemptController(s.grading, s.result, s.hub),
		feedback: controller.NewFeedbackController(s.feedback),
		admin:    controller.NewAdminController(s.feedback, s.authoring),
		health:   controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(a.limiter.Middleware())

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// New 使用已建立的连接组装应用，rdb 可为 nil
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *App {
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		stop:   make(chan struct{}),
	}
	app.jwtSecret.Store(cfg.JWT.Secret)

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	app.limiter = security.NewLimiter(cfg.RateLimit.MaxRequests, window)
	go app.limiter.Run(app.stop)

	repos := initRepositories(db)
	app.services = initServices(repos, cfg, db, rdb)
	go app.services.hub.Run(app.stop)
	ctrls := initControllers(app.services, db, rdb)

	monitoring.Init()

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Server.Mode == gin.DebugMode {
		router.Use(gin.Logger())
	}
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, ctrls, repos)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.RegisterConfigCallback(func(c *config.Config) {
		logger.SetMode(c.Server.Mode)
		app.jwtSecret.Store(c.JWT.Secret)
		app.limiter.Update(c.RateLimit.MaxRequests, time.Duration(c.RateLimit.WindowMinutes)*time.Minute)
		app.services.authoring.ApplyConfig(c.Quiz)
		app.services.result.SetLeaderboardSize(c.Quiz.LeaderboardSize)
		logger.Log.Info("Runtime config applied",
			zap.Bool("requireCorrectAnswer", c.Quiz.RequireCorrectAnswer),
			zap.Int("rateLimit", c.RateLimit.MaxRequests))
	})

	return app
}

// NewApp 建立数据库与 Redis 连接并组装应用
func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	if cfg.ForceMigrate || cfg.Server.Mode == gin.DebugMode {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app := New(cfg, db, rdb)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("quizicle", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Error("Failed to initialize tracing", zap.Error(err))
		} else {
			app.tracer = tp
		}
	}

	return app
}

// Close 释放后台任务与外部连接
func (a *App) Close(ctx context.Context) {
	select {
	case <-a.stop:
	default:
		close(a.stop)
		a.services.hub.Stop()
	}

	if err := tracing.Shutdown(ctx, a.tracer); err != nil {
		logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Log.Warn("Failed to close redis", zap.Error(err))
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（5秒超时）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	a.Close(ctx)

	logger.Log.Info("Server exiting")
}
