package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"grading_backend/internal/config"
	"grading_backend/internal/controller"
	"grading_backend/internal/repository"
	"grading_backend/internal/service"
	"grading_backend/pkg/configwatcher"
	"grading_backend/pkg/database"
	"grading_backend/pkg/logger"
	"grading_backend/pkg/monitoring"
	"grading_backend/pkg/security"
	"grading_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const configDir = "configs"

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	Mongo           *mongo.Client
	services        *services
	shutdownTracer  func(context.Context) error
	configCallbacks []func(*config.Config)

	// background 约束限流清理等后台协程的生命周期，Close 时取消
	background     context.Context
	stopBackground context.CancelFunc
}

type repositories struct {
	user        *repository.UserRepository
	assessment  *repository.AssessmentRepository
	submission  *repository.SubmissionRepository
	result      service.ResultStore
	definitions service.AssessmentProvider
	cache       service.AssessmentCache
}

type services struct {
	assessment *service.AssessmentService
	submission *service.SubmissionService
	aggregator *service.ResultAggregator
	ledger     *service.ResultLedger
}

type controllers struct {
	assessment *controller.AssessmentController
	submission *controller.SubmissionController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client, mdb *mongo.Database) *repositories {
	repos := &repositories{
		user:       repository.NewUserRepository(db),
		assessment: repository.NewAssessmentRepository(db),
		submission: repository.NewSubmissionRepository(db),
	}

	repos.definitions = repos.assessment
	if a.Config.Cache.Enabled && rdb != nil {
		cached := repository.NewCachedAssessmentProvider(repos.assessment, rdb, a.Config.AssessmentCacheTTL())
		repos.definitions = cached
		repos.cache = cached
	}

	if a.Config.Ledger.Store == "mongo" && mdb != nil {
		mongoResults := repository.NewMongoResultRepository(mdb)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mongoResults.EnsureIndexes(ctx); err != nil {
			logger.Log.Fatal("Failed to create mongo result indexes", zap.Error(err))
		}
		repos.result = mongoResults
	} else {
		repos.result = repository.NewResultRepository(db)
	}
	return repos
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	s.aggregator = service.NewResultAggregator(repos.result)
	s.ledger = service.NewResultLedger(repos.result, s.aggregator, logger.Log)
	s.assessment = service.NewAssessmentService(repos.assessment, repos.cache, logger.Log)
	s.submission = service.NewSubmissionService(
		repos.definitions,
		repos.submission,
		repos.user,
		s.ledger,
		logger.Log,
		service.SubmissionPolicy{EnforceUniqueTargets: cfg.Submission.EnforceUniqueTargets},
	)

	// 配置热更新时同步提交策略
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		s.submission.SetPolicy(service.SubmissionPolicy{EnforceUniqueTargets: newCfg.Submission.EnforceUniqueTargets})
	})
	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		assessment: controller.NewAssessmentController(s.assessment, s.submission, s.aggregator),
		submission: controller.NewSubmissionController(s.submission),
		health:     controller.NewHealthController(a.DB, a.Redis, a.Mongo),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(a.background, cfg.RateLimit))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	gin.SetMode(cfg.Server.Mode)

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == gin.DebugMode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}

	if cfg.MigrateOnly {
		return app
	}

	if cfg.Cache.Enabled {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			// 缓存不可用时直接读库
			logger.Log.Warn("Redis unavailable, assessment cache disabled", zap.Error(err))
		} else {
			app.Redis = rdb
		}
	}

	var mdb *mongo.Database
	if cfg.Ledger.Store == "mongo" {
		client, mongoDB, err := database.InitMongo(&cfg.Mongo)
		if err != nil {
			logger.Log.Fatal("Failed to initialize mongo", zap.Error(err))
		}
		app.Mongo = client
		mdb = mongoDB
	}

	shutdown, err := tracing.InitTracer(&cfg.Tracing)
	if err != nil {
		logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	app.shutdownTracer = shutdown

	repos := app.initRepositories(db, app.Redis, mdb)
	app.services = app.initServices(repos, cfg)
	controllers := app.initControllers(app.services)

	// 监控初始化
	monitoring.Init()

	app.background, app.stopBackground = context.WithCancel(context.Background())

	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	return app
}

func (a *App) watchConfig(ctx context.Context) {
	err := configwatcher.WatchConfig(ctx, configDir+"/config.yaml", func(newCfg *config.Config) {
		for _, cb := range a.configCallbacks {
			cb(newCfg)
		}
	})
	if err != nil {
		logger.Log.Error("Config watcher stopped", zap.Error(err))
	}
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go a.watchConfig(watchCtx)

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
	stopWatch()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	a.Close(ctx)

	logger.Log.Info("Server exiting")
}

// Close 释放外部连接
func (a *App) Close(ctx context.Context) {
	if a.stopBackground != nil {
		a.stopBackground()
	}
	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Mongo != nil {
		_ = a.Mongo.Disconnect(ctx)
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = logger.Log.Sync()
}
