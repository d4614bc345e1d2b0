package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"techacademy_backend/internal/cms"
	"techacademy_backend/internal/config"
	"techacademy_backend/internal/controller"
	"techacademy_backend/internal/middleware"
	"techacademy_backend/internal/repository"
	"techacademy_backend/internal/service"
	"techacademy_backend/pkg/configwatcher"
	"techacademy_backend/pkg/database"
	"techacademy_backend/pkg/logger"
	"techacademy_backend/pkg/monitoring"
	"techacademy_backend/pkg/security"
	"techacademy_backend/pkg/tracing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	cron            *cron.Cron
	tracer          *sdktrace.TracerProvider
	cancel          context.CancelFunc
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user           *repository.UserRepository
	role           *repository.RoleRepository
	progress       *repository.ProgressRepository
	trainingPlan   *repository.TrainingPlanRepository
	knowledgeCheck *repository.KnowledgeCheckRepository
}

type services struct {
	cms            *cms.Client
	auth           *service.AuthService
	user           *service.UserService
	storage        *service.StorageService
	course         *service.CourseService
	docs           *service.DocsService
	progress       *service.ProgressService
	trainingPlan   *service.TrainingPlanService
	knowledgeCheck *service.KnowledgeCheckService
}

type controllers struct {
	auth           *controller.AuthController
	user           *controller.UserController
	course         *controller.CourseController
	progress       *controller.ProgressController
	trainingPlan   *controller.TrainingPlanController
	knowledgeCheck *controller.KnowledgeCheckController
	health         *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:           repository.NewUserRepository(db),
		role:           repository.NewRoleRepository(db),
		progress:       repository.NewProgressRepository(db),
		trainingPlan:   repository.NewTrainingPlanRepository(db),
		knowledgeCheck: repository.NewKnowledgeCheckRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.cms = cms.NewClient(cfg.CMS)
	if !s.cms.Configured() {
		logger.Log.Warn("Contentstack credentials missing, course endpoints will return 502")
	}
	mapper := cms.NewMapper(cfg.CMS.ModuleReferenceKey)

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.user = service.NewUserService(repos.user, repos.role, service.NewMailer(&cfg.Mail), cfg.Mail.LoginURL)
	s.course = service.NewCourseService(s.cms, mapper, rdb, cfg)
	s.docs = service.NewDocsService(cfg.CMS.DocsURL)
	s.trainingPlan = service.NewTrainingPlanService(repos.trainingPlan, repos.user)
	s.progress = service.NewProgressService(repos.progress, repos.user, s.course, s.trainingPlan)
	s.knowledgeCheck = service.NewKnowledgeCheckService(s.cms, mapper, repos.knowledgeCheck, s.storage)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	cfg := a.Config
	return &controllers{
		auth:           controller.NewAuthController(s.auth, cfg.Server.Mode == gin.ReleaseMode, cfg.JWT.ExpireTime),
		user:           controller.NewUserController(s.user),
		course:         controller.NewCourseController(s.course, s.docs),
		progress:       controller.NewProgressController(s.progress),
		trainingPlan:   controller.NewTrainingPlanController(s.trainingPlan),
		knowledgeCheck: controller.NewKnowledgeCheckController(s.knowledgeCheck),
		health:         controller.NewHealthController(db, rdb, s.cms),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS))
	router.Use(security.Secure())
	if cfg.RateLimit.MaxRequests > 0 {
		router.Use(security.RateLimiter(cfg.RateLimit))
	}

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 定时预热 CMS 缓存
func (a *App) startBackgroundTasks(ctx context.Context, s *services) {
	schedule := a.Config.CMS.CacheWarmSchedule
	if schedule == "" || a.Redis == nil {
		return
	}

	a.cron = cron.New()
	_, err := a.cron.AddFunc(schedule, func() {
		warmCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		s.course.WarmCache(warmCtx)
	})
	if err != nil {
		logger.Log.Error("Invalid cache warm schedule", zap.String("schedule", schedule), zap.Error(err))
		return
	}
	a.cron.Start()
	go s.course.WarmCache(ctx)
}

func (a *App) watchConfig(ctx context.Context) {
	if a.Config.ConfigFile == "" {
		return
	}
	a.RegisterConfigCallback(func(cfg *config.Config) {
		logger.SetLevel(cfg)
	})

	err := configwatcher.WatchConfig(ctx, a.Config.ConfigFile, config.LoadConfig, func(cfg *config.Config) {
		for _, callback := range a.configCallbacks {
			callback(cfg)
		}
	})
	if err != nil {
		logger.Log.Warn("Config hot reload disabled", zap.Error(err))
	}
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

	// release 模式下只有显式指定 -migrate 才执行迁移
	if cfg.Server.Mode != gin.ReleaseMode || cfg.ForceMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
		if err := database.Seed(db, &cfg.Seed); err != nil {
			logger.Log.Error("Failed to seed database", zap.Error(err))
		}
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// 缓存不是必需的，连接失败时直接访问 CMS
		logger.Log.Warn("Redis unavailable, CMS cache disabled", zap.Error(err))
		rdb = nil
	}
	app.Redis = rdb

	if err := middleware.RegisterValidators(); err != nil {
		logger.Log.Fatal("Failed to register validators", zap.Error(err))
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("tech-academy-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Error("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.registerRoutes(router, controllers, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel
	app.startBackgroundTasks(ctx, services)
	app.watchConfig(ctx)

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
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
