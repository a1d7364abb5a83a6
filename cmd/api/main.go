package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/casedeck/casedeck-backend/internal/config"
	"github.com/casedeck/casedeck-backend/internal/handler"
	"github.com/casedeck/casedeck-backend/internal/middleware"
	"github.com/casedeck/casedeck-backend/internal/migration"
	"github.com/casedeck/casedeck-backend/internal/repository"
	"github.com/casedeck/casedeck-backend/internal/routes"
	"github.com/casedeck/casedeck-backend/internal/service"
	pkgcache "github.com/casedeck/casedeck-backend/pkg/cache"
	"github.com/casedeck/casedeck-backend/pkg/jwt"
	pkglogger "github.com/casedeck/casedeck-backend/pkg/logger"
	pkgredis "github.com/casedeck/casedeck-backend/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// getConfigPath returns config file path based on APP_ENV environment variable
func getConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

func main() {
	dotenvFiles := config.LoadDotEnv()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.InitStructured(env)
	pkglogger.Info("APP_ENV=%s, loaded env files: %v", env, dotenvFiles)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// MySQL
	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	pkglogger.Info("Connected to MySQL")
	if err := migration.Run(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	// Redis (optional: the engine works without the cache mirror)
	redisClient, err := pkgredis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
	)
	var cacheService pkgcache.Service
	if err != nil {
		pkglogger.Warn("Failed to connect to Redis: %v (continuing without cache)", err)
	} else {
		cacheService = pkgcache.NewService(redisClient)
		pkglogger.Info("Connected to Redis")
	}

	// JWT manager
	jwtManager := jwt.NewManager(cfg.JWT.Secret, time.Duration(cfg.JWT.TokenTTLMin)*time.Minute)

	// Repositories
	caseStudyRepo := repository.NewCaseStudyRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	jobRepo := repository.NewJobRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	// Services
	ledger := service.NewVersionService(db, caseStudyRepo, versionRepo, cfg.Versioning.RetentionWindow)
	lifecycleSvc := service.NewLifecycleService(db, caseStudyRepo, ledger, cacheService)
	caseStudySvc := service.NewCaseStudyService(db, caseStudyRepo, ledger, cacheService)
	propagationSvc := service.NewPropagationService(db, caseStudyRepo, jobRepo, ledger, cacheService, cfg.Propagation.ProgressBatchSize)
	settingSvc := service.NewSettingService(settingRepo, propagationSvc, cacheService)

	// Handlers
	caseStudyHandler := handler.NewCaseStudyHandler(caseStudySvc, lifecycleSvc, ledger)
	jobHandler := handler.NewJobHandler(propagationSvc)
	settingHandler := handler.NewSettingHandler(settingSvc)

	// Router
	if env != "local" && env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		ExposeHeaders:    []string{"X-Request-ID"},
		MaxAge:           86400,
	}))

	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "casedeck-backend",
			"time":    time.Now().Unix(),
		})
	})

	routes.Setup(router, caseStudyHandler, jobHandler, settingHandler, jwtManager)

	addr := fmt.Sprintf(":%d", cfg.App.Port)
	pkglogger.Info("Server listening on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	propagationSvc.Wait()
}

// initDB opens the MySQL connection
func initDB(cfg *config.Config) (*gorm.DB, error) {
	mysqlCfg, err := mysqldriver.ParseDSN(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	if mysqlCfg.Params == nil {
		mysqlCfg.Params = map[string]string{}
	}

	db, err := gorm.Open(mysql.Open(mysqlCfg.FormatDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}
