package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"novel-runtime/internal/config"
	"novel-runtime/internal/delivery"
	"novel-runtime/internal/generator"
	"novel-runtime/internal/handler"
	"novel-runtime/internal/plan"
	"novel-runtime/internal/script"
	"novel-runtime/internal/state"
	"novel-runtime/internal/warmup"
	sharedLogger "novel-runtime/shared/logger"
	sharedMiddleware "novel-runtime/shared/middleware"

	rateli "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	log.Println("Запуск Novel Runtime...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger, err := sharedLogger.New(sharedLogger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		log.Fatalf("Не удалось инициализировать логгер: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	cfg.LogSummary(logger)

	// --- Компоненты ядра ---
	plans := plan.NewStore(plan.NewFileSource(cfg.GamesDirs, logger), logger)
	tracker := state.NewTracker(logger)

	aiClient, err := generator.NewAIClient(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create AI client", zap.Error(err))
	}
	attemptLog := generator.NewFileAttemptLog(cfg.RuntimeLogDir, cfg.RuntimeLogAppend, logger)
	defer func() {
		if err := attemptLog.Close(); err != nil {
			logger.Warn("Failed to close attempt log", zap.Error(err))
		}
	}()

	gen := generator.New(aiClient, attemptLog, generator.Config{
		Limits:              script.Limits{MinLines: cfg.SliceMinLines, MaxLines: cfg.SliceMaxLines},
		Temperature:         cfg.AITemperature,
		FreeformTemperature: cfg.AIFreeformTemperature,
		MaxTokens:           cfg.AIMaxTokens,
		AttemptTimeout:      cfg.AITimeout,
		PreviewChars:        cfg.RuntimeLogPreview,
	}, logger)

	slices := delivery.NewService(plans, tracker, gen, delivery.Config{
		TTL:           cfg.CacheTTL,
		DefaultDepth:  cfg.PrefetchDepth,
		Concurrency:   cfg.PrefetchConcurrency,
		Workers:       cfg.PrefetchWorkers,
		QueueSize:     cfg.PrefetchQueue,
		SweepInterval: time.Minute,
	}, logger)

	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()
	slices.Start(appCtx)

	bootstrapper := warmup.New(plans, slices, logger)
	if cfg.WarmupOnStart {
		go func() {
			reports := bootstrapper.WarmAll(appCtx)
			logger.Info("Startup warmup finished", zap.Int("stories", len(reports)))
		}()
	}

	// --- HTTP (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(sharedMiddleware.ZapLoggingMiddlewareForGin(logger))
	router.Use(gin.Recovery())

	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSAllowedOrigins) == 0 || (len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", handler.SessionHeader}
	corsConfig.ExposeHeaders = []string{handler.SessionHeader}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// bootstrap синхронно генерирует несколько слайсов, ограничиваем частоту по IP
	bootstrapLimiter := rateli.RateLimiter(
		rateli.InMemoryStore(&rateli.InMemoryOptions{Rate: time.Minute, Limit: cfg.BootstrapRateLimit}),
		&rateli.Options{
			ErrorHandler: func(c *gin.Context, info rateli.Info) {
				logger.Warn("Bootstrap rate limit exceeded",
					zap.String("clientIP", c.ClientIP()),
					zap.Time("resetTime", info.ResetTime),
				)
				c.String(http.StatusTooManyRequests, "Too many requests. Try again in "+time.Until(info.ResetTime).String())
			},
			KeyFunc: func(c *gin.Context) string { return c.ClientIP() },
		},
	)

	handler.NewRuntimeHandler(slices, bootstrapper, plans, logger).RegisterRoutes(router, bootstrapLimiter)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// генерация слайса может занять несколько попыток по AI_TIMEOUT
		WriteTimeout: 4*cfg.AITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("Starting HTTP server", zap.String("port", cfg.Port))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP Server listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP Server forced to shutdown", zap.Error(err))
	}

	cancelApp()
	slices.Stop()
	logger.Info("Server exiting")
}
