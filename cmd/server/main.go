package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newsimpact/internal/app"
	"newsimpact/internal/bot"
	"newsimpact/internal/cache"
	"newsimpact/internal/config"
	"newsimpact/internal/db"
	"newsimpact/internal/handler"
	"newsimpact/internal/job"
	"newsimpact/internal/store"
	"newsimpact/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "newsimpact/docs"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	buildAppFunc           = app.Build
	startPipelineJobFunc   = func(j *job.PipelineJob, ctx context.Context) { go j.Start(ctx) }
	startTelegramBotFunc   = bot.StartTelegramBot
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           News Impact API
// @version         1.0
// @description     Financial news enrichment and market impact verdicts.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis. Both are optional.
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	defer db.Close()

	var redisClient cache.RedisClient
	if err := initRedisFunc(ctx); err != nil {
		log.Printf("Warning: %v, using in-memory caches", err)
	} else if cache.Client != nil {
		redisClient = cache.Client
	}

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	var pool store.PgxPool
	if db.Pool != nil {
		pool = db.Pool
	}
	a, err := buildAppFunc(ctx, cfg, tracer, pool, redisClient)
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}

	// Scheduled runs (stopped by ctx cancel)
	pipelineJob := job.NewPipelineJob(tracer, a.Pipeline, time.Duration(cfg.PipelineIntervalMins)*time.Minute, a.Lookback)
	startPipelineJobFunc(pipelineJob, ctx)

	// Start Telegram bot
	os.Setenv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	startTelegramBotFunc(a.Store, a.Resolver)

	// Create handlers and routes
	h := newHandlerFunc(tracer, a.Store, a.Resolver)
	h.SetPipelineRunner(a.Pipeline, a.Lookback)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("newsimpact"))

	h.RegisterRoutes(r, cfg.APIKey)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
