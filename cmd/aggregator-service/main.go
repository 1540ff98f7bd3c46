package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-news-aggregator/internal/aggregator/config"
	"golang-news-aggregator/internal/aggregator/dedup"
	"golang-news-aggregator/internal/aggregator/delivery/consumer"
	delivery "golang-news-aggregator/internal/aggregator/delivery/http"
	"golang-news-aggregator/internal/aggregator/pipeline"
	"golang-news-aggregator/internal/aggregator/queue"
	"golang-news-aggregator/internal/aggregator/repository"
	"golang-news-aggregator/internal/aggregator/service"
	"golang-news-aggregator/internal/aggregator/tags"
	"golang-news-aggregator/pkg/common"
	"golang-news-aggregator/pkg/logger"
	"golang-news-aggregator/pkg/metrics"
	"golang-news-aggregator/pkg/postgres"
	"golang-news-aggregator/pkg/redis"
	"golang-news-aggregator/pkg/telegram"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"google.golang.org/genai"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the aggregator service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Aggregator Service", logger.Field("name", cfg.App.Name))

	metrics.Init()

	// Initialize database
	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Initialize Redis
	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}
	defer redisClient.Close()

	// Create the consumer group if it doesn't exist
	// MKSTREAM creates the stream if it doesn't exist
	if err := redisClient.XGroupCreateMkStream(context.Background(), common.RedisStreamFeedFetch, common.RedisStreamGroup, "0").Err(); err != nil {
		if err.Error() != "BUSYGROUP Consumer Group name already exists" {
			appLogger.Fatal("Failed to create consumer group", logger.ErrorField(err))
		}
	}

	// Initialize repositories
	feedRepo := repository.NewFeedRepository(db.DB)
	articleRepo := repository.NewArticleRepository(db.DB)
	summaryRepo := repository.NewSummaryRepository(db.DB)
	tagRepo := repository.NewTagRepository(db.DB)
	fetchLogRepo := repository.NewFetchLogRepository(db.DB)
	feedReader := repository.NewFeedReaderRepository()
	contentRepo := repository.NewContentRepository(appLogger)

	// The tag prompt embeds the canonical taxonomy, so load it up front.
	allTags, err := tagRepo.FindAll(context.Background())
	if err != nil {
		appLogger.Fatal("Failed to load tag taxonomy", logger.ErrorField(err))
	}
	taxonomyNames := make([]string, 0, len(allTags))
	for _, t := range allTags {
		taxonomyNames = append(taxonomyNames, t.Name)
	}

	// Initialize AI repository
	genAiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.Gemini.APIKey,
	})
	if err != nil {
		appLogger.Fatal("Failed to initialize Gemini AI client", logger.ErrorField(err))
	}
	aiRepo, err := repository.NewGeminiAIRepository(cfg, appLogger, genAiClient, taxonomyNames)
	if err != nil {
		appLogger.Fatal("Failed to initialize Gemini AI repository", logger.ErrorField(err))
	}

	// Initialize Telegram notifier
	var notifier telegram.Notifier = telegram.NopNotifier{}
	if cfg.Telegram.Enabled {
		notifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram notifier", logger.ErrorField(err))
		}
	}

	// Initialize core components
	engine := dedup.NewEngine(articleRepo, appLogger, cfg.Dedup)
	workQueue := queue.New(cfg.Queue)
	resolver := tags.NewResolver(cfg.Tags)
	coordinator := pipeline.NewCoordinator(cfg.Pipeline, appLogger, articleRepo, summaryRepo, tagRepo, contentRepo, aiRepo, resolver, notifier)

	// Initialize services
	ingestSvc := service.NewIngestService(cfg, appLogger, redisClient.Client, feedRepo, articleRepo, fetchLogRepo, feedReader, engine, workQueue, notifier)
	adminSvc := service.NewAdminService(appLogger, feedRepo, articleRepo, tagRepo, fetchLogRepo, workQueue)
	schedulerSvc := service.NewSchedulerService(cfg, appLogger, redisClient.Client, feedRepo)
	workerSvc := service.NewWorkerService(cfg, appLogger, workQueue, articleRepo, feedRepo, tagRepo, coordinator)

	// Start background services
	go schedulerSvc.Start(ctx)
	workerSvc.Start(ctx)

	redisConsumer := consumer.NewRedisConsumer(cfg, ingestSvc, appLogger)
	redisConsumer.Start(ctx)

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	cycleHandler := delivery.NewCycleHandler(ingestSvc, appLogger)
	feedHandler := delivery.NewFeedHandler(adminSvc, appLogger)
	articleHandler := delivery.NewArticleHandler(adminSvc, appLogger)
	statsHandler := delivery.NewStatsHandler(adminSvc, appLogger)

	apiV1 := e.Group("/api/v1")
	cycleHandler.RegisterRoutes(apiV1.Group("/cycles"))
	feedHandler.RegisterRoutes(apiV1.Group("/feeds"))
	articleHandler.RegisterRoutes(apiV1.Group("/articles"))
	statsHandler.RegisterRoutes(apiV1.Group("/stats"))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop() // trigger shutdown
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	appLogger.Info("Shutting down aggregator service...")

	redisConsumer.Stop()
	workerSvc.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Aggregator service stopped.")
}

func main() {
	rootCmd := &cobra.Command{Use: "aggregator-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-aggregator.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing aggregator-service CLI: %s\n", err)
		os.Exit(1)
	}
}
