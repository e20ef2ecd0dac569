package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/api"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/api/handler"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/api/middleware"
	appconfig "github.com/ahmad786writes/AI-Competitor-Insight-Engine/config"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/cache"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/chart"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/database"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/document"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/embedding"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/llm"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/repository"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/services"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/internal/vectordb"
	"github.com/ahmad786writes/AI-Competitor-Insight-Engine/pkg/storage"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Server port (overrides config)")
	flag.Parse()

	cfg, err := appconfig.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	gin.SetMode(cfg.Server.Mode)

	logger := middleware.ConfigureLogger(middleware.LogOptions{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	logger.Info("Starting competitor insight engine...")

	ctx := context.Background()

	var opts []services.InsightOption
	opts = append(opts, services.WithLogger(logger))

	// 历史数据库
	var db *gorm.DB
	if cfg.Database.Enable {
		db, err = setupDatabase(cfg, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize database: %v", err)
		}
		defer database.Close(db)
		opts = append(opts, services.WithHistory(repository.NewHistoryRepository(db)))
	}

	// 工作簿归档
	if cfg.Storage.Enable {
		fileStorage, err := setupStorage(ctx, cfg)
		if err != nil {
			logger.Fatalf("Failed to initialize storage: %v", err)
		}
		opts = append(opts, services.WithStorage(fileStorage))
	}

	// 回答缓存
	if cfg.Cache.Enable {
		answerCache, err := setupCache(cfg)
		if err != nil {
			logger.Fatalf("Failed to initialize cache: %v", err)
		}
		defer answerCache.Close()
		opts = append(opts, services.WithAnswerCache(answerCache, cfg.Cache.TTL))
	}

	embeddingClient, err := setupEmbedding(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize embedding client: %v", err)
	}
	logger.WithFields(logrus.Fields{
		"provider":   cfg.Embed.Provider,
		"model":      embeddingClient.Name(),
		"dimensions": embeddingClient.Dimensions(),
	}).Info("Embedding client ready")

	llmClient, err := setupLLM(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize completion client: %v", err)
	}

	splitter, err := document.NewTextSplitter(document.SplitterConfig{
		ChunkSize:    cfg.Document.ChunkSize,
		ChunkOverlap: cfg.Document.ChunkOverlap,
	})
	if err != nil {
		logger.Fatalf("Invalid chunking configuration: %v", err)
	}

	builder := services.NewIndexBuilder(splitter, embeddingClient, services.IndexBuilderConfig{
		IndexType:    cfg.VectorDB.Type,
		DistanceType: vectordb.DistanceType(cfg.VectorDB.Distance),
		BatchSize:    cfg.Embed.BatchSize,
		Workers:      cfg.Embed.Workers,
	}, logger)

	charts := chart.NewExecutor(chart.Config{
		Enabled:        cfg.Chart.Enabled,
		Interpreter:    cfg.Chart.Interpreter,
		Timeout:        cfg.Chart.Timeout,
		MaxOutputBytes: cfg.Chart.MaxOutputKB << 10,
		TempDir:        cfg.Chart.TempDir,
	}, logger)

	maxUploadBytes := int64(cfg.Document.MaxUploadMB) << 20
	opts = append(opts,
		services.WithChartExecutor(charts),
		services.WithMaxUploadBytes(maxUploadBytes),
	)
	if len(cfg.Document.Denylist) > 0 {
		opts = append(opts, services.WithNormalizerOptions(document.WithDenylist(cfg.Document.Denylist...)))
	}

	sessions := services.NewSessionManager(cfg.Session.TTL, logger)
	defer sessions.Close()

	insight := services.NewInsightService(
		sessions,
		builder,
		services.NewRetriever(embeddingClient, cfg.Search.RetrievalK),
		llmClient,
		llm.NewPromptBuilder(cfg.LLM.SummaryLimit),
		opts...,
	)

	router := api.SetupRouter(handler.NewSessionHandler(insight, maxUploadBytes))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 优雅关闭
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":      srv.Addr,
			"llm":       llmClient.Name(),
			"embedding": embeddingClient.Name(),
			"index":     cfg.VectorDB.Type,
			"k":         cfg.Search.RetrievalK,
		}).Info("Server is running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// setupDatabase 打开历史数据库
func setupDatabase(cfg *appconfig.Config, logger *logrus.Logger) (*gorm.DB, error) {
	dbConfig := database.DefaultConfig()
	dbConfig.Type = cfg.Database.Type
	if cfg.Database.DSN != "" {
		dbConfig.DSN = cfg.Database.DSN
	}
	return database.Open(dbConfig, logger)
}

// setupStorage 设置工作簿归档存储
func setupStorage(ctx context.Context, cfg *appconfig.Config) (storage.Storage, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return storage.New(ctx, storage.Config{
		Type:  cfg.Storage.Type,
		Local: storage.LocalConfig{Path: cfg.Storage.Path},
		Minio: storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
		},
	})
}

// setupCache 设置回答缓存
func setupCache(cfg *appconfig.Config) (cache.Cache, error) {
	return cache.NewCache(cache.Config{
		Type:            cfg.Cache.Type,
		RedisAddr:       cfg.Cache.Address,
		RedisPassword:   cfg.Cache.Password,
		RedisDB:         cfg.Cache.DB,
		KeyPrefix:       cfg.Cache.Prefix,
		DefaultTTL:      cfg.Cache.TTL,
		CleanupInterval: 10 * time.Minute,
	})
}

// setupEmbedding 设置嵌入客户端，建索引和检索必须使用同一个
func setupEmbedding(cfg *appconfig.Config) (embedding.Client, error) {
	opts := []embedding.Option{
		embedding.WithDimensions(cfg.Embed.Dimensions),
	}
	if cfg.Embed.Model != "" {
		opts = append(opts, embedding.WithModel(cfg.Embed.Model))
	}
	if cfg.Embed.Endpoint != "" {
		opts = append(opts, embedding.WithBaseURL(cfg.Embed.Endpoint))
	}
	if cfg.Embed.Timeout > 0 {
		opts = append(opts, embedding.WithTimeout(cfg.Embed.Timeout))
	}
	if cfg.Embed.Provider == "openai" {
		opts = append(opts, embedding.WithAPIKey(cfg.Embed.APIKey))
	}
	return embedding.NewClient(cfg.Embed.Provider, opts...)
}

// setupLLM 设置补全客户端
func setupLLM(cfg *appconfig.Config) (llm.Client, error) {
	if cfg.LLM.APIKey == "" {
		return nil, errors.New("llm.api_key (or GROQ_API_KEY) is required")
	}

	opts := []llm.Option{
		llm.WithAPIKey(cfg.LLM.APIKey),
		llm.WithTimeout(cfg.LLM.Timeout),
		llm.WithMaxRetries(cfg.LLM.MaxRetries),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithTemperature(cfg.LLM.Temperature),
	}
	// 其他提供方不继承Groq的默认端点和模型
	groq, _ := llm.LookupProvider(llm.ProviderGroq)
	inherit := cfg.LLM.Provider == llm.ProviderGroq
	if cfg.LLM.Endpoint != "" && (inherit || cfg.LLM.Endpoint != groq.Endpoint) {
		opts = append(opts, llm.WithBaseURL(cfg.LLM.Endpoint))
	}
	if cfg.LLM.Model != "" && (inherit || cfg.LLM.Model != groq.Model) {
		opts = append(opts, llm.WithModel(cfg.LLM.Model))
	}
	return llm.NewClient(cfg.LLM.Provider, opts...)
}
