// Package main 是问答服务的入口点。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"legal-rag-go/internal/config"
	"legal-rag-go/internal/corpus"
	"legal-rag-go/internal/handler"
	"legal-rag-go/internal/repository"
	"legal-rag-go/internal/service"
	"legal-rag-go/pkg/database"
	"legal-rag-go/pkg/embedding"
	"legal-rag-go/pkg/llm"
	"legal-rag-go/pkg/log"
	"legal-rag-go/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// 0. 读取 .env（不存在时忽略），供本地开发设置 GCP_PROJECT 等变量
	_ = godotenv.Load()

	// 1. 初始化配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}
	config.Init(configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 可选：从 MinIO 拉取索引产物
	if cfg.Index.FetchOnStart {
		fetchArtifacts(ctx, cfg)
	}

	// 4. 加载索引快照；失败时服务照常启动，问答请求返回 embeddings_unavailable
	var snap *corpus.Corpus
	if loaded, err := corpus.Load(cfg.Index.IndexPath, cfg.Index.MetadataPath, cfg.Embedding.Dimensions); err != nil {
		log.Errorf("[config_error] 索引加载失败，/chat 将返回 503 直到索引可用: %v", err)
	} else {
		snap = loaded
		log.Infof("索引加载成功, 文档数 %d, 维度 %d", snap.Len(), snap.Dim())
	}
	holder := corpus.NewHolder(snap)

	if cfg.Index.Watch {
		watcher := corpus.NewWatcher(holder, cfg.Index.IndexPath, cfg.Index.MetadataPath, cfg.Embedding.Dimensions)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				log.Errorf("索引文件监听退出: %v", err)
			}
		}()
	}

	// 5. 可选：Redis 对话历史与 MySQL 查询审计
	var conversationService service.ConversationService
	if cfg.Database.Redis.Addr != "" {
		rdb, err := database.InitRedis(ctx, cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
		if err != nil {
			log.Errorf("Redis 不可用，对话历史已禁用: %v", err)
		} else {
			defer rdb.Close()
			conversationService = service.NewConversationService(repository.NewConversationRepository(rdb))
		}
	}

	var queryLogRepo repository.QueryLogRepository
	var queryLogService service.QueryLogService
	if cfg.Database.MySQL.DSN != "" {
		db, err := database.InitMySQL(cfg.Database.MySQL.DSN)
		if err != nil {
			log.Errorf("MySQL 不可用，查询审计已禁用: %v", err)
		} else {
			queryLogRepo = repository.NewQueryLogRepository(db)
			queryLogService = service.NewQueryLogService(queryLogRepo)
		}
	}

	// 6. 初始化 Service (依赖注入)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	generator := llm.NewVertexGateway(cfg.LLM, nil)
	if cfg.LLM.MockMode {
		log.Warnf("开发 mock 模式已开启：生成服务鉴权失败时返回 mock 回答")
	}
	answerService := service.NewAnswerService(
		holder,
		service.NewRetriever(embeddingClient),
		generator,
		conversationService,
		queryLogRepo,
		service.AnswerOptions{
			TopK:              cfg.Retrieval.TopK,
			DistanceThreshold: cfg.Retrieval.DistanceThreshold,
			MockMode:          cfg.LLM.MockMode,
			Generation: llm.Params{
				MaxTokens:   cfg.LLM.Generation.MaxTokens,
				Temperature: cfg.LLM.Generation.Temperature,
			},
		},
	)
	log.Infof("检索配置: top_k=%d, distance_threshold=%.4f", cfg.Retrieval.TopK, cfg.Retrieval.DistanceThreshold)

	// 7. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(handler.Handlers{
		Chat:         handler.NewChatHandler(answerService),
		Health:       handler.NewHealthHandler(holder),
		Conversation: handler.NewConversationHandler(conversationService),
		QueryLog:     handler.NewQueryLogHandler(queryLogService),
	})

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	<-ctx.Done()
	log.Info("接收到停机信号，正在关闭服务...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}

// fetchArtifacts 从对象存储拉取索引与元数据，失败时沿用本地文件。
func fetchArtifacts(ctx context.Context, cfg config.Config) {
	store, err := storage.NewArtifactStore(ctx, cfg.MinIO)
	if err != nil {
		log.Errorf("MinIO 不可用，使用本地索引文件: %v", err)
		return
	}
	if err := store.FetchPair(ctx, cfg.Index.IndexPath, cfg.Index.MetadataPath); err != nil {
		log.Errorf("拉取索引产物失败，使用本地索引文件: %v", err)
	}
}
