package main

import (
	"context"
	"fmt"
	"log"

	"github.com/qs3c/insight_go_server/config"
	"github.com/qs3c/insight_go_server/internal/api"
	"github.com/qs3c/insight_go_server/internal/api/handler"
	"github.com/qs3c/insight_go_server/internal/database"
	"github.com/qs3c/insight_go_server/internal/pkg/cache"
	"github.com/qs3c/insight_go_server/internal/pkg/github"
	"github.com/qs3c/insight_go_server/internal/pkg/pubsub"
	"github.com/qs3c/insight_go_server/internal/pkg/queue"
	"github.com/qs3c/insight_go_server/internal/pkg/ws"
	"github.com/qs3c/insight_go_server/internal/repository"
	"github.com/qs3c/insight_go_server/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 初始化 Queue 与快存
	jobQueue := queue.NewQueue(rdb, cfg.Queue.AnalysisQueue)
	fast := cache.NewRedisStore(rdb)

	// 初始化 WebSocket Hub
	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	// 订阅 worker 侧进度事件，转发给在线用户
	subscriber := pubsub.NewSubscriber(rdb)
	go func() {
		err := subscriber.Subscribe(context.Background(), func(msg *pubsub.ProgressMessage) {
			if !wsHub.IsOnline(msg.UserID) {
				return
			}
			if err := wsHub.SendToUser(msg.UserID, &ws.Event{
				Type: msg.Type,
				Data: msg,
			}); err != nil {
				log.Printf("Failed to forward progress to user %d: %v", msg.UserID, err)
			}
		})
		if err != nil {
			log.Printf("Progress subscriber stopped: %v", err)
		}
	}()

	// 初始化 Repository
	jobRepo := repository.NewJobRepository(db)
	historyRepo := repository.NewHistoryRepository(db)

	// 初始化 Service
	ghClient := github.NewClient(&cfg.Github)
	analysisService := service.NewAnalysisService(jobRepo, jobQueue, fast, cfg)
	historyService := service.NewHistoryService(historyRepo, fast, ghClient)

	// 初始化 Handler
	analysisHandler := handler.NewAnalysisHandler(analysisService)
	historyHandler := handler.NewHistoryHandler(historyService)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret)

	// 初始化 Router
	router := api.NewRouter(
		analysisHandler,
		historyHandler,
		websocketHandler,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
