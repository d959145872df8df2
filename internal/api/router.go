package api

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/insight_go_server/config"
	"github.com/qs3c/insight_go_server/internal/api/handler"
	"github.com/qs3c/insight_go_server/internal/api/middleware"
)

type Router struct {
	analysisHandler  *handler.AnalysisHandler
	historyHandler   *handler.HistoryHandler
	websocketHandler *handler.WebSocketHandler
	cfg              *config.Config
}

func NewRouter(
	analysisHandler *handler.AnalysisHandler,
	historyHandler *handler.HistoryHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		analysisHandler:  analysisHandler,
		historyHandler:   historyHandler,
		websocketHandler: websocketHandler,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		// WebSocket
		api.GET("/ws", r.websocketHandler.Handle)

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			// 分析任务
			analyses := authenticated.Group("/analyses")
			{
				analyses.POST("", r.analysisHandler.Create)
				analyses.GET("/lookup", r.analysisHandler.Lookup)
				analyses.GET("/:id", r.analysisHandler.Get)
			}

			// 提交历史
			authenticated.GET("/repos/:owner/:repo/history", r.historyHandler.Get)
		}
	}

	return engine
}
