package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/insight_go_server/internal/api/middleware"
	"github.com/qs3c/insight_go_server/internal/model/dto"
	"github.com/qs3c/insight_go_server/internal/pkg/response"
	"github.com/qs3c/insight_go_server/internal/service"
)

type AnalysisHandler struct {
	analysisService *service.AnalysisService
}

func NewAnalysisHandler(analysisService *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
	}
}

// Create 创建或复用分析任务
// POST /api/v1/analyses
func (h *AnalysisHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CreateAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.analysisService.Create(c.Request.Context(), userID, &req)
	if err != nil {
		switch err {
		case service.ErrInvalidRepo:
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	if resp.Cached {
		response.SuccessWithMessage(c, "复用已有任务", resp)
		return
	}
	response.SuccessWithMessage(c, "创建成功", resp)
}

// Get 获取分析任务详情
// GET /api/v1/analyses/:id
func (h *AnalysisHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的任务ID")
		return
	}

	detail, err := h.analysisService.GetByID(c.Request.Context(), userID, jobID)
	if err != nil {
		switch err {
		case service.ErrJobNotFound:
			response.NotFoundError(c, err.Error())
		case service.ErrJobPermission:
			response.PermissionError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, detail)
}

// Lookup 按仓库查询当前用户最近一次任务
// GET /api/v1/analyses/lookup?owner=xxx&name=xxx
func (h *AnalysisHandler) Lookup(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	owner := c.Query("owner")
	name := c.Query("name")
	if owner == "" || name == "" {
		response.ParamError(c, "缺少 owner 或 name 参数")
		return
	}

	detail, err := h.analysisService.GetByRepo(c.Request.Context(), userID, owner, name)
	if err != nil {
		switch err {
		case service.ErrJobNotFound:
			response.NotFoundError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, detail)
}
