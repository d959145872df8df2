package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/insight_go_server/internal/model/dto"
	"github.com/qs3c/insight_go_server/internal/pkg/response"
	"github.com/qs3c/insight_go_server/internal/service"
)

type HistoryHandler struct {
	historyService *service.HistoryService
}

func NewHistoryHandler(historyService *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{
		historyService: historyService,
	}
}

// Get 获取提交历史（两级缓存）
// GET /api/v1/repos/:owner/:repo/history?branch=main&per_page=50&force_refresh=false
func (h *HistoryHandler) Get(c *gin.Context) {
	req := &dto.HistoryRequest{
		Owner:  c.Param("owner"),
		Repo:   c.Param("repo"),
		Branch: c.Query("branch"),
	}

	if perPage := c.Query("per_page"); perPage != "" {
		n, err := strconv.Atoi(perPage)
		if err != nil || n < 1 || n > 100 {
			response.ParamError(c, "per_page 必须是 1-100 的整数")
			return
		}
		req.PerPage = n
	}

	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			response.ParamError(c, "since 必须是 RFC3339 时间")
			return
		}
		req.Since = &t
	}

	req.ForceRefresh = c.Query("force_refresh") == "true"

	resp, err := h.historyService.Get(c.Request.Context(), req)
	if err != nil {
		switch err {
		case service.ErrHistoryParam:
			response.ParamError(c, err.Error())
		default:
			response.UpstreamError(c, err.Error())
		}
		return
	}

	response.Success(c, resp)
}
