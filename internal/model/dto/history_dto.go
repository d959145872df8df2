package dto

import (
	"time"

	"github.com/qs3c/insight_go_server/internal/model"
)

// HistoryRequest 提交历史查询
type HistoryRequest struct {
	Owner        string
	Repo         string
	Branch       string
	PerPage      int
	Since        *time.Time
	ForceRefresh bool
}

// HistoryResponse source 标记命中层级：redis / database / github
type HistoryResponse struct {
	Commits       []model.Commit      `json:"commits"`
	Branches      []model.Branch      `json:"branches"`
	Repository    string              `json:"repository"`
	Branch        string              `json:"branch"`
	DefaultBranch string              `json:"default_branch"`
	Count         int                 `json:"count"`
	Contributors  []model.Contributor `json:"contributors"`
	TrendPercent  int                 `json:"trend_percent"`
	Cached        bool                `json:"cached"`
	Source        string              `json:"source"`
	FetchedAt     string              `json:"fetched_at"`
}
