package dto

import (
	"github.com/qs3c/insight_go_server/internal/model"
)

// CreateAnalysisRequest 创建/复用分析任务
type CreateAnalysisRequest struct {
	Owner        string `json:"owner" binding:"required"`
	Name         string `json:"name" binding:"required"`
	RepositoryID int64  `json:"repository_id" binding:"required"`
	Branch       string `json:"branch"`
	MaxFileSize  *int64 `json:"max_file_size"`
	MaxFiles     *int   `json:"max_files"`
	IncludeTests bool   `json:"include_tests"`
	IncludeDocs  bool   `json:"include_docs"`
	ForceRestart bool   `json:"force_restart"`
}

// CreateAnalysisResponse cached=true 表示复用了已有任务，没有新建
type CreateAnalysisResponse struct {
	AnalysisID int64  `json:"analysis_id"`
	Status     string `json:"status"`
	Cached     bool   `json:"cached"`
}

// JobDetail 任务详情。summary/metrics/file_index 仅在 completed 时返回。
type JobDetail struct {
	ID           int64  `json:"id"`
	RepositoryID int64  `json:"repository_id"`
	Owner        string `json:"owner"`
	Name         string `json:"name"`
	FullName     string `json:"full_name"`
	Branch       string `json:"branch"`
	Status       string `json:"status"`
	CurrentStep  string `json:"current_step,omitempty"`

	Summary    *string               `json:"summary,omitempty"`
	Metrics    *model.Metrics        `json:"metrics,omitempty"`
	FileIndex  []model.FileIndexEntry `json:"file_index,omitempty"`
	DurationMs int64                 `json:"duration_ms,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`
	FailedAt     string `json:"failed_at,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}
