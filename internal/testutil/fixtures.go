package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/insight_go_server/internal/model"
)

// TestJob 创建测试任务
func TestJob(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.AnalysisJob)) *model.AnalysisJob {
	t.Helper()

	job := &model.AnalysisJob{
		RepositoryID: time.Now().UnixNano() % 100000,
		Owner:        "octocat",
		Name:         fmt.Sprintf("repo_%d", time.Now().UnixNano()%10000),
		Branch:       "main",
		UserID:       userID,
		MaxFileSize:  100 * 1024,
		MaxFiles:     200,
		Status:       model.JobStatusPending,
	}
	job.FullName = job.Owner + "/" + job.Name

	for _, opt := range opts {
		opt(job)
	}

	if err := db.Create(job).Error; err != nil {
		t.Fatalf("Failed to create test job: %v", err)
	}

	return job
}

// WithRepo 设置仓库
func WithRepo(owner, name string) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		j.Owner = owner
		j.Name = name
		j.FullName = owner + "/" + name
	}
}

// WithStatus 设置状态
func WithStatus(status string) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		j.Status = status
	}
}

// WithBranch 设置分支
func WithBranch(branch string) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		j.Branch = branch
	}
}

// WithBudget 设置资源预算
func WithBudget(maxFileSize int64, maxFiles int) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		j.MaxFileSize = maxFileSize
		j.MaxFiles = maxFiles
	}
}

// TouchJob 把任务的 updated_at 拨到指定时间，用于构造闲置任务
func TouchJob(t *testing.T, db *gorm.DB, jobID int64, at time.Time) {
	t.Helper()

	if err := db.Model(&model.AnalysisJob{}).Where("id = ?", jobID).
		UpdateColumn("updated_at", at).Error; err != nil {
		t.Fatalf("Failed to touch test job: %v", err)
	}
}

// BackdateJob 把任务的 created_at 拨到指定时间，用于构造过期结果
func BackdateJob(t *testing.T, db *gorm.DB, jobID int64, at time.Time) {
	t.Helper()

	if err := db.Model(&model.AnalysisJob{}).Where("id = ?", jobID).
		UpdateColumn("created_at", at).Error; err != nil {
		t.Fatalf("Failed to backdate test job: %v", err)
	}
}

// TestHistory 创建持久层提交历史记录
func TestHistory(t *testing.T, db *gorm.DB, owner, repo, branch string, opts ...func(*model.GitHistoryCache)) *model.GitHistoryCache {
	t.Helper()

	entry := &model.GitHistoryCache{
		Owner:  owner,
		Repo:   repo,
		Branch: branch,
		Commits: model.CommitList{
			{SHA: "abc123", Message: "initial commit", Author: "octocat", Date: time.Now().Add(-time.Hour)},
		},
		Branches: model.BranchList{
			{Name: branch, SHA: "abc123"},
		},
		DefaultBranch: branch,
		FetchedAt:     time.Now(),
	}

	for _, opt := range opts {
		opt(entry)
	}

	if err := db.Create(entry).Error; err != nil {
		t.Fatalf("Failed to create test history: %v", err)
	}

	return entry
}

// WithFetchedAt 设置回源时间，用于构造过期记录
func WithFetchedAt(at time.Time) func(*model.GitHistoryCache) {
	return func(e *model.GitHistoryCache) {
		e.FetchedAt = at
	}
}

// WithCommits 设置提交列表
func WithCommits(commits model.CommitList) func(*model.GitHistoryCache) {
	return func(e *model.GitHistoryCache) {
		e.Commits = commits
	}
}
