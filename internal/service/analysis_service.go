package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/insight_go_server/config"
	"github.com/qs3c/insight_go_server/internal/model"
	"github.com/qs3c/insight_go_server/internal/model/dto"
	"github.com/qs3c/insight_go_server/internal/pkg/cache"
	"github.com/qs3c/insight_go_server/internal/pkg/queue"
	"github.com/qs3c/insight_go_server/internal/repository"
)

var (
	ErrJobNotFound   = errors.New("分析任务不存在")
	ErrJobPermission = errors.New("无权访问此分析任务")
	ErrInvalidRepo   = errors.New("仓库信息不完整")
)

// 复用窗口。completed 结果 24 小时内直接复用；
// 非终态任务 10 分钟无心跳视为卡死，回收后重建。
const (
	CompletedReuseWindow = 24 * time.Hour
	StuckThreshold       = 10 * time.Minute
)

// AnalysisService 任务状态机的拥有者：创建/复用/卡死回收，执行交给 worker
type AnalysisService struct {
	jobRepo  *repository.JobRepository
	jobQueue *queue.Queue
	fast     cache.Store
	cfg      *config.Config
}

func NewAnalysisService(
	jobRepo *repository.JobRepository,
	jobQueue *queue.Queue,
	fast cache.Store,
	cfg *config.Config,
) *AnalysisService {
	return &AnalysisService{
		jobRepo:  jobRepo,
		jobQueue: jobQueue,
		fast:     fast,
		cfg:      cfg,
	}
}

func jobCacheKey(id int64) string {
	return fmt.Sprintf("analysis_job:%d", id)
}

// Create 创建或复用分析任务。请求同步返回任务 ID，执行在 worker 侧异步进行。
func (s *AnalysisService) Create(ctx context.Context, userID int64, req *dto.CreateAnalysisRequest) (*dto.CreateAnalysisResponse, error) {
	if req.Owner == "" || req.Name == "" || req.RepositoryID == 0 {
		return nil, ErrInvalidRepo
	}
	if req.Branch == "" {
		req.Branch = "main"
	}

	if !req.ForceRestart {
		if resp, reused, err := s.tryReuse(req.Owner, req.Name, userID); err != nil {
			return nil, err
		} else if reused {
			return resp, nil
		}
	}

	job := &model.AnalysisJob{
		RepositoryID: req.RepositoryID,
		Owner:        req.Owner,
		Name:         req.Name,
		FullName:     req.Owner + "/" + req.Name,
		Branch:       req.Branch,
		UserID:       userID,
		MaxFileSize:  s.cfg.Analysis.MaxFileSize,
		MaxFiles:     s.cfg.Analysis.MaxFiles,
		IncludeTests: req.IncludeTests,
		IncludeDocs:  req.IncludeDocs,
		Status:       model.JobStatusPending,
	}
	if req.MaxFileSize != nil && *req.MaxFileSize > 0 {
		job.MaxFileSize = *req.MaxFileSize
	}
	if req.MaxFiles != nil && *req.MaxFiles > 0 {
		job.MaxFiles = *req.MaxFiles
	}

	if err := s.jobRepo.Create(job); err != nil {
		return nil, err
	}

	if err := s.jobQueue.Push(ctx, &queue.JobMessage{
		JobID:  job.ID,
		UserID: userID,
		Owner:  job.Owner,
		Name:   job.Name,
		Branch: job.Branch,
	}); err != nil {
		// 入队失败的任务永远不会被执行，直接落成 failed
		s.jobRepo.Fail(job.ID, "任务入队失败", err.Error(), 0)
		return nil, err
	}

	return &dto.CreateAnalysisResponse{
		AnalysisID: job.ID,
		Status:     job.Status,
		Cached:     false,
	}, nil
}

// tryReuse 复用规则：completed 且 24h 内 → 复用；非终态且 10min 内有心跳 → 复用；
// 非终态且闲置超阈值 → 回收成 failed 后新建；failed / 过期 completed → 新建。
func (s *AnalysisService) tryReuse(owner, name string, userID int64) (*dto.CreateAnalysisResponse, bool, error) {
	prior, err := s.jobRepo.GetLatestByRepo(owner, name, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	now := time.Now()
	switch prior.Status {
	case model.JobStatusCompleted:
		if now.Sub(prior.CreatedAt) < CompletedReuseWindow {
			return &dto.CreateAnalysisResponse{
				AnalysisID: prior.ID,
				Status:     prior.Status,
				Cached:     true,
			}, true, nil
		}

	case model.JobStatusPending, model.JobStatusAnalyzing:
		if now.Sub(prior.UpdatedAt) < StuckThreshold {
			return &dto.CreateAnalysisResponse{
				AnalysisID: prior.ID,
				Status:     prior.Status,
				Cached:     true,
			}, true, nil
		}

		// 卡死回收。条件更新，并发请求里只有一个会成功，失败方照样新建。
		reclaimed, err := s.jobRepo.MarkStuckFailed(prior.ID, now.Add(-StuckThreshold),
			fmt.Sprintf("分析超时：任务闲置超过 %d 分钟", int(StuckThreshold.Minutes())))
		if err != nil {
			return nil, false, err
		}
		if reclaimed {
			log.Printf("Job %d: reclaimed stuck job for %s/%s", prior.ID, owner, name)
		}
	}

	return nil, false, nil
}

// GetByID 查询任务详情，completed 任务的详情带 30 分钟快存
func (s *AnalysisService) GetByID(ctx context.Context, userID, jobID int64) (*dto.JobDetail, error) {
	var job model.AnalysisJob
	hit, err := cache.GetJSON(ctx, s.fast, jobCacheKey(jobID), &job)
	if err != nil {
		log.Printf("Job %d: cache read failed: %v", jobID, err)
	}

	if !hit {
		loaded, err := s.jobRepo.GetByID(jobID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrJobNotFound
			}
			return nil, err
		}
		job = *loaded

		// 只缓存终态里稳定的 completed 记录
		if job.Status == model.JobStatusCompleted {
			if err := cache.SetJSON(ctx, s.fast, jobCacheKey(jobID), &job, cache.FastTTL); err != nil {
				log.Printf("Job %d: cache write failed: %v", jobID, err)
			}
		}
	}

	if job.UserID != userID {
		return nil, ErrJobPermission
	}

	return buildJobDetail(&job), nil
}

// GetByRepo 按 (owner, name) 查询当前用户最近一次任务
func (s *AnalysisService) GetByRepo(ctx context.Context, userID int64, owner, name string) (*dto.JobDetail, error) {
	job, err := s.jobRepo.GetLatestByRepo(owner, name, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	return buildJobDetail(job), nil
}

// buildJobDetail 非 completed 任务一律隐藏结果字段，哪怕库里有残留
func buildJobDetail(job *model.AnalysisJob) *dto.JobDetail {
	detail := &dto.JobDetail{
		ID:           job.ID,
		RepositoryID: job.RepositoryID,
		Owner:        job.Owner,
		Name:         job.Name,
		FullName:     job.FullName,
		Branch:       job.Branch,
		Status:       job.Status,
		CurrentStep:  job.CurrentStep,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.Format(time.RFC3339),
	}

	if job.Status == model.JobStatusCompleted {
		detail.Summary = job.Summary
		detail.Metrics = job.Metrics
		detail.FileIndex = job.FileIndex
		detail.DurationMs = job.DurationMs
	}

	if job.Status == model.JobStatusFailed {
		detail.ErrorMessage = job.ErrorMessage
		if job.FailedAt != nil {
			detail.FailedAt = job.FailedAt.Format(time.RFC3339)
		}
	}

	return detail
}
