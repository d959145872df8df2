package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/insight_go_server/internal/model"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(job *model.AnalysisJob) error {
	return r.db.Create(job).Error
}

func (r *JobRepository) GetByID(id int64) (*model.AnalysisJob, error) {
	var job model.AnalysisJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetLatestByRepo 获取 (owner, name, user) 最近一次任务
func (r *JobRepository) GetLatestByRepo(owner, name string, userID int64) (*model.AnalysisJob, error) {
	var job model.AnalysisJob
	err := r.db.Where("owner = ? AND name = ? AND user_id = ?", owner, name, userID).
		Order("created_at DESC").
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepository) Update(job *model.AnalysisJob) error {
	return r.db.Save(job).Error
}

// UpdateStep 记录当前步骤并刷新 updated_at，卡死检测依赖这里的心跳
func (r *JobRepository) UpdateStep(id int64, step string) error {
	return r.db.Model(&model.AnalysisJob{}).Where("id = ?", id).
		Update("current_step", step).Error
}

// ClaimForAnalysis 以条件更新认领任务（pending → analyzing）。
// 返回 false 表示任务已被别的 worker 认领或已不在 pending。
func (r *JobRepository) ClaimForAnalysis(id int64) (bool, error) {
	result := r.db.Model(&model.AnalysisJob{}).
		Where("id = ? AND status = ?", id, model.JobStatusPending).
		Updates(map[string]interface{}{
			"status":       model.JobStatusAnalyzing,
			"current_step": "认领任务",
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkStuckFailed 把闲置超过阈值的非终态任务标记为失败。
// 条件更新保证并发请求里只有一个能回收成功。
func (r *JobRepository) MarkStuckFailed(id int64, idleBefore time.Time, errMsg string) (bool, error) {
	now := time.Now()
	result := r.db.Model(&model.AnalysisJob{}).
		Where("id = ? AND status IN ? AND updated_at <= ?",
			id, []string{model.JobStatusPending, model.JobStatusAnalyzing}, idleBefore).
		Updates(map[string]interface{}{
			"status":        model.JobStatusFailed,
			"error_message": errMsg,
			"failed_at":     &now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Complete 终态成功写入：状态和结果在同一条 UPDATE 里落库，
// 读路径永远不会看到带完整结果的非 completed 行。
func (r *JobRepository) Complete(id int64, summary *string, metrics *model.Metrics, fileIndex model.FileIndex, durationMs int64) error {
	return r.db.Model(&model.AnalysisJob{}).
		Where("id = ? AND status = ?", id, model.JobStatusAnalyzing).
		Updates(map[string]interface{}{
			"status":       model.JobStatusCompleted,
			"current_step": "分析完成",
			"summary":      summary,
			"metrics":      metrics,
			"file_index":   fileIndex,
			"duration_ms":  durationMs,
		}).Error
}

// Fail 终态失败写入
func (r *JobRepository) Fail(id int64, errMsg, errContext string, durationMs int64) error {
	now := time.Now()
	return r.db.Model(&model.AnalysisJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        model.JobStatusFailed,
			"error_message": errMsg,
			"error_context": errContext,
			"duration_ms":   durationMs,
			"failed_at":     &now,
		}).Error
}

// SweepStuck 批量回收闲置的非终态任务（cmd/cleanup 用）
func (r *JobRepository) SweepStuck(idleBefore time.Time, errMsg string) (int64, error) {
	now := time.Now()
	result := r.db.Model(&model.AnalysisJob{}).
		Where("status IN ? AND updated_at <= ?",
			[]string{model.JobStatusPending, model.JobStatusAnalyzing}, idleBefore).
		Updates(map[string]interface{}{
			"status":        model.JobStatusFailed,
			"error_message": errMsg,
			"failed_at":     &now,
		})
	return result.RowsAffected, result.Error
}
