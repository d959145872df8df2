package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/insight_go_server/internal/model"
)

type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// GetByRepo 查询 (owner, repo, branch) 的持久层缓存
func (r *HistoryRepository) GetByRepo(owner, repo, branch string) (*model.GitHistoryCache, error) {
	var entry model.GitHistoryCache
	err := r.db.Where("owner = ? AND repo = ? AND branch = ?", owner, repo, branch).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Upsert 整行替换，刷新永远不做部分更新
func (r *HistoryRepository) Upsert(entry *model.GitHistoryCache) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner"}, {Name: "repo"}, {Name: "branch"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"commits", "branches", "default_branch", "contributors",
			"trend_percent", "fetched_at", "updated_at",
		}),
	}).Create(entry).Error
}

// DeleteStaleBefore 清理过旧的缓存行（cmd/cleanup 用）
func (r *HistoryRepository) DeleteStaleBefore(before time.Time) (int64, error) {
	result := r.db.Where("fetched_at < ?", before).Delete(&model.GitHistoryCache{})
	return result.RowsAffected, result.Error
}
