package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// 缓存命中层级
const (
	HistorySourceRedis    = "redis"
	HistorySourceDatabase = "database"
	HistorySourceGithub   = "github"
)

// Commit 提交记录（新在前）
type Commit struct {
	SHA         string    `json:"sha"`
	Message     string    `json:"message"`
	Author      string    `json:"author"`
	AuthorEmail string    `json:"author_email,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Date        time.Time `json:"date"`
}

// Branch 分支记录
type Branch struct {
	Name      string `json:"name"`
	Protected bool   `json:"protected"`
	SHA       string `json:"sha"`
}

// Contributor 按提交数排序的贡献者
type Contributor struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Commits   int    `json:"commits"`
}

type CommitList []Commit

func (l CommitList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

func (l *CommitList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

type BranchList []Branch

func (l BranchList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

func (l *BranchList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

type ContributorList []Contributor

func (l ContributorList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

func (l *ContributorList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return errors.New("unsupported json column type")
		}
		bytes = []byte(s)
	}
	return json.Unmarshal(bytes, dest)
}

// GitHistoryCache 提交/分支历史的持久层缓存，按 (owner, repo, branch) 唯一。
// 刷新时整行替换，不做部分更新。
type GitHistoryCache struct {
	ID            int64           `gorm:"primaryKey" json:"id"`
	Owner         string          `gorm:"size:100;not null;uniqueIndex:idx_history_repo" json:"owner"`
	Repo          string          `gorm:"size:200;not null;uniqueIndex:idx_history_repo" json:"repo"`
	Branch        string          `gorm:"size:100;not null;uniqueIndex:idx_history_repo" json:"branch"`
	Commits       CommitList      `gorm:"type:json" json:"commits"`
	Branches      BranchList      `gorm:"type:json" json:"branches"`
	DefaultBranch string          `gorm:"size:100" json:"default_branch"`
	Contributors  ContributorList `gorm:"type:json" json:"contributors"`
	TrendPercent  int             `json:"trend_percent"`
	FetchedAt     time.Time       `gorm:"index" json:"fetched_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (GitHistoryCache) TableName() string {
	return "git_history_cache"
}
