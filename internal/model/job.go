package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// 任务状态机：pending → analyzing → completed / failed
const (
	JobStatusPending   = "pending"
	JobStatusAnalyzing = "analyzing"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// MaxStoredIndexEntries 入库的文件索引前缀长度上限，全量索引走 OSS 归档
const MaxStoredIndexEntries = 500

// FileIndexEntry 单个已索引文件
type FileIndexEntry struct {
	Path        string    `json:"path"`
	Language    string    `json:"language"`
	Extension   string    `json:"extension"`
	Size        int64     `json:"size"`
	Lines       int       `json:"lines"`
	ContentHash string    `json:"content_hash,omitempty"`
	IndexedAt   time.Time `json:"indexed_at"`
}

// LanguageStat 单语言统计
type LanguageStat struct {
	Lines      int64   `json:"lines"`
	Files      int     `json:"files"`
	Percentage float64 `json:"percentage"`
}

// Metrics 由文件索引归约出的指标，不单独修改
type Metrics struct {
	FileCount     int                     `json:"file_count"`
	TotalLines    int64                   `json:"total_lines"`
	TotalSize     int64                   `json:"total_size"`
	LanguageCount int                     `json:"language_count"`
	Languages     map[string]LanguageStat `json:"languages"`
	LargestFiles  []FileIndexEntry        `json:"largest_files"`
}

func (m Metrics) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *Metrics) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return errors.New("unsupported metrics column type")
		}
		bytes = []byte(s)
	}
	return json.Unmarshal(bytes, m)
}

// FileIndex JSON 数组列
type FileIndex []FileIndexEntry

func (f FileIndex) Value() (driver.Value, error) {
	if f == nil {
		return "[]", nil
	}
	return json.Marshal(f)
}

func (f *FileIndex) Scan(value interface{}) error {
	if value == nil {
		*f = FileIndex{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return errors.New("unsupported file index column type")
		}
		bytes = []byte(s)
	}
	return json.Unmarshal(bytes, f)
}

// AnalysisJob 一次仓库分析尝试，按 (owner, name, user_id) 寻址
type AnalysisJob struct {
	ID           int64  `gorm:"primaryKey" json:"id"`
	RepositoryID int64  `gorm:"index" json:"repository_id"`
	Owner        string `gorm:"size:100;not null;index:idx_repo_user" json:"owner"`
	Name         string `gorm:"size:200;not null;index:idx_repo_user" json:"name"`
	FullName     string `gorm:"size:300" json:"full_name"`
	Branch       string `gorm:"size:100;default:main" json:"branch"`
	UserID       int64  `gorm:"not null;index:idx_repo_user" json:"user_id"`

	// 资源预算
	MaxFileSize  int64 `json:"max_file_size"`
	MaxFiles     int   `json:"max_files"`
	IncludeTests bool  `gorm:"default:false" json:"include_tests"`
	IncludeDocs  bool  `gorm:"default:false" json:"include_docs"`

	Status      string `gorm:"size:20;default:pending;index" json:"status"`
	CurrentStep string `gorm:"size:200" json:"current_step,omitempty"`

	// 结果字段仅在 completed 时有效，终态写入为单条 UPDATE
	Summary    *string   `gorm:"type:text" json:"summary,omitempty"`
	Metrics    *Metrics  `gorm:"type:json" json:"metrics,omitempty"`
	FileIndex  FileIndex `gorm:"type:json" json:"file_index,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`

	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	ErrorContext string     `gorm:"type:text" json:"error_context,omitempty"`
	FailedAt     *time.Time `json:"failed_at,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}

func (AnalysisJob) TableName() string {
	return "analysis_jobs"
}

// IsTerminal 是否处于终态
func (j *AnalysisJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
