package indexer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/qs3c/insight_go_server/internal/model"
)

// 进度上报间隔（按已接受文件数）
const progressInterval = 5

// 估算行数时假定的平均行宽（字节）
const estimatedBytesPerLine = 80

// ListedFile 远端文件列表中的一项
type ListedFile struct {
	Path string
	Size int64
	SHA  string
}

// Options 索引预算
type Options struct {
	MaxFileSize  int64
	MaxFiles     int
	IncludeTests bool
	IncludeDocs  bool
}

// ReadFunc 读取单个文件内容，失败时行数回退为按大小估算
type ReadFunc func(ctx context.Context, path string) (string, error)

// ProgressFunc 每接受 progressInterval 个文件回调一次 (processed, total)
type ProgressFunc func(processed, total int)

// FileStatusFunc 逐文件状态回调，仅用于观测，不参与控制流
type FileStatusFunc func(path, status string)

// EstimateLines 按大小估算行数，至少为 1
func EstimateLines(size int64) int {
	lines := int(size / estimatedBytesPerLine)
	if lines < 1 {
		lines = 1
	}
	return lines
}

// BuildIndex 按列表顺序过滤并索引文件，直到接受 MaxFiles 个为止。
// 超预算文件与命中跳过规则的文件不计入预算。只有 ctx 取消会返回错误。
func BuildIndex(ctx context.Context, listing []ListedFile, read ReadFunc, opts Options, onProgress ProgressFunc, onFile FileStatusFunc) ([]model.FileIndexEntry, error) {
	total := len(listing)
	if opts.MaxFiles > 0 && opts.MaxFiles < total {
		total = opts.MaxFiles
	}

	reportFile := func(path, status string) {
		if onFile != nil {
			onFile(path, status)
		}
	}

	entries := make([]model.FileIndexEntry, 0, total)
	for _, file := range listing {
		if opts.MaxFiles > 0 && len(entries) >= opts.MaxFiles {
			break
		}
		if err := ctx.Err(); err != nil {
			return entries, err
		}

		if opts.MaxFileSize > 0 && file.Size > opts.MaxFileSize {
			reportFile(file.Path, "skipped (too large)")
			continue
		}
		if ShouldSkip(file.Path, opts.IncludeTests, opts.IncludeDocs) {
			reportFile(file.Path, "skipped")
			continue
		}

		language, extension := Classify(file.Path)

		var lines int
		if IsText(extension) && (opts.MaxFileSize <= 0 || file.Size < opts.MaxFileSize) {
			content, err := read(ctx, file.Path)
			if err != nil {
				lines = EstimateLines(file.Size)
				reportFile(file.Path, fmt.Sprintf("failed to read (%v)", err))
			} else {
				lines = len(strings.Split(content, "\n"))
				reportFile(file.Path, fmt.Sprintf("processed (%d lines)", lines))
			}
		} else {
			lines = EstimateLines(file.Size)
			reportFile(file.Path, fmt.Sprintf("estimated (%d lines)", lines))
		}

		entries = append(entries, model.FileIndexEntry{
			Path:        file.Path,
			Language:    language,
			Extension:   extension,
			Size:        file.Size,
			Lines:       lines,
			ContentHash: file.SHA,
			IndexedAt:   time.Now(),
		})

		if onProgress != nil && len(entries)%progressInterval == 0 {
			onProgress(len(entries), total)
		}
	}

	return entries, nil
}
