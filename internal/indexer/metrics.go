package indexer

import (
	"sort"

	"github.com/qs3c/insight_go_server/internal/model"
)

// largestFilesLimit 指标里保留的最大文件条数
const largestFilesLimit = 20

// Aggregate 把文件索引归约成指标。纯函数，不依赖网络和存储。
func Aggregate(entries []model.FileIndexEntry) *model.Metrics {
	metrics := &model.Metrics{
		FileCount: len(entries),
		Languages: make(map[string]model.LanguageStat),
	}

	for _, entry := range entries {
		metrics.TotalLines += int64(entry.Lines)
		metrics.TotalSize += entry.Size

		stat := metrics.Languages[entry.Language]
		stat.Lines += int64(entry.Lines)
		stat.Files++
		metrics.Languages[entry.Language] = stat
	}

	for name, stat := range metrics.Languages {
		if metrics.TotalLines > 0 {
			stat.Percentage = float64(stat.Lines) / float64(metrics.TotalLines) * 100
		}
		metrics.Languages[name] = stat
	}
	metrics.LanguageCount = len(metrics.Languages)

	sorted := make([]model.FileIndexEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Size > sorted[j].Size
	})
	if len(sorted) > largestFilesLimit {
		sorted = sorted[:largestFilesLimit]
	}
	metrics.LargestFiles = sorted

	return metrics
}
