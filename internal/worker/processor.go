package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/qs3c/insight_go_server/config"
	"github.com/qs3c/insight_go_server/internal/indexer"
	"github.com/qs3c/insight_go_server/internal/model"
	"github.com/qs3c/insight_go_server/internal/pkg/github"
	"github.com/qs3c/insight_go_server/internal/pkg/llm"
	"github.com/qs3c/insight_go_server/internal/pkg/oss"
	"github.com/qs3c/insight_go_server/internal/pkg/pubsub"
	"github.com/qs3c/insight_go_server/internal/pkg/queue"
	"github.com/qs3c/insight_go_server/internal/repository"
)

// RepoClient 流水线需要的远端仓库能力
type RepoClient interface {
	ListTree(ctx context.Context, owner, repo, branch string) ([]github.TreeEntry, error)
	ReadFile(ctx context.Context, owner, repo, path, branch string) (string, error)
}

// Processor 任务处理器：认领任务后按固定步骤执行流水线，
// 终态在这里落库，进度经 Redis 推送。
type Processor struct {
	jobRepo    *repository.JobRepository
	gh         RepoClient
	summarizer llm.Summarizer
	ossClient  *oss.Client
	publisher  *pubsub.Publisher
	cfg        *config.Config
}

func NewProcessor(
	jobRepo *repository.JobRepository,
	gh RepoClient,
	summarizer llm.Summarizer,
	ossClient *oss.Client,
	publisher *pubsub.Publisher,
	cfg *config.Config,
) *Processor {
	return &Processor{
		jobRepo:    jobRepo,
		gh:         gh,
		summarizer: summarizer,
		ossClient:  ossClient,
		publisher:  publisher,
		cfg:        cfg,
	}
}

// Process 处理一个分析任务。队列可能重复投递，认领失败直接放弃。
func (p *Processor) Process(ctx context.Context, msg *queue.JobMessage) error {
	job, err := p.jobRepo.GetByID(msg.JobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	claimed, err := p.jobRepo.ClaimForAnalysis(job.ID)
	if err != nil {
		return fmt.Errorf("failed to claim job: %w", err)
	}
	if !claimed {
		log.Printf("Job %d: not claimable (status=%s), skipping", job.ID, job.Status)
		return nil
	}

	// 对外契约是请求触发的 10 分钟卡死回收，内部再加一层硬超时兜底
	timeout := time.Duration(p.cfg.Analysis.JobTimeoutMinutes) * time.Minute
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	startedAt := time.Now()

	// 进度推送辅助函数，推送失败不影响流水线
	publishProgress := func(msg *pubsub.ProgressMessage) {
		msg.UserID = job.UserID
		msg.JobID = job.ID
		msg.Owner = job.Owner
		msg.Name = job.Name
		if err := p.publisher.PublishProgress(ctx, msg); err != nil {
			log.Printf("Job %d: progress publish failed: %v", job.ID, err)
		}
	}

	// 失败处理函数：终态落库 + 终态事件（progress=-1）
	handleError := func(step string, err error) error {
		durationMs := time.Since(startedAt).Milliseconds()
		errMsg := err.Error()
		if ferr := p.jobRepo.Fail(job.ID, errMsg, "step="+step, durationMs); ferr != nil {
			log.Printf("Job %d: failed to persist failure: %v", job.ID, ferr)
		}
		publishProgress(&pubsub.ProgressMessage{Step: pubsub.StepError, Error: errMsg})
		return err
	}

	// Step 1: 初始化
	log.Printf("Job %d: analyzing %s@%s", job.ID, job.FullName, job.Branch)
	p.jobRepo.UpdateStep(job.ID, pubsub.StepMessages[pubsub.StepInit])
	publishProgress(&pubsub.ProgressMessage{Step: pubsub.StepInit})

	// Step 2: 获取文件列表，失败即整个任务失败
	p.jobRepo.UpdateStep(job.ID, pubsub.StepMessages[pubsub.StepListing])
	publishProgress(&pubsub.ProgressMessage{Step: pubsub.StepListing})

	tree, err := p.gh.ListTree(ctx, job.Owner, job.Name, job.Branch)
	if err != nil {
		return handleError(pubsub.StepListing, fmt.Errorf("获取文件列表失败: %w", err))
	}
	log.Printf("Job %d: listed %d files", job.ID, len(tree))

	// Step 3: 索引文件，单文件读取失败降级为估算行数
	p.jobRepo.UpdateStep(job.ID, pubsub.StepMessages[pubsub.StepIndexing])

	listing := make([]indexer.ListedFile, 0, len(tree))
	for _, entry := range tree {
		listing = append(listing, indexer.ListedFile{
			Path: entry.Path,
			Size: entry.Size,
			SHA:  entry.SHA,
		})
	}

	readFn := func(ctx context.Context, path string) (string, error) {
		return p.gh.ReadFile(ctx, job.Owner, job.Name, path, job.Branch)
	}
	onProgress := func(processed, total int) {
		p.jobRepo.UpdateStep(job.ID, fmt.Sprintf("正在索引文件 %d/%d", processed, total))
		publishProgress(&pubsub.ProgressMessage{
			Step:      pubsub.StepIndexing,
			Message:   fmt.Sprintf("正在索引文件 %d/%d", processed, total),
			Progress:  pubsub.IndexingProgress(processed, total),
			Processed: processed,
			Total:     total,
		})
	}
	onFile := func(path, status string) {
		if !strings.HasPrefix(status, "processed") {
			log.Printf("Job %d: %s: %s", job.ID, path, status)
		}
	}

	index, err := indexer.BuildIndex(ctx, listing, readFn, indexer.Options{
		MaxFileSize:  job.MaxFileSize,
		MaxFiles:     job.MaxFiles,
		IncludeTests: job.IncludeTests,
		IncludeDocs:  job.IncludeDocs,
	}, onProgress, onFile)
	if err != nil {
		return handleError(pubsub.StepIndexing, fmt.Errorf("索引中断: %w", err))
	}

	publishProgress(&pubsub.ProgressMessage{
		Step:      pubsub.StepIndexing,
		Message:   "文件索引完成",
		Progress:  60,
		Processed: len(index),
		Total:     len(index),
	})

	// Step 4: 归约指标
	p.jobRepo.UpdateStep(job.ID, pubsub.StepMessages[pubsub.StepAggregating])
	publishProgress(&pubsub.ProgressMessage{Step: pubsub.StepAggregating})

	metrics := indexer.Aggregate(index)
	log.Printf("Job %d: %d files, %d lines, %d languages",
		job.ID, metrics.FileCount, metrics.TotalLines, metrics.LanguageCount)

	// Step 5: 生成摘要。摘要失败不是任务失败，summary 留空照常完成。
	p.jobRepo.UpdateStep(job.ID, pubsub.StepMessages[pubsub.StepSummarizing])
	publishProgress(&pubsub.ProgressMessage{Step: pubsub.StepSummarizing})

	var summary *string
	if result := p.summarizer.Summarize(ctx, job, index, metrics); result.Success {
		summary = &result.Content
	} else {
		log.Printf("Job %d: summarizer failed, completing without summary: %s", job.ID, result.Error)
	}

	// 全量索引归档（OSS 或本地），尽力而为
	p.archiveIndex(job.ID, index)

	// Step 6: 终态写入。状态和结果在同一条 UPDATE 里落库。
	stored := model.FileIndex(index)
	if len(stored) > model.MaxStoredIndexEntries {
		stored = stored[:model.MaxStoredIndexEntries]
	}

	durationMs := time.Since(startedAt).Milliseconds()
	if err := p.jobRepo.Complete(job.ID, summary, metrics, stored, durationMs); err != nil {
		return handleError(pubsub.StepCompleted, fmt.Errorf("结果写入失败: %w", err))
	}

	publishProgress(&pubsub.ProgressMessage{
		Step:       pubsub.StepCompleted,
		DurationMs: durationMs,
		Metrics:    metrics,
		Processed:  metrics.FileCount,
		Total:      metrics.FileCount,
	})

	log.Printf("Job %d: completed in %d ms, indexed %d files", job.ID, durationMs, metrics.FileCount)
	return nil
}

// archiveIndex 归档全量文件索引。入库版本会截断，全量只在归档里保留。
func (p *Processor) archiveIndex(jobID int64, index []model.FileIndexEntry) {
	if len(index) <= model.MaxStoredIndexEntries {
		return // 没有截断，无需归档
	}

	data, err := json.Marshal(index)
	if err != nil {
		log.Printf("Job %d: failed to marshal index archive: %v", jobID, err)
		return
	}

	if p.ossClient != nil {
		url, err := p.ossClient.UploadIndexArchive(jobID, data)
		if err != nil {
			log.Printf("Job %d: index archive upload failed: %v", jobID, err)
			return
		}
		log.Printf("Job %d: full index archived to %s", jobID, url)
		return
	}

	if p.cfg.Analysis.ArchiveDir == "" {
		return
	}
	if err := os.MkdirAll(p.cfg.Analysis.ArchiveDir, 0755); err != nil {
		log.Printf("Job %d: failed to create archive dir: %v", jobID, err)
		return
	}
	localPath := filepath.Join(p.cfg.Analysis.ArchiveDir, fmt.Sprintf("%d.json", jobID))
	if err := os.WriteFile(localPath, data, 0644); err != nil {
		log.Printf("Job %d: failed to write index archive: %v", jobID, err)
		return
	}
	log.Printf("Job %d: full index archived locally (OSS not configured)", jobID)
}
