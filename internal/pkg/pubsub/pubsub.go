package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/qs3c/insight_go_server/internal/model"
)

const (
	ChannelAnalysisProgress = "analysis_progress"
)

// 流水线阶段常量
const (
	StepInit        = "init"
	StepListing     = "listing"
	StepIndexing    = "indexing"
	StepAggregating = "aggregating"
	StepSummarizing = "summarizing"
	StepCompleted   = "completed"
	StepError       = "error"
)

// 阶段对应的进度百分比，索引阶段在 20-60 间按文件数插值
var StepProgress = map[string]int{
	StepInit:        5,
	StepListing:     15,
	StepIndexing:    20,
	StepAggregating: 70,
	StepSummarizing: 85,
	StepCompleted:   100,
}

// 阶段对应的消息
var StepMessages = map[string]string{
	StepInit:        "正在初始化分析",
	StepListing:     "正在获取文件列表",
	StepIndexing:    "正在索引文件",
	StepAggregating: "正在统计代码指标",
	StepSummarizing: "正在生成摘要",
	StepCompleted:   "分析完成",
	StepError:       "分析失败",
}

// ProgressMessage 进度消息。同一任务内 progress 单调不减，终态 error 为 -1。
// 投递是尽力而为的，消费方不能依赖它做控制流。
type ProgressMessage struct {
	Type       string         `json:"type"`
	UserID     int64          `json:"user_id"`
	JobID      int64          `json:"job_id"`
	Owner      string         `json:"owner,omitempty"`
	Name       string         `json:"name,omitempty"`
	Step       string         `json:"step"`
	Message    string         `json:"message,omitempty"`
	Progress   int            `json:"progress"`
	Processed  int            `json:"processed,omitempty"`
	Total      int            `json:"total,omitempty"`
	DurationMs int64          `json:"duration_ms,omitempty"`
	Metrics    *model.Metrics `json:"metrics,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// IndexingProgress 索引阶段的插值进度，占 20-60 区间
func IndexingProgress(processed, total int) int {
	if total <= 0 {
		return StepProgress[StepIndexing]
	}
	p := StepProgress[StepIndexing] + processed*40/total
	if p > 60 {
		p = 60
	}
	return p
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishProgress 发布进度消息
func (p *Publisher) PublishProgress(ctx context.Context, msg *ProgressMessage) error {
	msg.Type = "job_progress"

	// 自动填充进度和消息
	if msg.Progress == 0 && msg.Step != "" {
		if progress, ok := StepProgress[msg.Step]; ok {
			msg.Progress = progress
		}
	}
	if msg.Step == StepError {
		msg.Progress = -1
	}
	if msg.Message == "" && msg.Step != "" {
		if message, ok := StepMessages[msg.Step]; ok {
			msg.Message = message
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal progress message: %w", err)
	}

	return p.client.Publish(ctx, ChannelAnalysisProgress, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅进度消息，阻塞直到 ctx 取消
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*ProgressMessage)) error {
	pubsub := s.client.Subscribe(ctx, ChannelAnalysisProgress)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var progressMsg ProgressMessage
			if err := json.Unmarshal([]byte(msg.Payload), &progressMsg); err != nil {
				continue // 忽略解析错误
			}

			handler(&progressMsg)
		}
	}
}
