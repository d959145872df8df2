package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/qs3c/insight_go_server/config"
	"github.com/qs3c/insight_go_server/internal/model"
)

// Result 摘要结果。摘要失败不是任务失败：success=false 时 error 说明原因，
// 任务照常以 summary 为空完成。
type Result struct {
	Success  bool   `json:"success"`
	Content  string `json:"content,omitempty"`
	Provider string `json:"provider,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Summarizer 黑盒摘要接口
type Summarizer interface {
	Summarize(ctx context.Context, job *model.AnalysisJob, index []model.FileIndexEntry, metrics *model.Metrics) *Result
}

// ChatSummarizer OpenAI 兼容 chat-completions 实现
type ChatSummarizer struct {
	cfg        config.LLMConfig
	httpClient *http.Client
}

func NewChatSummarizer(cfg config.LLMConfig) *ChatSummarizer {
	return &ChatSummarizer{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

func (s *ChatSummarizer) Summarize(ctx context.Context, job *model.AnalysisJob, index []model.FileIndexEntry, metrics *model.Metrics) *Result {
	if s.cfg.APIKey == "" {
		return &Result{Success: false, Error: "llm api key not configured"}
	}

	prompt := buildPrompt(job, index, metrics)

	reqBody := map[string]interface{}{
		"model": s.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": "You are a senior engineer writing a concise overview of a code repository."},
			{"role": "user", "content": prompt},
		},
		"temperature": 0.3,
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}
	}

	baseURL := strings.TrimSuffix(s.cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return &Result{Success: false, Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("llm request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &Result{Success: false, Error: fmt.Sprintf("llm api error (%d): %s", resp.StatusCode, string(body))}
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("failed to decode llm response: %v", err)}
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return &Result{Success: false, Error: "llm returned empty completion"}
	}

	return &Result{
		Success:  true,
		Content:  completion.Choices[0].Message.Content,
		Provider: s.cfg.Provider,
	}
}

// buildPrompt 用指标和代表性文件构造提示词，控制在合理长度内
func buildPrompt(job *model.AnalysisJob, index []model.FileIndexEntry, metrics *model.Metrics) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Repository: %s (branch %s)\n", job.FullName, job.Branch)
	fmt.Fprintf(&b, "Files indexed: %d, total lines: %d, total size: %d bytes\n",
		metrics.FileCount, metrics.TotalLines, metrics.TotalSize)

	if len(metrics.Languages) > 0 {
		langs := make([]string, 0, len(metrics.Languages))
		for name := range metrics.Languages {
			langs = append(langs, name)
		}
		sort.Slice(langs, func(i, j int) bool {
			return metrics.Languages[langs[i]].Lines > metrics.Languages[langs[j]].Lines
		})
		b.WriteString("Languages: ")
		for i, name := range langs {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s %.1f%%", name, metrics.Languages[name].Percentage)
		}
		b.WriteString("\n")
	}

	b.WriteString("File listing (up to 100 paths):\n")
	for i, entry := range index {
		if i >= 100 {
			break
		}
		fmt.Fprintf(&b, "- %s (%d lines)\n", entry.Path, entry.Lines)
	}

	b.WriteString("\nWrite a short summary (3-5 paragraphs) of what this repository likely does, its structure and main technologies.")
	return b.String()
}
