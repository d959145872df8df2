package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/insight_go_server/internal/model"
	"github.com/qs3c/insight_go_server/internal/model/dto"
	"github.com/qs3c/insight_go_server/internal/pkg/cache"
	"github.com/qs3c/insight_go_server/internal/pkg/github"
	"github.com/qs3c/insight_go_server/internal/repository"
)

var ErrHistoryParam = errors.New("仓库参数不完整")

// 贡献者榜单长度与趋势窗口
const (
	topContributors = 10
	trendWindowDays = 7
)

// GitClient 提交历史需要的远端能力
type GitClient interface {
	ListCommits(ctx context.Context, owner, repo, branch string, perPage int, since *time.Time) ([]github.CommitInfo, error)
	ListBranches(ctx context.Context, owner, repo string) ([]github.BranchInfo, error)
	GetRepo(ctx context.Context, owner, repo string) (*github.RepoInfo, error)
}

// HistoryService 两级缓存的提交历史读路径：
// Redis（30 分钟 TTL）→ MySQL（6 小时新鲜度）→ GitHub 回源。
type HistoryService struct {
	historyRepo *repository.HistoryRepository
	fast        cache.Store
	gh          GitClient
	now         func() time.Time
}

func NewHistoryService(historyRepo *repository.HistoryRepository, fast cache.Store, gh GitClient) *HistoryService {
	return &HistoryService{
		historyRepo: historyRepo,
		fast:        fast,
		gh:          gh,
		now:         time.Now,
	}
}

func historyCacheKey(owner, repo, branch string) string {
	return fmt.Sprintf("git_history:%s/%s:%s", owner, repo, branch)
}

// Get 执行两级缓存策略。forceRefresh 无条件回源，但成功后仍写回两级缓存。
func (s *HistoryService) Get(ctx context.Context, req *dto.HistoryRequest) (*dto.HistoryResponse, error) {
	if req.Owner == "" || req.Repo == "" {
		return nil, ErrHistoryParam
	}
	if req.Branch == "" {
		req.Branch = "main"
	}

	key := historyCacheKey(req.Owner, req.Repo, req.Branch)

	if !req.ForceRefresh {
		// 第一级：Redis
		var entry model.GitHistoryCache
		hit, err := cache.GetJSON(ctx, s.fast, key, &entry)
		if err != nil {
			log.Printf("History %s/%s: redis read failed: %v", req.Owner, req.Repo, err)
		}
		if hit {
			return buildHistoryResponse(&entry, model.HistorySourceRedis, true), nil
		}

		// 第二级：MySQL，6 小时内且分支匹配才可用，命中后回填 Redis
		durable, err := s.historyRepo.GetByRepo(req.Owner, req.Repo, req.Branch)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if durable != nil &&
			s.now().Sub(durable.FetchedAt) < cache.DurableStaleness &&
			durable.Branch == req.Branch {
			if err := cache.SetJSON(ctx, s.fast, key, durable, cache.FastTTL); err != nil {
				log.Printf("History %s/%s: redis warm-up failed: %v", req.Owner, req.Repo, err)
			}
			return buildHistoryResponse(durable, model.HistorySourceDatabase, true), nil
		}
	}

	// 回源 GitHub，整行替换持久层并写回 Redis
	entry, err := s.fetchFromOrigin(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.historyRepo.Upsert(entry); err != nil {
		log.Printf("History %s/%s: durable write failed: %v", req.Owner, req.Repo, err)
	}
	if err := cache.SetJSON(ctx, s.fast, key, entry, cache.FastTTL); err != nil {
		log.Printf("History %s/%s: redis write failed: %v", req.Owner, req.Repo, err)
	}

	return buildHistoryResponse(entry, model.HistorySourceGithub, false), nil
}

func (s *HistoryService) fetchFromOrigin(ctx context.Context, req *dto.HistoryRequest) (*model.GitHistoryCache, error) {
	perPage := req.PerPage
	if perPage <= 0 {
		perPage = 50
	}

	rawCommits, err := s.gh.ListCommits(ctx, req.Owner, req.Repo, req.Branch, perPage, req.Since)
	if err != nil {
		return nil, fmt.Errorf("获取提交记录失败: %w", err)
	}

	rawBranches, err := s.gh.ListBranches(ctx, req.Owner, req.Repo)
	if err != nil {
		return nil, fmt.Errorf("获取分支列表失败: %w", err)
	}

	defaultBranch := req.Branch
	if info, err := s.gh.GetRepo(ctx, req.Owner, req.Repo); err == nil {
		defaultBranch = info.DefaultBranch
	} else {
		log.Printf("History %s/%s: repo info fetch failed, falling back to requested branch: %v",
			req.Owner, req.Repo, err)
	}

	commits := make(model.CommitList, 0, len(rawCommits))
	for _, c := range rawCommits {
		commits = append(commits, model.Commit{
			SHA:         c.SHA,
			Message:     c.Message,
			Author:      c.AuthorName,
			AuthorEmail: c.AuthorEmail,
			AvatarURL:   c.AvatarURL,
			Date:        c.Date,
		})
	}

	branches := make(model.BranchList, 0, len(rawBranches))
	for _, b := range rawBranches {
		branches = append(branches, model.Branch{
			Name:      b.Name,
			Protected: b.Protected,
			SHA:       b.SHA,
		})
	}

	now := s.now()
	return &model.GitHistoryCache{
		Owner:         req.Owner,
		Repo:          req.Repo,
		Branch:        req.Branch,
		Commits:       commits,
		Branches:      branches,
		DefaultBranch: defaultBranch,
		Contributors:  buildContributors(commits),
		TrendPercent:  computeTrend(dailyCounts(commits, now)),
		FetchedAt:     now,
	}, nil
}

func buildHistoryResponse(entry *model.GitHistoryCache, source string, cached bool) *dto.HistoryResponse {
	return &dto.HistoryResponse{
		Commits:       entry.Commits,
		Branches:      entry.Branches,
		Repository:    entry.Owner + "/" + entry.Repo,
		Branch:        entry.Branch,
		DefaultBranch: entry.DefaultBranch,
		Count:         len(entry.Commits),
		Contributors:  entry.Contributors,
		TrendPercent:  entry.TrendPercent,
		Cached:        cached,
		Source:        source,
		FetchedAt:     entry.FetchedAt.Format(time.RFC3339),
	}
}

// buildContributors 按作者展示名聚合提交数，取前 10
func buildContributors(commits model.CommitList) model.ContributorList {
	type bucket struct {
		count  int
		avatar string
	}
	byAuthor := make(map[string]bucket)
	for _, c := range commits {
		name := c.Author
		if name == "" {
			name = "unknown"
		}
		b := byAuthor[name]
		b.count++
		if b.avatar == "" {
			b.avatar = c.AvatarURL
		}
		byAuthor[name] = b
	}

	contributors := make(model.ContributorList, 0, len(byAuthor))
	for name, b := range byAuthor {
		contributors = append(contributors, model.Contributor{
			Name:      name,
			AvatarURL: b.avatar,
			Commits:   b.count,
		})
	}
	sort.Slice(contributors, func(i, j int) bool {
		if contributors[i].Commits != contributors[j].Commits {
			return contributors[i].Commits > contributors[j].Commits
		}
		return contributors[i].Name < contributors[j].Name
	})
	if len(contributors) > topContributors {
		contributors = contributors[:topContributors]
	}
	return contributors
}

// dailyCounts 把提交按天分桶，从最早提交日到今天的连续序列（旧在前）
func dailyCounts(commits model.CommitList, now time.Time) []int {
	if len(commits) == 0 {
		return nil
	}

	byDay := make(map[string]int)
	earliest := now
	for _, c := range commits {
		day := c.Date.UTC().Truncate(24 * time.Hour)
		if day.Before(earliest) {
			earliest = day
		}
		byDay[day.Format("2006-01-02")]++
	}

	var counts []int
	today := now.UTC().Truncate(24 * time.Hour)
	for day := earliest.UTC().Truncate(24 * time.Hour); !day.After(today); day = day.Add(24 * time.Hour) {
		counts = append(counts, byDay[day.Format("2006-01-02")])
	}
	return counts
}

// computeTrend 最近 7 天对比前 7 天的提交量变化百分比（四舍五入）。
// 不足 2 个桶返回 0；前段均值为 0 时有提交记 100、无提交记 0。
func computeTrend(daily []int) int {
	if len(daily) < 2 {
		return 0
	}

	recentStart := len(daily) - trendWindowDays
	if recentStart < 0 {
		recentStart = 0
	}
	recent := daily[recentStart:]

	prevStart := recentStart - trendWindowDays
	if prevStart < 0 {
		prevStart = 0
	}
	prev := daily[prevStart:recentStart]

	avg := func(xs []int) float64 {
		if len(xs) == 0 {
			return 0
		}
		sum := 0
		for _, x := range xs {
			sum += x
		}
		return float64(sum) / float64(len(xs))
	}

	recentAvg := avg(recent)
	prevAvg := avg(prev)

	if prevAvg == 0 {
		if recentAvg > 0 {
			return 100
		}
		return 0
	}

	return int(math.Round((recentAvg - prevAvg) / prevAvg * 100))
}
