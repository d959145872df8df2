package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/qs3c/insight_go_server/config"
)

// TreeEntry 仓库树中的一个 blob
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	SHA  string `json:"sha"`
}

// CommitInfo 提交记录
type CommitInfo struct {
	SHA         string
	Message     string
	AuthorName  string
	AuthorEmail string
	AvatarURL   string
	Date        time.Time
}

// BranchInfo 分支记录
type BranchInfo struct {
	Name      string `json:"name"`
	Protected bool   `json:"protected"`
	SHA       string `json:"sha"`
}

// RepoInfo 仓库元信息
type RepoInfo struct {
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	Private       bool   `json:"private"`
}

// Client GitHub REST v3 客户端
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient 创建客户端，token 为空时匿名访问（受 GitHub 限流约束）
func NewClient(cfg *config.GithubConfig) *Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(context.Background(), ts)
		httpClient.Timeout = 30 * time.Second
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

func (c *Client) get(ctx context.Context, path string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("github api error (%d): %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode github response: %w", err)
	}
	return nil
}

// GetRepo 获取仓库元信息（默认分支等）
func (c *Client) GetRepo(ctx context.Context, owner, repo string) (*RepoInfo, error) {
	var info RepoInfo
	path := fmt.Sprintf("/repos/%s/%s", url.PathEscape(owner), url.PathEscape(repo))
	if err := c.get(ctx, path, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListTree 递归获取分支下的完整文件列表，只保留 blob
func (c *Client) ListTree(ctx context.Context, owner, repo, branch string) ([]TreeEntry, error) {
	var result struct {
		Tree      []TreeEntry `json:"tree"`
		Truncated bool        `json:"truncated"`
	}
	path := fmt.Sprintf("/repos/%s/%s/git/trees/%s?recursive=1",
		url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(branch))
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}

	blobs := make([]TreeEntry, 0, len(result.Tree))
	for _, entry := range result.Tree {
		if entry.Type == "blob" {
			blobs = append(blobs, entry)
		}
	}
	return blobs, nil
}

// ReadFile 读取单个文件内容
func (c *Client) ReadFile(ctx context.Context, owner, repo, path, branch string) (string, error) {
	var result struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	apiPath := fmt.Sprintf("/repos/%s/%s/contents/%s?ref=%s",
		url.PathEscape(owner), url.PathEscape(repo), escapePath(path), url.QueryEscape(branch))
	if err := c.get(ctx, apiPath, &result); err != nil {
		return "", err
	}

	if result.Encoding != "base64" {
		return result.Content, nil
	}

	// contents API 返回带换行的 base64
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(result.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("failed to decode file content: %w", err)
	}
	return string(decoded), nil
}

// ListCommits 获取分支提交记录，新在前
func (c *Client) ListCommits(ctx context.Context, owner, repo, branch string, perPage int, since *time.Time) ([]CommitInfo, error) {
	if perPage <= 0 {
		perPage = 50
	}

	query := url.Values{}
	query.Set("sha", branch)
	query.Set("per_page", fmt.Sprintf("%d", perPage))
	if since != nil {
		query.Set("since", since.UTC().Format(time.RFC3339))
	}

	var raw []struct {
		SHA    string `json:"sha"`
		Commit struct {
			Message string `json:"message"`
			Author  struct {
				Name  string    `json:"name"`
				Email string    `json:"email"`
				Date  time.Time `json:"date"`
			} `json:"author"`
		} `json:"commit"`
		Author *struct {
			Login     string `json:"login"`
			AvatarURL string `json:"avatar_url"`
		} `json:"author"`
	}

	path := fmt.Sprintf("/repos/%s/%s/commits?%s",
		url.PathEscape(owner), url.PathEscape(repo), query.Encode())
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, err
	}

	commits := make([]CommitInfo, 0, len(raw))
	for _, r := range raw {
		info := CommitInfo{
			SHA:         r.SHA,
			Message:     r.Commit.Message,
			AuthorName:  r.Commit.Author.Name,
			AuthorEmail: r.Commit.Author.Email,
			Date:        r.Commit.Author.Date,
		}
		if r.Author != nil {
			info.AvatarURL = r.Author.AvatarURL
			if info.AuthorName == "" {
				info.AuthorName = r.Author.Login
			}
		}
		commits = append(commits, info)
	}
	return commits, nil
}

// ListBranches 获取仓库分支列表
func (c *Client) ListBranches(ctx context.Context, owner, repo string) ([]BranchInfo, error) {
	var raw []struct {
		Name      string `json:"name"`
		Protected bool   `json:"protected"`
		Commit    struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}

	path := fmt.Sprintf("/repos/%s/%s/branches?per_page=100",
		url.PathEscape(owner), url.PathEscape(repo))
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, err
	}

	branches := make([]BranchInfo, 0, len(raw))
	for _, r := range raw {
		branches = append(branches, BranchInfo{
			Name:      r.Name,
			Protected: r.Protected,
			SHA:       r.Commit.SHA,
		})
	}
	return branches, nil
}

// escapePath 对路径逐段转义，保留目录分隔符
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
