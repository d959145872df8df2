package handler

import (
	"context"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/insight_go_server/internal/model"
	"github.com/qs3c/insight_go_server/internal/pkg/cache"
	"github.com/qs3c/insight_go_server/internal/pkg/github"
	"github.com/qs3c/insight_go_server/internal/pkg/response"
	"github.com/qs3c/insight_go_server/internal/repository"
	"github.com/qs3c/insight_go_server/internal/service"
	"github.com/qs3c/insight_go_server/internal/testutil"
)

type stubGitClient struct{}

func (stubGitClient) ListCommits(_ context.Context, _, _, _ string, _ int, _ *time.Time) ([]github.CommitInfo, error) {
	return []github.CommitInfo{
		{SHA: "abc", Message: "feat: thing", AuthorName: "octocat", Date: time.Now()},
	}, nil
}

func (stubGitClient) ListBranches(_ context.Context, _, _ string) ([]github.BranchInfo, error) {
	return []github.BranchInfo{{Name: "main", SHA: "abc"}}, nil
}

func (stubGitClient) GetRepo(_ context.Context, _, _ string) (*github.RepoInfo, error) {
	return &github.RepoInfo{DefaultBranch: "main"}, nil
}

func setupHistoryHandler(t *testing.T) *HistoryHandler {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	rdb, _ := testutil.SetupTestRedis(t)
	fast := cache.NewRedisStore(rdb)
	historyRepo := repository.NewHistoryRepository(db)
	historyService := service.NewHistoryService(historyRepo, fast, stubGitClient{})

	return NewHistoryHandler(historyService)
}

func TestHistoryHandler_Get_Success(t *testing.T) {
	handler := setupHistoryHandler(t)

	router := gin.New()
	router.GET("/repos/:owner/:repo/history", handler.Get)

	w := performRequest(router, "GET", "/repos/octocat/hello-world/history", nil)
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeSuccess, resp.Code)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "octocat/hello-world", data["repository"])
	assert.Equal(t, model.HistorySourceGithub, data["source"])
	assert.Equal(t, float64(1), data["count"])
}

func TestHistoryHandler_Get_SecondCallHitsCache(t *testing.T) {
	handler := setupHistoryHandler(t)

	router := gin.New()
	router.GET("/repos/:owner/:repo/history", handler.Get)

	performRequest(router, "GET", "/repos/octocat/hello-world/history", nil)
	w := performRequest(router, "GET", "/repos/octocat/hello-world/history", nil)
	resp := parseResponse(t, w)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, model.HistorySourceRedis, data["source"])
	assert.Equal(t, true, data["cached"])
}

func TestHistoryHandler_Get_InvalidPerPage(t *testing.T) {
	handler := setupHistoryHandler(t)

	router := gin.New()
	router.GET("/repos/:owner/:repo/history", handler.Get)

	w := performRequest(router, "GET", "/repos/octocat/hello-world/history?per_page=500", nil)
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeParamError, resp.Code)
}

func TestHistoryHandler_Get_InvalidSince(t *testing.T) {
	handler := setupHistoryHandler(t)

	router := gin.New()
	router.GET("/repos/:owner/:repo/history", handler.Get)

	w := performRequest(router, "GET", "/repos/octocat/hello-world/history?since=yesterday", nil)
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeParamError, resp.Code)
}

func TestHistoryHandler_Get_ForceRefresh(t *testing.T) {
	handler := setupHistoryHandler(t)

	router := gin.New()
	router.GET("/repos/:owner/:repo/history", handler.Get)

	performRequest(router, "GET", "/repos/octocat/hello-world/history", nil)
	w := performRequest(router, "GET", "/repos/octocat/hello-world/history?force_refresh=true", nil)
	resp := parseResponse(t, w)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, model.HistorySourceGithub, data["source"])
	assert.Equal(t, false, data["cached"])
}
