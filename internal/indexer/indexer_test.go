package indexer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticReader(contents map[string]string) ReadFunc {
	return func(_ context.Context, path string) (string, error) {
		content, ok := contents[path]
		if !ok {
			return "", errors.New("not found")
		}
		return content, nil
	}
}

func TestEstimateLines(t *testing.T) {
	assert.Equal(t, 100, EstimateLines(8000))
	assert.Equal(t, 1, EstimateLines(0))
	assert.Equal(t, 1, EstimateLines(79))
	assert.Equal(t, 1, EstimateLines(80))
}

func TestBuildIndex_SkipsOversizedWithoutBudget(t *testing.T) {
	listing := []ListedFile{
		{Path: "huge.go", Size: 500 * 1024},
		{Path: "a.go", Size: 100},
		{Path: "b.go", Size: 100},
	}
	contents := map[string]string{
		"a.go": "package a\n\nfunc A() {}\n",
		"b.go": "package b\n\nfunc B() {}\n",
	}

	entries, err := BuildIndex(context.Background(), listing, staticReader(contents),
		Options{MaxFileSize: 100 * 1024, MaxFiles: 2}, nil, nil)
	require.NoError(t, err)

	// The oversized file must not consume a budget slot
	require.Len(t, entries, 2)
	assert.Equal(t, "a.go", entries[0].Path)
	assert.Equal(t, "b.go", entries[1].Path)
}

func TestBuildIndex_SkipPatterns(t *testing.T) {
	listing := []ListedFile{
		{Path: "node_modules/lodash/index.js", Size: 100},
		{Path: "vendor/pkg/mod.go", Size: 100},
		{Path: ".git/config", Size: 100},
		{Path: "dist/bundle.min.js", Size: 100},
		{Path: "src/app.js", Size: 100},
	}
	contents := map[string]string{
		"src/app.js": "console.log('hi')\n",
	}

	entries, err := BuildIndex(context.Background(), listing, staticReader(contents),
		Options{MaxFileSize: 100 * 1024, MaxFiles: 200}, nil, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "src/app.js", entries[0].Path)
}

func TestBuildIndex_TestAndDocToggles(t *testing.T) {
	listing := []ListedFile{
		{Path: "main.go", Size: 100},
		{Path: "main_test.go", Size: 100},
		{Path: "README.md", Size: 100},
	}
	contents := map[string]string{
		"main.go":      "package main\n",
		"main_test.go": "package main\n",
		"README.md":    "# readme\n",
	}
	opts := Options{MaxFileSize: 100 * 1024, MaxFiles: 200}

	entries, err := BuildIndex(context.Background(), listing, staticReader(contents), opts, nil, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "main.go", entries[0].Path)

	opts.IncludeTests = true
	opts.IncludeDocs = true
	entries, err = BuildIndex(context.Background(), listing, staticReader(contents), opts, nil, nil)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestBuildIndex_ReadFailureFallsBackToEstimate(t *testing.T) {
	listing := []ListedFile{
		{Path: "broken.go", Size: 8000},
	}

	var statuses []string
	onFile := func(path, status string) {
		statuses = append(statuses, status)
	}

	entries, err := BuildIndex(context.Background(), listing, staticReader(nil),
		Options{MaxFileSize: 100 * 1024, MaxFiles: 200}, nil, onFile)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 100, entries[0].Lines)
	require.Len(t, statuses, 1)
	assert.Contains(t, statuses[0], "failed to read")
}

func TestBuildIndex_ExactLineCount(t *testing.T) {
	listing := []ListedFile{
		{Path: "three.go", Size: 30, SHA: "deadbeef"},
	}
	contents := map[string]string{
		"three.go": "package x\nvar A = 1\nvar B = 2",
	}

	entries, err := BuildIndex(context.Background(), listing, staticReader(contents),
		Options{MaxFileSize: 100 * 1024, MaxFiles: 200}, nil, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].Lines)
	assert.Equal(t, "Go", entries[0].Language)
	assert.Equal(t, ".go", entries[0].Extension)
	assert.Equal(t, "deadbeef", entries[0].ContentHash)
}

func TestBuildIndex_BinaryFilesAreEstimated(t *testing.T) {
	listing := []ListedFile{
		{Path: "logo.png", Size: 4000},
	}

	entries, err := BuildIndex(context.Background(), listing, staticReader(nil),
		Options{MaxFileSize: 100 * 1024, MaxFiles: 200}, nil, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 50, entries[0].Lines)
	assert.Equal(t, "Unknown", entries[0].Language)
}

func TestBuildIndex_ProgressEveryFiveFiles(t *testing.T) {
	var listing []ListedFile
	contents := map[string]string{}
	for i := 0; i < 12; i++ {
		path := fmt.Sprintf("file%02d.go", i)
		listing = append(listing, ListedFile{Path: path, Size: 20})
		contents[path] = "package x\n"
	}

	var reports [][2]int
	onProgress := func(processed, total int) {
		reports = append(reports, [2]int{processed, total})
	}

	entries, err := BuildIndex(context.Background(), listing, staticReader(contents),
		Options{MaxFileSize: 100 * 1024, MaxFiles: 200}, onProgress, nil)
	require.NoError(t, err)
	assert.Len(t, entries, 12)
	assert.Equal(t, [][2]int{{5, 12}, {10, 12}}, reports)
}

func TestBuildIndex_StopsAtMaxFiles(t *testing.T) {
	var listing []ListedFile
	contents := map[string]string{}
	for i := 0; i < 10; i++ {
		path := fmt.Sprintf("file%02d.go", i)
		listing = append(listing, ListedFile{Path: path, Size: 20})
		contents[path] = "package x\n"
	}

	entries, err := BuildIndex(context.Background(), listing, staticReader(contents),
		Options{MaxFileSize: 100 * 1024, MaxFiles: 3}, nil, nil)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestBuildIndex_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	listing := []ListedFile{{Path: "a.go", Size: 20}}
	_, err := BuildIndex(ctx, listing, staticReader(nil),
		Options{MaxFileSize: 100 * 1024, MaxFiles: 200}, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildIndex_AcceptedOutputIsStable(t *testing.T) {
	listing := []ListedFile{
		{Path: "src/app.js", Size: 100},
		{Path: "node_modules/react/index.js", Size: 100},
		{Path: "main_test.go", Size: 100},
		{Path: "internal/service/job.go", Size: 100},
	}
	contents := map[string]string{
		"src/app.js":              "console.log('hi')\n",
		"internal/service/job.go": "package service\n",
	}
	opts := Options{MaxFileSize: 100 * 1024, MaxFiles: 200}

	first, err := BuildIndex(context.Background(), listing, staticReader(contents), opts, nil, nil)
	require.NoError(t, err)
	require.Len(t, first, 2)

	// Feeding the accepted entries back in accepts all of them again
	relisted := make([]ListedFile, 0, len(first))
	for _, entry := range first {
		relisted = append(relisted, ListedFile{Path: entry.Path, Size: entry.Size})
	}
	second, err := BuildIndex(context.Background(), relisted, staticReader(contents), opts, nil, nil)
	require.NoError(t, err)
	assert.Len(t, second, len(first))
}

func TestBuildIndex_Deterministic(t *testing.T) {
	listing := []ListedFile{
		{Path: "b.go", Size: 20},
		{Path: "a.go", Size: 20},
		{Path: "c.py", Size: 20},
	}
	contents := map[string]string{
		"b.go": "package b\n",
		"a.go": "package a\n",
		"c.py": "print(1)\n",
	}
	opts := Options{MaxFileSize: 100 * 1024, MaxFiles: 200}

	first, err := BuildIndex(context.Background(), listing, staticReader(contents), opts, nil, nil)
	require.NoError(t, err)
	second, err := BuildIndex(context.Background(), listing, staticReader(contents), opts, nil, nil)
	require.NoError(t, err)

	// Same listing in, same index order out
	require.Len(t, first, 3)
	for i := range first {
		assert.Equal(t, first[i].Path, second[i].Path)
		assert.Equal(t, first[i].Lines, second[i].Lines)
	}
}
