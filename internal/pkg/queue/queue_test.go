package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupQueue(t *testing.T) *Queue {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewQueue(client, "analysis_jobs")
}

func TestQueue_PushPop(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	msg := &JobMessage{JobID: 1, UserID: 2, Owner: "octocat", Name: "hello-world", Branch: "main"}
	require.NoError(t, q.Push(ctx, msg))

	n, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.JobID)
	assert.Equal(t, "octocat", got.Owner)
	assert.Equal(t, "main", got.Branch)
}

func TestQueue_FIFO(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, &JobMessage{JobID: 1}))
	require.NoError(t, q.Push(ctx, &JobMessage{JobID: 2}))

	first, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	second, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.JobID)
	assert.Equal(t, int64(2), second.JobID)
}

func TestQueue_PopTimeout(t *testing.T) {
	q := setupQueue(t)

	msg, err := q.Pop(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, msg)
}
