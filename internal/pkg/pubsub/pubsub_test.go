package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPubSub(t *testing.T) (*Publisher, *Subscriber) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewPublisher(client), NewSubscriber(client)
}

func TestIndexingProgress(t *testing.T) {
	assert.Equal(t, 20, IndexingProgress(0, 100))
	assert.Equal(t, 40, IndexingProgress(50, 100))
	assert.Equal(t, 60, IndexingProgress(100, 100))
	assert.Equal(t, 60, IndexingProgress(150, 100)) // capped
	assert.Equal(t, 20, IndexingProgress(5, 0))     // unknown total
}

func TestPublishProgress_FillsDefaults(t *testing.T) {
	publisher, subscriber := setupPubSub(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *ProgressMessage, 1)
	go subscriber.Subscribe(ctx, func(msg *ProgressMessage) {
		received <- msg
	})
	time.Sleep(50 * time.Millisecond) // let the subscription settle

	err := publisher.PublishProgress(ctx, &ProgressMessage{
		UserID: 1,
		JobID:  2,
		Step:   StepAggregating,
	})
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, "job_progress", msg.Type)
		assert.Equal(t, StepAggregating, msg.Step)
		assert.Equal(t, 70, msg.Progress)
		assert.Equal(t, "正在统计代码指标", msg.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("progress message not delivered")
	}
}

func TestPublishProgress_ErrorStepForcesNegativeProgress(t *testing.T) {
	publisher, subscriber := setupPubSub(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *ProgressMessage, 1)
	go subscriber.Subscribe(ctx, func(msg *ProgressMessage) {
		received <- msg
	})
	time.Sleep(50 * time.Millisecond)

	err := publisher.PublishProgress(ctx, &ProgressMessage{
		UserID:   1,
		JobID:    2,
		Step:     StepError,
		Progress: 42, // must be overridden
		Error:    "boom",
	})
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, -1, msg.Progress)
		assert.Equal(t, "boom", msg.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("progress message not delivered")
	}
}

func TestPublishProgress_KeepsExplicitProgress(t *testing.T) {
	publisher, subscriber := setupPubSub(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *ProgressMessage, 1)
	go subscriber.Subscribe(ctx, func(msg *ProgressMessage) {
		received <- msg
	})
	time.Sleep(50 * time.Millisecond)

	err := publisher.PublishProgress(ctx, &ProgressMessage{
		UserID:    1,
		JobID:     2,
		Step:      StepIndexing,
		Progress:  IndexingProgress(50, 100),
		Processed: 50,
		Total:     100,
	})
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, 40, msg.Progress)
		assert.Equal(t, 50, msg.Processed)
	case <-time.After(2 * time.Second):
		t.Fatal("progress message not delivered")
	}
}

func TestSubscribe_StopsOnContextCancel(t *testing.T) {
	_, subscriber := setupPubSub(t)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- subscriber.Subscribe(ctx, func(*ProgressMessage) {})
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}
