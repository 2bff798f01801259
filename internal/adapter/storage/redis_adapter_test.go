package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/graphql-crm/internal/port"
)

func getRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func newTestQueue(t *testing.T, client *redis.Client) *RedisAdapter {
	t.Helper()
	queue := "test:tasks:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), queue) })
	return NewRedisAdapter(client, queue, time.Minute)
}

func TestEnqueueDequeue(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	q := newTestQueue(t, client)

	task := port.Task{ID: uuid.NewString(), Job: "report", EnqueuedAt: time.Now().UTC().Truncate(time.Second)}
	ok, err := q.Enqueue(ctx, task, "")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, "report", got.Job)
	assert.True(t, task.EnqueuedAt.Equal(got.EnqueuedAt))
}

func TestDequeue_Empty(t *testing.T) {
	client := getRedisClient(t)
	q := newTestQueue(t, client)

	got, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDequeue_FIFO(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	q := newTestQueue(t, client)

	for _, job := range []string{"first", "second"} {
		_, err := q.Enqueue(ctx, port.Task{ID: uuid.NewString(), Job: job}, "")
		require.NoError(t, err)
	}

	first, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	second, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "first", first.Job)
	assert.Equal(t, "second", second.Job)
}

func TestEnqueue_DedupeConcurrent(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	q := newTestQueue(t, client)

	dedupeKey := "heartbeat:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), dedupeKeyPrefix+dedupeKey) })

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := q.Enqueue(ctx, port.Task{ID: uuid.NewString(), Job: "heartbeat"}, dedupeKey)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, accepted.Load())
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
