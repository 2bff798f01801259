package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/graphql-crm/internal/port"
)

const dedupeKeyPrefix = "dedupe:"

// Claims the dedupe key and pushes the task in one step, so a task is never
// queued without its key or the other way round.
var enqueueScript = redis.NewScript(`
local queue = KEYS[1]
local dedupe = KEYS[2]
local payload = ARGV[1]
local ttl = tonumber(ARGV[2])

if dedupe ~= "" then
	local ok
	if ttl > 0 then
		ok = redis.call('SET', dedupe, 1, 'NX', 'PX', ttl)
	else
		ok = redis.call('SET', dedupe, 1, 'NX')
	end
	if not ok then
		return 0
	end
end

redis.call('LPUSH', queue, payload)
return 1
`)

type RedisAdapter struct {
	client    *redis.Client
	queue     string
	dedupeTTL time.Duration
}

func NewRedisAdapter(client *redis.Client, queue string, dedupeTTL time.Duration) *RedisAdapter {
	return &RedisAdapter{
		client:    client,
		queue:     queue,
		dedupeTTL: dedupeTTL,
	}
}

func (r *RedisAdapter) Enqueue(ctx context.Context, task port.Task, dedupeKey string) (bool, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return false, errors.Wrap(err, "encode task")
	}

	key := ""
	if dedupeKey != "" {
		key = dedupeKeyPrefix + dedupeKey
	}

	result, err := enqueueScript.Run(ctx, r.client,
		[]string{r.queue, key}, payload, r.dedupeTTL.Milliseconds()).Int()
	if err != nil {
		return false, errors.Wrap(err, "enqueue task")
	}
	return result == 1, nil
}

func (r *RedisAdapter) Dequeue(ctx context.Context, timeout time.Duration) (*port.Task, error) {
	res, err := r.client.BRPop(ctx, timeout, r.queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "pop task")
	}

	// res is [queue, payload]
	var task port.Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, errors.Wrap(err, "decode task")
	}
	return &task, nil
}

func (r *RedisAdapter) Len(ctx context.Context) (int64, error) {
	n, err := r.client.LLen(ctx, r.queue).Result()
	if err != nil {
		return 0, errors.Wrap(err, "queue length")
	}
	return n, nil
}
