package suspend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	// continuationKey is the sorted set scored by resume time (unix seconds).
	continuationKey = "fixflow:continuations"
	// payloadKeyPrefix prefixes the hash of execution id -> serialized state.
	payloadKeyPrefix = "fixflow:continuation:"
)

// claimScript pops due members and returns their payloads in one round trip
// so two workers never claim the same continuation.
var claimScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
local payloads = {}
for i, member in ipairs(due) do
	redis.call('ZREM', KEYS[1], member)
	local key = ARGV[3] .. member
	payloads[i] = redis.call('GET', key)
	redis.call('DEL', key)
end
return payloads
`)

// RedisQueue implements Queue on a redis sorted set.
type RedisQueue struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewRedisQueue connects to redis at the given URL.
func NewRedisQueue(redisURL string, logger *slog.Logger) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &RedisQueue{
		client: redis.NewClient(opts),
		logger: logger.With("module", "suspend_queue"),
	}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, c Continuation) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal continuation: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, payloadKeyPrefix+c.ExecutionID, payload, 0)
	pipe.ZAdd(ctx, continuationKey, redis.Z{
		Score:  float64(c.ResumeAt.Unix()),
		Member: c.ExecutionID,
	})

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to enqueue continuation %s: %w", c.ExecutionID, err)
	}

	q.logger.InfoContext(ctx, "Continuation enqueued",
		"execution_id", c.ExecutionID,
		"workflow_id", c.WorkflowID,
		"resume_at", c.ResumeAt)

	return nil
}

func (q *RedisQueue) ClaimDue(ctx context.Context, now time.Time, limit int) ([]Continuation, error) {
	result, err := claimScript.Run(ctx, q.client,
		[]string{continuationKey},
		now.Unix(), limit, payloadKeyPrefix,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim due continuations: %w", err)
	}

	raw, ok := result.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected claim script result type %T", result)
	}

	continuations := make([]Continuation, 0, len(raw))

	for _, item := range raw {
		payload, ok := item.(string)
		if !ok {
			continue
		}

		var c Continuation

		err := json.Unmarshal([]byte(payload), &c)
		if err != nil {
			q.logger.ErrorContext(ctx, "Dropping undecodable continuation", "error", err)

			continue
		}

		continuations = append(continuations, c)
	}

	return continuations, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
