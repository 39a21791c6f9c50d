package core

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReportQueue is a reliable list queue: reserved items sit in a sorted set scored by their
// visibility deadline until acked or reclaimed.
type ReportQueue interface {
	Enqueue(ctx context.Context, id string) error
	Reserve(ctx context.Context, visibility time.Duration) (string, error)
	Ack(ctx context.Context, id string) error
	RequeueExpired(ctx context.Context, now time.Time) ([]string, error)
}

// RedisClientRaw is the subset of go-redis used for heartbeats and queue stats.
type RedisClientRaw interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
	ZCard(ctx context.Context, key string) *redis.IntCmd
	ZCount(ctx context.Context, key, min, max string) *redis.IntCmd
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// reserveScript: RPOP pending, ZADD processing with the deadline as score.
var reserveScript = redis.NewScript(`
local v = redis.call('RPOP', KEYS[1])
if v then
  redis.call('ZADD', KEYS[2], ARGV[1], v)
end
return v
`)

// requeueScript moves every item whose deadline passed back to pending.
var requeueScript = redis.NewScript(`
local vals = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
if #vals > 0 then
  redis.call('ZREM', KEYS[1], unpack(vals))
  redis.call('LPUSH', KEYS[2], unpack(vals))
end
return vals
`)

// RedisQueue implements ReportQueue on a pending list and a processing sorted set.
type RedisQueue struct {
	client        *redis.Client
	pendingKey    string
	processingKey string
}

// NewRedisQueue binds the queue to the report keys.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client, pendingKey: PendingReportsKey, processingKey: ProcessingReportsKey}
}

// Enqueue pushes onto the head of the pending list; Reserve pops from the tail (FIFO).
func (q *RedisQueue) Enqueue(ctx context.Context, id string) error {
	return q.client.LPush(ctx, q.pendingKey, id).Err()
}

// Reserve returns redis.Nil when nothing is pending.
func (q *RedisQueue) Reserve(ctx context.Context, visibility time.Duration) (string, error) {
	deadline := float64(time.Now().Add(visibility).UnixMilli())
	res, err := reserveScript.Run(ctx, q.client, []string{q.pendingKey, q.processingKey}, deadline).Result()
	if err != nil {
		return "", err
	}
	s, ok := res.(string)
	if !ok {
		return "", errors.New("unexpected reserve response type")
	}
	return s, nil
}

func (q *RedisQueue) Ack(ctx context.Context, id string) error {
	return q.client.ZRem(ctx, q.processingKey, id).Err()
}

func (q *RedisQueue) RequeueExpired(ctx context.Context, now time.Time) ([]string, error) {
	res, err := requeueScript.Run(ctx, q.client, []string{q.processingKey, q.pendingKey}, float64(now.UnixMilli())).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	raw, ok := res.([]interface{})
	if !ok {
		return nil, errors.New("unexpected requeue response type")
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}
