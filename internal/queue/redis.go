package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisGateway implements Gateway over a single Redis instance: a list per
// function name holds ready messages, a sorted set per function name holds
// deferred ones keyed by their ready timestamp, and a set per function name
// tracks which client job ids are currently queued or running.
type RedisGateway struct {
	rdb *goredis.Client
	now func() time.Time
}

// Option configures a RedisGateway.
type Option func(*RedisGateway)

// WithClock overrides the gateway's notion of "now", for deterministic
// defer-window tests.
func WithClock(now func() time.Time) Option {
	return func(g *RedisGateway) { g.now = now }
}

// NewRedisGateway wraps an already-connected client as a Job Queue Gateway.
func NewRedisGateway(rdb *goredis.Client, opts ...Option) *RedisGateway {
	g := &RedisGateway{rdb: rdb, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func listKey(functionName string) string     { return "mavedb:queue:list:" + functionName }
func deferredKey(functionName string) string { return "mavedb:queue:deferred:" + functionName }
func dedupKey(functionName string) string    { return "mavedb:queue:dedup:" + functionName }

// Enqueue dedupes on clientJobID within functionName's namespace: SADD
// reports 0 added members when the id is already tracked, which is the
// gateway's "true-but-noop" case from spec §4.2.
func (g *RedisGateway) Enqueue(ctx context.Context, functionName string, jobID int64, clientJobID string, deferBy time.Duration) (bool, error) {
	added, err := g.rdb.SAdd(ctx, dedupKey(functionName), clientJobID).Result()
	if err != nil {
		return false, fmt.Errorf("queue: dedup check failed: %w", err)
	}
	if added == 0 {
		slog.DebugContext(ctx, "enqueue deduped", "function", functionName, "client_job_id", clientJobID)
		return true, nil
	}

	msg := Message{FunctionName: functionName, JobID: jobID, ClientJobID: clientJobID}
	payload, err := json.Marshal(msg)
	if err != nil {
		return false, fmt.Errorf("queue: failed to encode message: %w", err)
	}

	if deferBy <= 0 {
		if err := g.rdb.LPush(ctx, listKey(functionName), payload).Err(); err != nil {
			return false, fmt.Errorf("queue: failed to push message: %w", err)
		}
		return true, nil
	}

	readyAt := float64(g.now().Add(deferBy).Unix())
	if err := g.rdb.ZAdd(ctx, deferredKey(functionName), goredis.Z{Score: readyAt, Member: payload}).Err(); err != nil {
		return false, fmt.Errorf("queue: failed to schedule deferred message: %w", err)
	}
	return true, nil
}

// Dequeue promotes any deferred messages whose ready time has passed, then
// blocks up to timeout for a ready message.
func (g *RedisGateway) Dequeue(ctx context.Context, functionName string, timeout time.Duration) (Message, bool, error) {
	if err := g.promoteDeferred(ctx, functionName); err != nil {
		return Message{}, false, err
	}

	result, err := g.rdb.BRPop(ctx, timeout, listKey(functionName)).Result()
	if errors.Is(err, goredis.Nil) {
		return Message{}, false, nil
	}
	if err != nil {
		return Message{}, false, fmt.Errorf("queue: dequeue failed: %w", err)
	}
	if len(result) != 2 {
		return Message{}, false, fmt.Errorf("queue: unexpected BRPOP reply shape")
	}

	var msg Message
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		return Message{}, false, fmt.Errorf("queue: failed to decode message: %w", err)
	}
	return msg, true, nil
}

func (g *RedisGateway) promoteDeferred(ctx context.Context, functionName string) error {
	now := float64(g.now().Unix())
	due, err := g.rdb.ZRangeByScore(ctx, deferredKey(functionName), &goredis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%f", now),
	}).Result()
	if err != nil {
		return fmt.Errorf("queue: failed to scan deferred messages: %w", err)
	}
	for _, payload := range due {
		pipe := g.rdb.TxPipeline()
		pipe.ZRem(ctx, deferredKey(functionName), payload)
		pipe.LPush(ctx, listKey(functionName), payload)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("queue: failed to promote deferred message: %w", err)
		}
	}
	return nil
}

// Ack releases clientJobID's dedup membership. A subsequent enqueue for the
// same urn (e.g. a retry) is accepted again once this call returns.
func (g *RedisGateway) Ack(ctx context.Context, functionName string, clientJobID string) error {
	if err := g.rdb.SRem(ctx, dedupKey(functionName), clientJobID).Err(); err != nil {
		return fmt.Errorf("queue: failed to release dedup membership: %w", err)
	}
	return nil
}
