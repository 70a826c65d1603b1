// Package broker speaks the wire protocol of an external Celery-compatible
// worker runtime over a Redis-style list/key-value store. The envelope
// shape is an external contract (the worker fleet is not in our control)
// and must be preserved bit-exact: see envelope.go and the golden tests.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ifcatlas/api/internal/apperr"
)

const (
	queueName       = "celery"
	resultKeyPrefix = "celery-task-meta-"
	healthTaskName  = "app.workers.health_check"
	ifcTaskName     = "app.workers.ifc_processing.process_ifc_file"
	cacheKeyPrefix  = "ifcatlas-cache:"
)

// Config configures the shared broker client singleton.
type Config struct {
	Addr     string // host:port, takes precedence over Host/Port if set
	Host     string
	Port     int
	Password string
	DB       int
}

// Client is a shared, lazily-connected singleton around the Redis broker.
// On transient connection loss it reconnects with capped backoff on the
// next operation (the go-redis client pools connections internally and
// retries at the connection-pool level; Enqueue/GetResult add the
// application-level retry envisioned by the design).
type Client struct {
	rdb *redis.Client
}

// New constructs the shared broker client. The connection is lazy: no
// network round-trip happens until the first operation.
func New(cfg Config) *Client {
	addr := cfg.Addr
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	return &Client{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Enqueue pushes a task envelope onto the celery queue, retrying transient
// connection failures with capped backoff (min(n*50ms, 2s), up to 3
// retries).
func (c *Client) Enqueue(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return &apperr.BrokerError{Op: "marshal envelope", Err: err}
	}

	var lastErr error
	for attempt := 0; attempt <= 3; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 50 * time.Millisecond
			if backoff > 2*time.Second {
				backoff = 2 * time.Second
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return &apperr.BrokerError{Op: "enqueue", Err: ctx.Err()}
			}
		}

		if err := c.rdb.LPush(ctx, queueName, body).Err(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return &apperr.BrokerError{Op: "enqueue", Err: lastErr}
}

// GetResult fetches the raw result-store JSON for a task, or nil if no
// result has been written yet (the worker has not started/finished).
// Transient failures are retried with the same capped backoff as Enqueue.
func (c *Client) GetResult(ctx context.Context, taskID string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= 3; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
			case <-ctx.Done():
				return nil, &apperr.BrokerError{Op: "get result", Err: ctx.Err()}
			}
		}

		val, err := c.rdb.Get(ctx, resultKeyPrefix+taskID).Bytes()
		if err == redis.Nil {
			return nil, nil
		}
		if err == nil {
			return val, nil
		}
		lastErr = err
	}

	return nil, &apperr.BrokerError{Op: "get result", Err: lastErr}
}

// Ping checks broker connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return &apperr.BrokerError{Op: "ping", Err: err}
	}
	return nil
}

// CacheGet fetches a cached value by key, advisory and cache-aside: a miss
// or error both come back as (nil, false, err-or-nil) so callers fail open
// straight to the source of truth rather than erroring the request.
func (c *Client) CacheGet(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.rdb.Get(ctx, cacheKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &apperr.BrokerError{Op: "cache get", Err: err}
	}
	return val, true, nil
}

// CacheSet writes a cached value with the given TTL. Best-effort: callers
// are expected to log and continue on error rather than fail the request.
func (c *Client) CacheSet(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, cacheKeyPrefix+key, value, ttl).Err(); err != nil {
		return &apperr.BrokerError{Op: "cache set", Err: err}
	}
	return nil
}

// CacheInvalidate deletes every cached entry whose key matches pattern
// (e.g. "buildings:*"), via SCAN rather than KEYS so invalidation never
// blocks the broker on a large keyspace.
func (c *Client) CacheInvalidate(ctx context.Context, pattern string) error {
	iter := c.rdb.Scan(ctx, 0, cacheKeyPrefix+pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return &apperr.BrokerError{Op: "cache invalidate scan", Err: err}
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return &apperr.BrokerError{Op: "cache invalidate del", Err: err}
	}
	return nil
}

// DispatchIFCProcessing builds and enqueues the extraction task for a
// newly-completed upload, returning the generated task UUID.
func (c *Client) DispatchIFCProcessing(ctx context.Context, fileID, s3Key string) (string, error) {
	env, taskID, err := NewEnvelope(ifcTaskName, []interface{}{fileID, s3Key}, nil)
	if err != nil {
		return "", &apperr.BrokerError{Op: "build envelope", Err: err}
	}
	if err := c.Enqueue(ctx, env); err != nil {
		return "", err
	}
	return taskID, nil
}

// DispatchHealthCheck enqueues a health_check task and returns its ID.
func (c *Client) DispatchHealthCheck(ctx context.Context) (string, error) {
	env, taskID, err := NewEnvelope(healthTaskName, []interface{}{}, nil)
	if err != nil {
		return "", &apperr.BrokerError{Op: "build envelope", Err: err}
	}
	if err := c.Enqueue(ctx, env); err != nil {
		return "", err
	}
	return taskID, nil
}

// Healthy dispatches a health_check task and polls the result store up to
// ten times at 500ms intervals, bounding total wait to 5s. It reports false
// on any enqueue failure or on timeout rather than blocking indefinitely.
func (c *Client) Healthy(ctx context.Context) bool {
	taskID, err := c.DispatchHealthCheck(ctx)
	if err != nil {
		return false
	}

	for i := 0; i < 10; i++ {
		raw, err := c.GetResult(ctx, taskID)
		if err == nil && raw != nil {
			var meta TaskMeta
			if json.Unmarshal(raw, &meta) == nil && meta.Status == StatusSuccess {
				return true
			}
		}

		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return false
		}
	}

	return false
}
