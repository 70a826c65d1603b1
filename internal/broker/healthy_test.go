package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHealthyPollsUntilWorkerResponds exercises the 10x500ms poll loop: the
// first couple of polls find no result yet, and Healthy only returns true
// once a fake worker writes a SUCCESS result a beat later.
func TestHealthyPollsUntilWorkerResponds(t *testing.T) {
	srv, err := miniredis.Run()
	require.NoError(t, err)
	defer srv.Close()

	client := New(Config{Addr: srv.Addr()})
	defer client.Close()

	probe := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer probe.Close()

	go func() {
		ctx := context.Background()

		var raw []byte
		for i := 0; i < 40; i++ {
			v, err := probe.RPop(ctx, queueName).Bytes()
			if err == nil {
				raw = v
				break
			}
			time.Sleep(25 * time.Millisecond)
		}
		if raw == nil {
			return
		}

		var env Envelope
		if json.Unmarshal(raw, &env) != nil {
			return
		}

		// Delay the answer past the first poll so the loop actually iterates
		// more than once before succeeding.
		time.Sleep(700 * time.Millisecond)

		meta := TaskMeta{Status: StatusSuccess, Result: map[string]interface{}{"ok": true}}
		metaBytes, _ := json.Marshal(meta)
		probe.Set(ctx, resultKeyPrefix+env.Headers.ID, metaBytes, 0)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
	defer cancel()

	assert.True(t, client.Healthy(ctx))
}

// TestHealthyReportsFalseWhenWorkerNeverResponds exercises the bounded
// timeout: with no worker answering, Healthy must report false rather than
// block indefinitely.
func TestHealthyReportsFalseWhenWorkerNeverResponds(t *testing.T) {
	srv, err := miniredis.Run()
	require.NoError(t, err)
	defer srv.Close()

	client := New(Config{Addr: srv.Addr()})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
	defer cancel()

	assert.False(t, client.Healthy(ctx))
}
