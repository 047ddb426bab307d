package rescache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	uuid "github.com/satori/go.uuid"
	"golang.org/x/sync/errgroup"
)

// heartbeatInterval mirrors the teacher repo's lockSleep constant: the
// poll cadence a non-acquirer falls back to between Pub/Sub wakeups.
const heartbeatInterval = 50 * time.Millisecond

// releaseScript atomically checks lock ownership, deletes the lock, and
// publishes the release notification in one round trip, so lock state and
// the wakeup signal never diverge. Grounded on the unlock/replace/extend
// scripts in other_examples' dsync/idempotent package, adapted from
// delete+replace to delete+publish.
var releaseScript = redis.NewScript(`
local key = KEYS[1]
local channel = KEYS[2]
local token = ARGV[1]
local message = ARGV[2]
if redis.call('GET', key) == token then
	redis.call('DEL', key)
	redis.call('PUBLISH', channel, message)
	return 1
end
return 0
`)

// distributedLock implements spec §4.6: an optional decorator around the
// fill step of GetOrFetch that prevents concurrent fill across processes,
// not just within one. It never alters the admission or single-flight
// contracts of ResilientCache; it only wraps what happens once a process
// has already won its local single-flight race.
type distributedLock struct {
	lockTTL time.Duration
	maxWait time.Duration
	metrics *metricSet
}

func newDistributedLock(_ redis.UniversalClient, lockTTL, maxWait time.Duration, metrics *metricSet) *distributedLock {
	return &distributedLock{lockTTL: lockTTL, maxWait: maxWait, metrics: metrics}
}

// fill attempts to acquire the distributed lock for key. The acquirer runs
// innerFill and releases the lock when done. A non-acquirer waits (bounded
// by maxWait) for the release notification or a heartbeat poll showing the
// lock gone, then calls reread to pick up what the acquirer wrote; if
// reread finds nothing, or the wait times out, it falls back to running
// innerFill itself in degraded mode. Any Redis error on the lock path is
// fail-open: log and proceed without a lock.
func (l *distributedLock) fill(
	ctx context.Context,
	client redis.UniversalClient,
	key string,
	innerFill func(context.Context) (json.RawMessage, error),
	reread func(context.Context, string) (json.RawMessage, error, bool),
) (json.RawMessage, error) {
	lk := lockKeyFor(key)
	token := uuid.NewV4().String()

	acquired, err := client.SetNX(ctx, lk, token, l.lockTTL).Result()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("rescache: distributed lock acquire failed, proceeding without lock")
		l.metrics.Error.WithLabelValues(errLabelLock).Inc()
		return innerFill(ctx)
	}
	if acquired {
		defer l.release(ctx, client, key, token)
		return innerFill(ctx)
	}

	if l.waitForRelease(ctx, client, key) {
		if val, rerr, hit := reread(ctx, key); hit {
			return val, rerr
		}
	}
	return innerFill(ctx)
}

// waitForRelease races a Pub/Sub subscription against a heartbeat EXISTS
// poll, bounded by maxWait, using errgroup the same way the teacher's
// aggregateSend/listenKeyInvalidate goroutine pair shares a cancellation
// scope. Returns true as soon as either signal fires.
func (l *distributedLock) waitForRelease(ctx context.Context, client redis.UniversalClient, key string) bool {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	pubsub := client.Subscribe(waitCtx, releaseChannelFor(key))
	defer pubsub.Close()

	released := make(chan struct{}, 1)
	signal := func() {
		select {
		case released <- struct{}{}:
		default:
		}
	}

	g, gctx := errgroup.WithContext(waitCtx)
	g.Go(func() error {
		select {
		case <-pubsub.Channel():
			signal()
		case <-gctx.Done():
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				exists, err := client.Exists(gctx, lockKeyFor(key)).Result()
				if err == nil && exists == 0 {
					signal()
					return nil
				}
			case <-gctx.Done():
				return nil
			}
		}
	})
	go func() { _ = g.Wait() }()

	select {
	case <-released:
		return true
	case <-waitCtx.Done():
		return false
	}
}

func (l *distributedLock) release(ctx context.Context, client redis.UniversalClient, key, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	err := releaseScript.Run(ctx, client, []string{lockKeyFor(key), releaseChannelFor(key)}, token, "released").Err()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("rescache: failed to release distributed lock")
		l.metrics.Error.WithLabelValues(errLabelLock).Inc()
	}
}

func lockKeyFor(key string) string        { return key + ":lock" }
func releaseChannelFor(key string) string { return key + ":lock:released" }
