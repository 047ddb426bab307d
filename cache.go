package rescache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultMaxPending = 512

// Fetcher is the contract ResilientCache invokes on a miss. Its contract
// is to honor ctx (raising when it fires) and to raise categorized errors
// otherwise. For the address/geocoding paths it is built by composing
// ExecuteStrategy over a provider list.
type Fetcher func(ctx context.Context) (json.RawMessage, error)

// ResilientCache is a read-through cache with in-process single-flight,
// bounded admission, fetch-timeout coordination, and positive/negative
// envelopes with jittered TTL. One instance owns one admission budget; the
// spec's design note that "each logical cache owns its own instance" means
// callers construct one ResilientCache per logical cache (e.g. CEP vs
// geocoding), never share one across them.
type ResilientCache struct {
	appName string
	client  redis.UniversalClient
	table   *pendingTable

	fetchTimeout   time.Duration
	positiveTTL    time.Duration
	negativeTTL    time.Duration
	jitterFraction float64

	metrics *metricSet
	tracer  trace.Tracer
	lock    *distributedLock
}

// Option configures a ResilientCache at construction.
type Option func(*ResilientCache)

// WithFetchTimeout sets FETCH_TIMEOUT_MS, the local deadline composed
// any-of with the caller's own context.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *ResilientCache) { c.fetchTimeout = d }
}

// WithTTLs sets the base positive and negative TTLs consumed by PickTTL. A
// non-positive negative TTL disables negative caching.
func WithTTLs(positive, negative time.Duration) Option {
	return func(c *ResilientCache) { c.positiveTTL, c.negativeTTL = positive, negative }
}

// WithJitterFraction sets the symmetric jitter fraction applied to TTLs.
func WithJitterFraction(f float64) Option {
	return func(c *ResilientCache) { c.jitterFraction = f }
}

// WithMaxPending bounds the single-flight table's admitted concurrent
// distinct keys (MAX_PENDING).
func WithMaxPending(n int) Option {
	return func(c *ResilientCache) { c.table = newPendingTable(n) }
}

// WithMetrics registers this cache's Prometheus collectors under the
// default registerer.
func WithMetrics() Option {
	return func(c *ResilientCache) { c.metrics.register() }
}

// WithDistributedLock enables the §4.6 legacy mode: the fill step is
// wrapped in a keyed Redis lock with Pub/Sub-coordinated waiting so that
// multiple processes do not fill the same key concurrently.
func WithDistributedLock(lockTTL, maxWait time.Duration) Option {
	return func(c *ResilientCache) {
		c.lock = newDistributedLock(c.client, lockTTL, maxWait, c.metrics)
	}
}

// NewResilientCache constructs a ResilientCache against client, scoped by
// appName for metric names (matching the teacher's "%s_dcache_..." naming
// convention).
func NewResilientCache(appName string, client redis.UniversalClient, opts ...Option) *ResilientCache {
	c := &ResilientCache{
		appName:        appName,
		client:         client,
		table:          newPendingTable(defaultMaxPending),
		fetchTimeout:   2 * time.Second,
		positiveTTL:    60 * time.Second,
		negativeTTL:    30 * time.Second,
		jitterFraction: 0.1,
		metrics:        newMetricSet(appName),
		tracer:         otel.Tracer("rescache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close unregisters this cache's Prometheus collectors.
func (c *ResilientCache) Close() {
	c.metrics.unregister()
}

// GetOrFetch implements spec §4.4: admission, single-flight coalescing,
// Redis read-through, fetcher orchestration under a combined cancellation
// token, and envelope writeback.
func (c *ResilientCache) GetOrFetch(ctx context.Context, key string, fetch Fetcher, mapErr ErrorMapper) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "ResilientCache.GetOrFetch")
	defer span.End()

	// Steps 1-2: admission gate, then fast-path join.
	if join, rejected := c.table.admitOrJoin(key); rejected {
		c.metrics.Admission.WithLabelValues(admissionRejected).Inc()
		return nil, ErrServiceOverload
	} else if join != nil {
		val, err := join.wait()
		return asRawMessage(val), err
	}
	c.metrics.Admission.WithLabelValues(admissionAccepted).Inc()

	// Step 3: Redis read path.
	if val, err, hit := c.readThrough(ctx, key); hit {
		return val, err
	}

	// Step 4-5: double-check dedup, then install.
	call, install := c.table.joinOrInstall(key)
	if !install {
		val, err := call.wait()
		return asRawMessage(val), err
	}
	defer c.table.remove(key)

	val, err := c.fill(ctx, key, fetch, mapErr)
	call.settle(val, err)
	return val, err
}

// readThrough performs the Redis GET and decodes whatever envelope, if
// any, is present. hit is false on a plain miss (key absent, transport
// error, or malformed bytes); in all hit=false cases the fetcher must
// still run.
func (c *ResilientCache) readThrough(ctx context.Context, key string) (val json.RawMessage, err error, hit bool) {
	start := time.Now()
	raw, rerr := c.client.Get(ctx, key).Bytes()
	if rerr != nil {
		if !errors.Is(rerr, redis.Nil) {
			log.Warn().Err(rerr).Str("key", key).Msg("rescache: redis GET failed, treating as miss")
			c.metrics.Error.WithLabelValues(errLabelReadTransport).Inc()
		}
		return nil, nil, false
	}

	env, derr := DecodeEnvelope(raw)
	switch {
	case errors.Is(derr, ErrCorruptedCache):
		return nil, ErrCorruptedCache, true
	case errors.Is(derr, ErrMalformedEnvelope):
		log.Warn().Str("key", key).Msg("rescache: malformed envelope, treating as miss")
		c.metrics.Error.WithLabelValues(errLabelMalformed).Inc()
		return nil, nil, false
	case derr != nil:
		return nil, derr, true
	}

	c.metrics.Hit.WithLabelValues(hitLabelRedis).Inc()
	c.metrics.Latency.WithLabelValues(hitLabelRedis).Observe(float64(time.Since(start).Milliseconds()))

	if env.Success {
		return env.Value, nil, true
	}
	return nil, &CachedFailure{
		Type:    env.Err.Type,
		Message: env.Err.Message,
		Data:    env.Err.Data,
	}, true
}

type fetchResult struct {
	val json.RawMessage
	err error
}

// fill runs the fetcher under the effective cancel token and applies the
// outcome-handling rules of spec §4.4 step 7 / §7.
func (c *ResilientCache) fill(ctx context.Context, key string, fetch Fetcher, mapErr ErrorMapper) (json.RawMessage, error) {
	if c.lock != nil {
		return c.lock.fill(ctx, c.client, key,
			func(ctx context.Context) (json.RawMessage, error) {
				return c.runFetch(ctx, key, fetch, mapErr)
			},
			func(ctx context.Context, key string) (json.RawMessage, error, bool) {
				return c.readThrough(ctx, key)
			},
		)
	}
	return c.runFetch(ctx, key, fetch, mapErr)
}

func (c *ResilientCache) runFetch(ctx context.Context, key string, fetch Fetcher, mapErr ErrorMapper) (json.RawMessage, error) {
	effective, cancel := effectiveCancel(ctx, c.fetchTimeout)
	defer cancel()

	if effective.Err() != nil {
		return nil, normalizeCancelReason(context.Cause(effective))
	}

	resultCh := make(chan fetchResult, 1)
	start := time.Now()
	go func() {
		v, e := fetch(effective)
		resultCh <- fetchResult{v, e}
	}()

	var res fetchResult
	select {
	case res = <-resultCh:
		if effective.Err() != nil {
			return nil, normalizeCancelReason(context.Cause(effective))
		}
	case <-effective.Done():
		return nil, normalizeCancelReason(context.Cause(effective))
	}

	if res.err == nil {
		c.metrics.Hit.WithLabelValues(hitLabelFetch).Inc()
		c.metrics.Latency.WithLabelValues(hitLabelFetch).Observe(float64(time.Since(start).Milliseconds()))
		c.writeEnvelope(ctx, key, SuccessEnvelope(res.val), false)
		return res.val, nil
	}

	var cf *CachedFailure
	if mapErr != nil {
		cf = mapErr(res.err)
	}
	if cf == nil {
		return nil, res.err
	}
	c.writeEnvelope(ctx, key, FailureEnvelope(cf), true)
	return nil, cf
}

// writeEnvelope best-effort writes an envelope with a jittered TTL; a
// write failure is logged and swallowed, never surfaced to the caller.
func (c *ResilientCache) writeEnvelope(ctx context.Context, key string, env Envelope, negative bool) {
	ttl := PickTTL(negative, c.positiveTTL, c.negativeTTL, c.jitterFraction)
	if ttl <= 0 {
		return
	}
	bytes, err := EncodeEnvelope(env)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("rescache: failed to encode envelope")
		return
	}
	if err := c.client.Set(ctx, key, bytes, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("rescache: failed to write envelope to redis")
		c.metrics.Error.WithLabelValues(errLabelWriteTransport).Inc()
	}
}

// observeStrategyOutcome records an ExecuteStrategy classification against
// this cache's strategy-outcome counter, for callers (CepCache,
// GeocodingCache) that run ExecuteStrategy inside their Fetcher.
func (c *ResilientCache) observeStrategyOutcome(outcome string) {
	c.metrics.Strategy.WithLabelValues(outcome).Inc()
}

func asRawMessage(v any) json.RawMessage {
	rm, _ := v.(json.RawMessage)
	return rm
}
