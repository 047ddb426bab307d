// Package rescache implements a resilient, request-deduplicating,
// Redis-backed cache with cascaded provider failover.
//
// Two collaborating pieces make up the package: ResilientCache, a
// read-through cache with in-process single-flight, bounded admission and
// positive/negative envelopes with jittered TTLs; and ExecuteStrategy, a
// generic driver that fans a request through an ordered list of providers
// and classifies business not-found outcomes separately from system
// failures.
package rescache
