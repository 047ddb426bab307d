package rescache

import "sync"

// pendingCall is the process-local single-flight promise for one cache
// key. Joined callers block on done until the leader settles it, then all
// observe the same val/err pair.
type pendingCall struct {
	done chan struct{}
	val  any
	err  error
}

func (c *pendingCall) settle(val any, err error) {
	c.val, c.err = val, err
	close(c.done)
}

func (c *pendingCall) wait() (any, error) {
	<-c.done
	return c.val, c.err
}

// pendingTable is the process-wide single-flight map described by spec §3
// and §5: a mutex-protected mapping from cache key to in-flight call,
// bounded by maxPending. Every read-modify-write sequence (size check,
// lookup, install, remove) holds the lock for its entire critical section
// so the double-check dedup in GetOrFetch step 4 is meaningful.
type pendingTable struct {
	mu         sync.Mutex
	calls      map[string]*pendingCall
	maxPending int
}

func newPendingTable(maxPending int) *pendingTable {
	return &pendingTable{
		calls:      make(map[string]*pendingCall),
		maxPending: maxPending,
	}
}

// admitOrJoin implements spec §4.4 steps 1-2: it rejects with
// ErrServiceOverload if the table is at capacity, otherwise returns an
// existing call to join, if any.
func (t *pendingTable) admitOrJoin(key string) (join *pendingCall, rejected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.calls) >= t.maxPending {
		if _, ok := t.calls[key]; !ok {
			return nil, true
		}
	}
	if call, ok := t.calls[key]; ok {
		return call, false
	}
	return nil, false
}

// joinOrInstall implements spec §4.4 steps 4-5: the double-check dedup
// after the Redis read, followed by installing a fresh pendingCall if no
// one raced ahead. install is true when the caller must run the fetcher
// and settle/remove the call itself.
func (t *pendingTable) joinOrInstall(key string) (call *pendingCall, install bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if call, ok := t.calls[key]; ok {
		return call, false
	}
	call = &pendingCall{done: make(chan struct{})}
	t.calls[key] = call
	return call, true
}

// remove unconditionally drops key from the table; called on every exit
// path of a fill (spec §4.4 step 8).
func (t *pendingTable) remove(key string) {
	t.mu.Lock()
	delete(t.calls, key)
	t.mu.Unlock()
}

// len reports the current number of distinct in-flight keys, for tests and
// metrics.
func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
