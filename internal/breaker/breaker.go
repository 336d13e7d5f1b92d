// Package breaker implements the circuit breaker described in spec.md
// §4.5, grounded on
// _examples/original_source/src/patterns/CircuitBreaker.{h,cpp}: a
// three-state (CLOSED/OPEN/HALF_OPEN) machine protecting downstream calls
// (WAL/snapshot I/O, cross-node forwarding) from cascading failure.
package breaker

import (
	"sync/atomic"
	"time"

	"github.com/distcache-io/distcache/internal/cacheerrors"
)

// State is one of the breaker's three states.
type State int32

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker guards a downstream dependency. All state is held in
// atomics so AllowRequest, RecordSuccess, and RecordFailure never block
// each other — correctness here comes from CAS transitions, not a mutex,
// matching the source's lock-free design.
type CircuitBreaker struct {
	state        atomic.Int32
	failureCount atomic.Int32
	lastFailure  atomic.Int64 // UnixNano

	failureThreshold int32
	openTimeout      time.Duration
	resetOnSuccess   bool
}

// Option configures a CircuitBreaker at construction time.
type Option func(*CircuitBreaker)

// WithResetOnSuccess makes a single successful call while CLOSED reset
// the failure counter to zero. Off by default per spec.md §4.5: a
// CLOSED breaker only resets its counter on a HALF_OPEN->CLOSED
// transition, so intermittent successes amid a string of failures do not
// mask a developing outage.
func WithResetOnSuccess(enabled bool) Option {
	return func(cb *CircuitBreaker) { cb.resetOnSuccess = enabled }
}

// New returns a CircuitBreaker that opens after failureThreshold
// consecutive recorded failures and attempts recovery after openTimeout.
// failureThreshold must be positive.
func New(failureThreshold int, openTimeout time.Duration, opts ...Option) (*CircuitBreaker, error) {
	if failureThreshold <= 0 {
		return nil, cacheerrors.NewErrInvalidThreshold(failureThreshold)
	}
	cb := &CircuitBreaker{
		failureThreshold: int32(failureThreshold),
		openTimeout:      openTimeout,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb, nil
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() State {
	return State(cb.state.Load())
}

// AllowRequest reports whether a call may proceed. CLOSED and HALF_OPEN
// both allow the call through; OPEN allows it only once openTimeout has
// elapsed since the last recorded failure, at which point it flips the
// breaker to HALF_OPEN via CAS and admits the caller as the probe.
//
// Multiple callers may race this CAS concurrently once the timeout has
// elapsed — more than one probe can land in HALF_OPEN before any of them
// reports back. spec.md §9 Open Question (1) leaves this permissive
// rather than serializing probe admission, matching the source.
func (cb *CircuitBreaker) AllowRequest() bool {
	switch State(cb.state.Load()) {
	case Closed, HalfOpen:
		return true
	case Open:
		elapsed := time.Duration(time.Now().UnixNano() - cb.lastFailure.Load())
		if elapsed < cb.openTimeout {
			return false
		}
		cb.state.CompareAndSwap(int32(Open), int32(HalfOpen))
		return true
	default:
		return false
	}
}

// RecordSuccess reports a successful call. From HALF_OPEN this closes
// the breaker and resets the failure counter. From CLOSED, the counter
// is left untouched unless WithResetOnSuccess was set.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb.state.CompareAndSwap(int32(HalfOpen), int32(Closed)) {
		cb.failureCount.Store(0)
		return
	}
	if cb.resetOnSuccess && State(cb.state.Load()) == Closed {
		cb.failureCount.Store(0)
	}
}

// RecordFailure reports a failed call. From HALF_OPEN, a single failure
// reopens the breaker immediately. From CLOSED, the failure counter is
// incremented and the breaker opens once it reaches failureThreshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.lastFailure.Store(time.Now().UnixNano())

	if cb.state.CompareAndSwap(int32(HalfOpen), int32(Open)) {
		return
	}
	count := cb.failureCount.Add(1)
	if count >= cb.failureThreshold {
		cb.state.CompareAndSwap(int32(Closed), int32(Open))
	}
}

// FailureCount returns the current consecutive-failure count.
func (cb *CircuitBreaker) FailureCount() int {
	return int(cb.failureCount.Load())
}
