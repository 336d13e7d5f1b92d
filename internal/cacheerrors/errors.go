// Package cacheerrors provides structured error handling for every
// distcache subsystem, built on github.com/agilira/go-errors so that
// callers get rich context, error codes, and a retryability flag instead
// of a bare string.
//
// Error codes are namespaced by the table in spec.md §7:
//   - configuration errors (1xxx) are never retryable and, at startup,
//     fatal (cmd/distcache-node exits non-zero without trying again);
//   - cache-operation errors (2xxx) are client-visible -ERR frames and do
//     not trip the circuit breaker;
//   - persistence errors (4xxx) are transient server errors: retryable,
//     and they do trip the breaker;
//   - cluster/ring errors (5xxx) and breaker errors (6xxx) round out the
//     remaining subsystems.
package cacheerrors

import (
	goerrors "errors"

	"github.com/agilira/go-errors"
)

// Error codes for distcache operations.
const (
	// Configuration errors (1xxx)
	ErrCodeInvalidConfig    errors.ErrorCode = "DISTCACHE_INVALID_CONFIG"
	ErrCodeInvalidCapacity  errors.ErrorCode = "DISTCACHE_INVALID_CAPACITY"
	ErrCodeInvalidTTL       errors.ErrorCode = "DISTCACHE_INVALID_TTL"
	ErrCodeInvalidThreshold errors.ErrorCode = "DISTCACHE_INVALID_THRESHOLD"

	// Cache operation errors (2xxx)
	ErrCodeKeyNotFound errors.ErrorCode = "DISTCACHE_KEY_NOT_FOUND"
	ErrCodeEmptyKey    errors.ErrorCode = "DISTCACHE_EMPTY_KEY"
	ErrCodeUnknownCmd  errors.ErrorCode = "DISTCACHE_UNKNOWN_COMMAND"
	ErrCodeWrongArity  errors.ErrorCode = "DISTCACHE_WRONG_ARITY"

	// Persistence errors (4xxx)
	ErrCodeWALAppendFailed   errors.ErrorCode = "DISTCACHE_WAL_APPEND_FAILED"
	ErrCodeWALOpenFailed     errors.ErrorCode = "DISTCACHE_WAL_OPEN_FAILED"
	ErrCodeSnapshotFailed    errors.ErrorCode = "DISTCACHE_SNAPSHOT_FAILED"
	ErrCodeSnapshotLoadError errors.ErrorCode = "DISTCACHE_SNAPSHOT_LOAD_FAILED"

	// Cluster / ring errors (5xxx)
	ErrCodeRingEmpty errors.ErrorCode = "DISTCACHE_RING_EMPTY"

	// Circuit breaker errors (6xxx)
	ErrCodeBreakerOpen errors.ErrorCode = "DISTCACHE_BREAKER_OPEN"
)

const (
	msgInvalidCapacity  = "invalid cache capacity: must be greater than 0"
	msgInvalidTTL       = "invalid TTL: must be non-negative"
	msgInvalidThreshold = "invalid breaker failure threshold: must be greater than 0"
	msgKeyNotFound      = "key not found in cache"
	msgEmptyKey         = "key cannot be empty"
	msgUnknownCmd       = "unknown command"
	msgWrongArity       = "wrong number of arguments"
	msgWALAppendFailed  = "failed to append record to write-ahead log"
	msgWALOpenFailed    = "failed to open write-ahead log for append"
	msgSnapshotFailed   = "failed to write snapshot"
	msgSnapshotLoad     = "failed to load snapshot"
	msgRingEmpty        = "hash ring has no nodes"
	msgBreakerOpen      = "circuit breaker is open"
)

// NewErrInvalidCapacity reports a non-positive cache capacity.
func NewErrInvalidCapacity(capacity int) error {
	return errors.NewWithField(ErrCodeInvalidCapacity, msgInvalidCapacity, "capacity", capacity)
}

// NewErrInvalidTTL reports a negative TTL.
func NewErrInvalidTTL(ttl interface{}) error {
	return errors.NewWithField(ErrCodeInvalidTTL, msgInvalidTTL, "ttl", ttl)
}

// NewErrInvalidThreshold reports a non-positive breaker failure threshold.
func NewErrInvalidThreshold(threshold int) error {
	return errors.NewWithField(ErrCodeInvalidThreshold, msgInvalidThreshold, "threshold", threshold)
}

// NewErrKeyNotFound reports a cache miss surfaced as an error (used by
// callers that need an error return, e.g. admin tooling; the wire
// protocol itself treats a miss as a nil frame, not an error, per
// spec.md §7).
func NewErrKeyNotFound(key string) error {
	return errors.NewWithField(ErrCodeKeyNotFound, msgKeyNotFound, "key", key)
}

// NewErrEmptyKey reports an operation invoked with an empty key where the
// caller's contract requires a non-empty one.
func NewErrEmptyKey(operation string) error {
	return errors.NewWithField(ErrCodeEmptyKey, msgEmptyKey, "operation", operation)
}

// NewErrUnknownCommand reports a client error: an unrecognized wire
// command. Client errors never trip the circuit breaker (spec.md §7).
func NewErrUnknownCommand(cmd string) error {
	return errors.NewWithField(ErrCodeUnknownCmd, msgUnknownCmd, "command", cmd)
}

// NewErrWrongArity reports a client error: a command called with the
// wrong number of arguments.
func NewErrWrongArity(cmd string, got int) error {
	return errors.NewWithContext(ErrCodeWrongArity, msgWrongArity, map[string]interface{}{
		"command": cmd,
		"args":    got,
	})
}

// NewErrWALAppendFailed wraps a WAL append I/O failure. Transient server
// errors of this kind are retryable and count as a circuit breaker
// failure (spec.md §7).
func NewErrWALAppendFailed(key string, cause error) error {
	return errors.Wrap(cause, ErrCodeWALAppendFailed, msgWALAppendFailed).
		WithContext("key", key).
		AsRetryable()
}

// NewErrWALOpenFailed wraps a fatal startup failure: the WAL file could
// not be opened for append. cmd/distcache-node treats this as fatal and
// exits non-zero (spec.md §6).
func NewErrWALOpenFailed(path string, cause error) error {
	return errors.Wrap(cause, ErrCodeWALOpenFailed, msgWALOpenFailed).
		WithContext("path", path)
}

// NewErrSnapshotFailed wraps a snapshot write failure. Retryable.
func NewErrSnapshotFailed(path string, cause error) error {
	return errors.Wrap(cause, ErrCodeSnapshotFailed, msgSnapshotFailed).
		WithContext("path", path).
		AsRetryable()
}

// NewErrSnapshotLoadFailed wraps a snapshot read failure during recovery.
// A missing file is not an error (internal/snapshot returns an empty map
// for that case); this code is for genuine I/O failures on a file that
// does exist.
func NewErrSnapshotLoadFailed(path string, cause error) error {
	return errors.Wrap(cause, ErrCodeSnapshotLoadError, msgSnapshotLoad).
		WithContext("path", path)
}

// NewErrRingEmpty reports that the hash ring has no registered nodes.
func NewErrRingEmpty() error {
	return errors.NewWithContext(ErrCodeRingEmpty, msgRingEmpty, nil)
}

// NewErrBreakerOpen reports that the circuit breaker rejected a request.
// Retryable by nature (a later request may land in HALF_OPEN).
func NewErrBreakerOpen() error {
	return errors.NewWithContext(ErrCodeBreakerOpen, msgBreakerOpen, nil).AsRetryable()
}

// IsRetryable reports whether err (or a wrapped cause) is marked
// retryable. Non-cacheerrors errors are treated as non-retryable.
func IsRetryable(err error) bool {
	var r errors.Retryable
	if goerrors.As(err, &r) {
		return r.IsRetryable()
	}
	return false
}

// Code extracts the structured error code from err, if any.
func Code(err error) (errors.ErrorCode, bool) {
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		return coder.ErrorCode(), true
	}
	return "", false
}
