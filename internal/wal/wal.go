// Package wal implements the write-ahead log described in spec.md §4.2: an
// append-only, ordered record of every acknowledged mutation, replayed on
// startup to rebuild cache state after a crash.
//
// Record format is line-oriented, grounded on
// _examples/original_source/src/storage/WAL.{h,cpp}:
//
//	SET SP key SP value LF
//	DEL SP key LF
//
// Keys and values are run through internal/escape before being written,
// so a raw space, tab, newline, or backslash inside either field never
// collides with the SP/LF framing — this is the Go-side resolution of
// spec.md §9 Open Question (2) ("DEL's missing value and binary-safe
// framing"): an escaped empty value is distinguishable from an absent
// one, and a key/value is never ambiguous with the separators around it.
package wal

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/distcache-io/distcache/internal/cacheerrors"
	"github.com/distcache-io/distcache/internal/escape"
)

// Op is a WAL operation code.
type Op string

const (
	OpSet Op = "SET"
	OpDel Op = "DEL"
)

// Record is a single decoded WAL entry, in append order.
type Record struct {
	Op    Op
	Key   string
	Value []byte
}

// WAL is an append-only durability log for cache mutations. A single
// mutex serializes Append, Sync, and Truncate, per spec.md §5; Replay is
// only ever called during recovery, before any concurrent writer exists.
//
// barrier additionally serializes a mutation (WAL append followed by the
// corresponding cache mutate, in server.go) against a checkpoint (cache
// snapshot followed by WAL prefix truncation, in node.go): a mutation
// holds barrier for read, a checkpoint holds it for write. Without this,
// a mutation acked between a checkpoint's snapshot copy and its truncate
// can be dropped from both the snapshot and the truncated log — see
// LockMutation and Checkpoint.
type WAL struct {
	mu      sync.Mutex
	barrier sync.RWMutex
	path    string
	file    *os.File

	groupCommit  bool
	commitWindow time.Duration
	pendingFlush bool
	flushTimer   *time.Timer
	flushWaiters []chan error
}

// Option configures a WAL at construction time.
type Option func(*WAL)

// WithGroupCommit enables the batched-flush durability tier (spec.md
// §4.2 tier 2): appends within window are buffered and flushed together,
// acknowledging every waiter once the flush completes. Callers that pass
// this option are assumed to have told their own clients that writes
// acknowledge only after the group flush.
func WithGroupCommit(window time.Duration) Option {
	return func(w *WAL) {
		w.groupCommit = true
		w.commitWindow = window
	}
}

// Open opens (creating if necessary) the WAL file at path for append.
// A failure here is a fatal startup error per spec.md §6/§7.
func Open(path string, opts ...Option) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, cacheerrors.NewErrWALOpenFailed(path, err)
	}
	w := &WAL{path: path, file: f}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Append serializes (op, key, value) and writes it to the log. Under the
// default flush-per-append tier, Append does not return until the write
// has been handed to the OS and fsynced — the durability contract
// spec.md §4.2/§5 requires before the caller acks the client. Under
// group-commit, Append blocks until the next scheduled flush completes.
func (w *WAL) Append(op Op, key string, value []byte) error {
	line := encodeRecord(op, key, value)

	w.mu.Lock()
	if _, err := w.file.WriteString(line); err != nil {
		w.mu.Unlock()
		return cacheerrors.NewErrWALAppendFailed(key, err)
	}

	if !w.groupCommit {
		err := w.file.Sync()
		w.mu.Unlock()
		if err != nil {
			return cacheerrors.NewErrWALAppendFailed(key, err)
		}
		return nil
	}

	wait := make(chan error, 1)
	w.flushWaiters = append(w.flushWaiters, wait)
	if !w.pendingFlush {
		w.pendingFlush = true
		w.flushTimer = time.AfterFunc(w.commitWindow, w.flushGroup)
	}
	w.mu.Unlock()

	return <-wait
}

// flushGroup runs on the group-commit timer: one fsync wakes every
// Append call that arrived within the window.
func (w *WAL) flushGroup() {
	w.mu.Lock()
	err := w.file.Sync()
	waiters := w.flushWaiters
	w.flushWaiters = nil
	w.pendingFlush = false
	w.mu.Unlock()

	for _, ch := range waiters {
		ch <- err
	}
}

// Path returns the filesystem path the WAL was opened with, so a
// recovery routine can Replay it without having to remember the path
// separately.
func (w *WAL) Path() string {
	return w.path
}

// Sync flushes any buffered writes to stable storage.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

// Truncate empties the log atomically. Callers must only invoke this
// after a successful snapshot has itself been fsynced (spec.md §4.3
// recovery protocol: "the WAL is truncated only after the next
// successful snapshot completes").
func (w *WAL) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Truncate(0); err != nil {
		return err
	}
	_, err := w.file.Seek(0, 0)
	return err
}

// LockMutation acquires the barrier for a single mutation: a WAL append
// immediately followed by the corresponding cache mutate. Callers must
// hold it across both steps and release it with UnlockMutation, so that
// a concurrent Checkpoint never observes the WAL append without the
// cache mutate it corresponds to, or vice versa.
func (w *WAL) LockMutation() {
	w.barrier.RLock()
}

// UnlockMutation releases a barrier held by LockMutation.
func (w *WAL) UnlockMutation() {
	w.barrier.RUnlock()
}

// Checkpoint runs capture — which is expected to copy cache state, e.g.
// Cache.Snapshot() — with the barrier held exclusively, so no mutation's
// append/mutate pair can be mid-flight, then returns the WAL's size at
// that instant. A later TruncatePrefix(offset) call keeps only the bytes
// appended after this point, which by construction are exactly the
// mutations not yet reflected in capture's result.
func (w *WAL) Checkpoint(capture func() error) (int64, error) {
	w.barrier.Lock()
	defer w.barrier.Unlock()

	w.mu.Lock()
	offset, err := w.file.Seek(0, io.SeekCurrent)
	w.mu.Unlock()
	if err != nil {
		return 0, err
	}

	if err := capture(); err != nil {
		return 0, err
	}
	return offset, nil
}

// TruncatePrefix discards every WAL record before offset (as returned by
// Checkpoint) while preserving everything appended at or after it — the
// mutations a concurrent Checkpoint's capture call could not have seen
// yet. Unlike Truncate, this never drops an acknowledged mutation that
// arrived during the checkpoint window.
func (w *WAL) TruncatePrefix(offset int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	tail, err := io.ReadAll(w.file)
	if err != nil {
		return err
	}
	if err := w.file.Truncate(0); err != nil {
		return err
	}
	if len(tail) == 0 {
		_, err := w.file.Seek(0, io.SeekStart)
		return err
	}
	// file is opened O_APPEND, so this Write lands at the new EOF
	// regardless of the current seek position.
	_, err = w.file.Write(tail)
	return err
}

// Close releases the underlying file handle.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// Replay reads the log from the beginning and returns every well-formed
// record in append order. A truncated trailing record — the tail left by
// a crash mid-write — is dropped silently rather than raising an error:
// per spec.md §4.2, a partial record was never acknowledged, so treating
// it as "never happened" is the correct match for the pre-ack contract.
func Replay(path string) ([]Record, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	lastOK := false
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		rec, ok := decodeRecord(scanner.Text())
		lastOK = ok
		if ok {
			records = append(records, rec)
		}
		// A line that fails to parse is a truncated tail record — and
		// since bufio.Scanner only yields complete lines anyway, the
		// only way decodeRecord rejects one is genuine corruption or a
		// half-written final line with no trailing LF, which Scanner
		// still surfaces as its last token. Either way we drop it.
	}
	// scanner.Err() distinguishes a real I/O failure from a clean EOF;
	// a non-nil, non-EOF error here is not a parse failure, so it is
	// still propagated rather than silently dropped.
	if err := scanner.Err(); err != nil {
		return records, err
	}
	// A final line with no trailing LF was cut off mid-write even if what
	// reached the disk still parses, so its record is dropped as well.
	if lastOK {
		info, err := f.Stat()
		if err != nil {
			return records, err
		}
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, info.Size()-1); err != nil {
			return records, err
		}
		if last[0] != '\n' {
			records = records[:len(records)-1]
		}
	}
	return records, nil
}

func encodeRecord(op Op, key string, value []byte) string {
	var b strings.Builder
	b.WriteString(string(op))
	b.WriteByte(' ')
	b.WriteString(escape.Encode(key))
	if op == OpSet {
		b.WriteByte(' ')
		b.WriteString(escape.Encode(string(value)))
	}
	b.WriteByte('\n')
	return b.String()
}

// decodeRecord splits on literal spaces by position, not strings.Fields:
// escape.Encode escapes every raw space inside a key or value as "\s", so
// the only unescaped spaces on the line are the SP/LF framing separators
// themselves, and an empty field (two adjacent separators) must decode to
// an empty string rather than collapse away, per spec.md §7's "empty
// values accepted verbatim".
func decodeRecord(line string) (Record, bool) {
	if line == "" {
		return Record{}, false
	}
	opEnd := strings.IndexByte(line, ' ')
	if opEnd < 0 {
		return Record{}, false
	}
	op := Op(strings.ToUpper(line[:opEnd]))
	rest := line[opEnd+1:]
	switch op {
	case OpSet:
		keyEnd := strings.IndexByte(rest, ' ')
		if keyEnd < 0 {
			return Record{}, false
		}
		key := escape.Decode(rest[:keyEnd])
		value := escape.Decode(rest[keyEnd+1:])
		return Record{Op: OpSet, Key: key, Value: []byte(value)}, true
	case OpDel:
		key := escape.Decode(rest)
		return Record{Op: OpDel, Key: key}, true
	default:
		return Record{}, false
	}
}
