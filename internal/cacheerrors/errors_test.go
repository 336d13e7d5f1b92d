package cacheerrors

import "testing"

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"wal append failed", NewErrWALAppendFailed("k", errPlaceholder), true},
		{"snapshot failed", NewErrSnapshotFailed("/tmp/x", errPlaceholder), true},
		{"breaker open", NewErrBreakerOpen(), true},
		{"unknown command", NewErrUnknownCommand("FROB"), false},
		{"wrong arity", NewErrWrongArity("SET", 1), false},
		{"empty key", NewErrEmptyKey("GET"), false},
	}
	for _, c := range cases {
		if got := IsRetryable(c.err); got != c.retryable {
			t.Errorf("%s: IsRetryable() = %v, want %v", c.name, got, c.retryable)
		}
	}
}

func TestCodeExtraction(t *testing.T) {
	err := NewErrKeyNotFound("missing")
	code, ok := Code(err)
	if !ok {
		t.Fatal("expected a structured error code")
	}
	if code != ErrCodeKeyNotFound {
		t.Errorf("Code() = %v, want %v", code, ErrCodeKeyNotFound)
	}
}

var errPlaceholder = errSentinel("boom")

type errSentinel string

func (e errSentinel) Error() string { return string(e) }
