package breaker

import (
	"testing"
	"time"
)

func TestClosedAllowsRequests(t *testing.T) {
	cb, err := New(3, 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if cb.State() != Closed {
		t.Fatalf("initial state = %v, want Closed", cb.State())
	}
	if !cb.AllowRequest() {
		t.Error("AllowRequest() = false while Closed")
	}
}

// S6 — breaker opens after threshold failures, blocks, then half-opens
// after the timeout and closes on a successful probe.
func TestOpensAfterThresholdThenRecovers(t *testing.T) {
	cb, err := New(3, 30*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != Closed {
		t.Fatalf("state after 2 failures = %v, want Closed (threshold=3)", cb.State())
	}
	cb.RecordFailure()
	if cb.State() != Open {
		t.Fatalf("state after 3 failures = %v, want Open", cb.State())
	}
	if cb.AllowRequest() {
		t.Error("AllowRequest() = true while Open and within timeout")
	}

	time.Sleep(40 * time.Millisecond)
	if !cb.AllowRequest() {
		t.Fatal("AllowRequest() = false after openTimeout elapsed, want true (probe admitted)")
	}
	if cb.State() != HalfOpen {
		t.Fatalf("state after timeout probe = %v, want HalfOpen", cb.State())
	}

	cb.RecordSuccess()
	if cb.State() != Closed {
		t.Fatalf("state after successful probe = %v, want Closed", cb.State())
	}
	if cb.FailureCount() != 0 {
		t.Errorf("FailureCount() after recovery = %d, want 0", cb.FailureCount())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb, err := New(1, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	cb.RecordFailure()
	if cb.State() != Open {
		t.Fatalf("state = %v, want Open", cb.State())
	}
	time.Sleep(20 * time.Millisecond)
	if !cb.AllowRequest() {
		t.Fatal("probe should be admitted")
	}
	if cb.State() != HalfOpen {
		t.Fatalf("state = %v, want HalfOpen", cb.State())
	}

	cb.RecordFailure()
	if cb.State() != Open {
		t.Fatalf("state after HALF_OPEN failure = %v, want Open", cb.State())
	}
}

func TestClosedSuccessDoesNotResetByDefault(t *testing.T) {
	cb, err := New(3, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	if cb.FailureCount() != 2 {
		t.Errorf("FailureCount() after CLOSED success = %d, want 2 (no reset by default)", cb.FailureCount())
	}
}

func TestWithResetOnSuccess(t *testing.T) {
	cb, err := New(3, time.Second, WithResetOnSuccess(true))
	if err != nil {
		t.Fatal(err)
	}
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	if cb.FailureCount() != 0 {
		t.Errorf("FailureCount() with WithResetOnSuccess = %d, want 0", cb.FailureCount())
	}
}

func TestInvalidThresholdRejected(t *testing.T) {
	if _, err := New(0, time.Second); err == nil {
		t.Fatal("New() with threshold=0 should return an error")
	}
	if _, err := New(-1, time.Second); err == nil {
		t.Fatal("New() with negative threshold should return an error")
	}
}
