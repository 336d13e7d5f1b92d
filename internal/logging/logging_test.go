package logging

import "testing"

func TestNoOpLoggerSatisfiesInterface(t *testing.T) {
	var l Logger = NoOpLogger{}
	l.Debug("x")
	l.Info("x", "k", "v")
	l.Warn("x")
	l.Error("x", "k", 1, "j")
}

func TestStdLoggerSatisfiesInterface(t *testing.T) {
	var l Logger = NewStdLogger()
	l.Info("starting", "port", 6380)
	l.Error("failed", "err", "boom")
}

func TestFormatKeyvalsHandlesOddCount(t *testing.T) {
	got := formatKeyvals([]interface{}{"k1", "v1", "k2"})
	want := "k1=v1 k2=?"
	if got != want {
		t.Errorf("formatKeyvals() = %q, want %q", got, want)
	}
}
