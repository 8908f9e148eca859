package logger

import "testing"

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{"api_key", "sk-123", "course", "Intro", "dangling"})
	if len(out) != 5 {
		t.Fatalf("len = %d, want 5", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Errorf("api_key value = %v, want [REDACTED]", out[1])
	}
	if out[3] != "Intro" {
		t.Errorf("course value = %v, want Intro", out[3])
	}
	if out[4] != "dangling" {
		t.Errorf("dangling key = %v", out[4])
	}
}

func TestNopLoggerDoesNotPanic(t *testing.T) {
	l := Nop().With("service", "test")
	l.Info("hello", "k", 1)
	l.Sync()
}
