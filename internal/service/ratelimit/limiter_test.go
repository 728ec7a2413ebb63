package ratelimit

import (
	"testing"
	"time"
)

func TestAllowBurstThenRefill(t *testing.T) {
	now := time.Unix(0, 0)
	l := New()
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !l.Allow("sink", 3, 1) {
			t.Fatalf("token %d should be allowed", i)
		}
	}
	if l.Allow("sink", 3, 1) {
		t.Fatalf("bucket should be empty")
	}
	now = now.Add(time.Second)
	if !l.Allow("sink", 3, 1) {
		t.Fatalf("one token should have refilled")
	}
}

func TestEvery(t *testing.T) {
	now := time.Unix(0, 0)
	l := New()
	l.now = func() time.Time { return now }

	if !l.Every("k", time.Second) || l.Every("k", time.Second) {
		t.Fatalf("expected one event per second")
	}
	now = now.Add(time.Second)
	if !l.Every("k", time.Second) {
		t.Fatalf("expected refill after interval")
	}
	if !l.Every("other", 0) {
		t.Fatalf("zero interval never throttles")
	}
}

func TestForgetDropsBucket(t *testing.T) {
	l := New()
	l.Every("stream_drop:a", time.Second)
	l.Every("stream_drop:b", time.Second)
	l.Forget("stream_drop:a")
	if l.Len() != 1 {
		t.Fatalf("buckets = %d, want 1", l.Len())
	}
	if !l.Every("stream_drop:a", time.Second) {
		t.Fatalf("forgotten key should start with a full bucket")
	}
}
