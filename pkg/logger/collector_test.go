package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type capturePublisher struct {
	mu      sync.Mutex
	batches [][]AggregatedLogEntry
	done    chan struct{}
}

func (p *capturePublisher) PublishMessage(_ context.Context, _ string, payload interface{}) error {
	p.mu.Lock()
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	p.mu.Unlock()
	p.done <- struct{}{}
	return nil
}

func TestCollectorFoldsRepeatedErrors(t *testing.T) {
	pub := &capturePublisher{done: make(chan struct{}, 4)}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "logs", Publisher: pub})

	for i := 0; i < 5; i++ {
		c.AddLog("error", "persist failed", map[string]interface{}{"iteration": i}, "control_loop.go:10")
	}
	if got := c.Pending(); got != 1 {
		t.Fatalf("expected 1 folded entry, got %d", got)
	}
	c.Close()

	select {
	case <-pub.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("collector did not flush on close")
	}
	pub.mu.Lock()
	defer pub.mu.Unlock()
	e := pub.batches[0][0]
	if e.Count != 5 {
		t.Fatalf("count %d, want 5", e.Count)
	}
	if e.Fields["iteration"] != 4 {
		t.Fatalf("expected latest fields, got %v", e.Fields)
	}
}

func TestLoggerErrorFeedsCollector(t *testing.T) {
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100})
	defer l.RemoveCollector()

	for i := 0; i < 3; i++ {
		l.Error("device read failed", Error(errors.New("spi")))
	}
	l.Warn("not collected")

	if got := l.collector.Pending(); got != 1 {
		t.Fatalf("expected 1 pending entry, got %d", got)
	}
}
