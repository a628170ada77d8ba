package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestCollector_RecordTiming(t *testing.T) {
	c := NewCollector()

	c.RecordTiming(OpExtractEntities, 100*time.Millisecond)
	c.RecordTiming(OpExtractEntities, 300*time.Millisecond)

	snap := c.Snapshot()
	op := snap.Operations[OpExtractEntities]
	if op == nil {
		t.Fatal("expected extract_entities snapshot")
	}
	if op.Count != 2 {
		t.Errorf("Count = %d, want 2", op.Count)
	}
	if op.MinTimeMs != 100 || op.MaxTimeMs != 300 {
		t.Errorf("min/max = %d/%d, want 100/300", op.MinTimeMs, op.MaxTimeMs)
	}
	if op.AvgTimeMs != 200 {
		t.Errorf("AvgTimeMs = %v, want 200", op.AvgTimeMs)
	}
}

func TestCollector_RecordFailure(t *testing.T) {
	c := NewCollector()
	c.RecordFailure(OpResolveFacts)

	snap := c.Snapshot()
	op := snap.Operations[OpResolveFacts]
	if op == nil {
		t.Fatal("expected resolve_facts snapshot")
	}
	if op.Failures != 1 || op.Count != 0 {
		t.Errorf("failures/count = %d/%d, want 1/0", op.Failures, op.Count)
	}
}

func TestCollector_EmptySnapshot(t *testing.T) {
	snap := NewCollector().Snapshot()
	if len(snap.Operations) != 0 {
		t.Errorf("expected no operations, got %d", len(snap.Operations))
	}
	if snap.UptimeSeconds < 0 {
		t.Error("uptime must not be negative")
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordTiming(OpNewsletter, time.Millisecond)
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if got := snap.Operations[OpNewsletter].Count; got != 1000 {
		t.Errorf("Count = %d, want 1000", got)
	}
}
