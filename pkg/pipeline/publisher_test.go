package pipeline

import (
	"sync"
	"testing"
	"time"
)

// collector records delivered result sets and lets tests block delivery to
// force mailbox supersession.
type collector struct {
	mu        sync.Mutex
	delivered []ResultSet
	gate      chan struct{} // when non-nil, delivery blocks until a receive
	notify    chan struct{}
}

func newCollector() *collector {
	return &collector{notify: make(chan struct{}, 64)}
}

func (c *collector) onResult(rs ResultSet) {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	c.delivered = append(c.delivered, rs)
	c.mu.Unlock()
	c.notify <- struct{}{}
}

func (c *collector) waitFor(t *testing.T, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		c.mu.Lock()
		got := len(c.delivered)
		c.mu.Unlock()
		if got >= n {
			return
		}
		select {
		case <-c.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d deliveries, got %d", n, got)
		}
	}
}

func (c *collector) snapshot() []ResultSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ResultSet, len(c.delivered))
	copy(out, c.delivered)
	return out
}

func TestResultPublisher_DeliversInOrder(t *testing.T) {
	c := newCollector()
	p := NewResultPublisher(c.onResult)
	p.Start()
	defer p.Stop()

	p.Publish(1, ResultSet{{ID: "a"}})
	c.waitFor(t, 1)
	p.Publish(2, ResultSet{{ID: "b"}})
	c.waitFor(t, 2)

	got := c.snapshot()
	if got[0][0].ID != "a" || got[1][0].ID != "b" {
		t.Errorf("unexpected delivery order: %v, %v", got[0][0].ID, got[1][0].ID)
	}
	if stats := p.Stats(); stats.Delivered != 2 {
		t.Errorf("delivered = %d, want 2", stats.Delivered)
	}
}

func TestResultPublisher_SupersedesUnconsumed(t *testing.T) {
	c := newCollector()
	c.gate = make(chan struct{})
	p := NewResultPublisher(c.onResult)
	p.Start()
	defer p.Stop()

	// First publication enters delivery and blocks on the gate; the next two
	// pile into the mailbox, so the middle one is overwritten.
	p.Publish(1, ResultSet{{ID: "a"}})
	waitForBusyDelivery(t, p)
	p.Publish(2, ResultSet{{ID: "b"}})
	p.Publish(3, ResultSet{{ID: "c"}})

	c.gate <- struct{}{} // release "a"
	c.gate <- struct{}{} // release "c"
	c.waitFor(t, 2)

	got := c.snapshot()
	if got[0][0].ID != "a" || got[1][0].ID != "c" {
		t.Errorf("expected deliveries a then c, got %v then %v", got[0][0].ID, got[1][0].ID)
	}
	if stats := p.Stats(); stats.Superseded != 1 {
		t.Errorf("superseded = %d, want 1", stats.Superseded)
	}
}

// waitForBusyDelivery spins until the mailbox slot has been picked up,
// meaning the delivery goroutine is inside the consumer callback.
func waitForBusyDelivery(t *testing.T, p *ResultPublisher) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		empty := p.slot == nil
		p.mu.Unlock()
		if empty {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("delivery goroutine never picked up the publication")
}

func waitForStale(t *testing.T, p *ResultPublisher, n uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.Stats().Stale >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("stale count never reached %d", n)
}

func TestResultPublisher_DropsStaleSequence(t *testing.T) {
	c := newCollector()
	p := NewResultPublisher(c.onResult)
	p.Start()
	defer p.Stop()

	p.Publish(5, ResultSet{{ID: "new"}})
	c.waitFor(t, 1)
	// An out-of-order completion from an earlier frame must not regress the
	// consumer to older geometry.
	p.Publish(3, ResultSet{{ID: "old"}})
	waitForStale(t, p, 1)
	p.Publish(6, ResultSet{{ID: "newer"}})
	c.waitFor(t, 2)

	got := c.snapshot()
	if got[1][0].ID != "newer" {
		t.Errorf("second delivery = %v, want newer", got[1][0].ID)
	}
	if stats := p.Stats(); stats.Stale != 1 {
		t.Errorf("stale = %d, want 1", stats.Stale)
	}
}

func TestResultPublisher_DeliversEmptySet(t *testing.T) {
	c := newCollector()
	p := NewResultPublisher(c.onResult)
	p.Start()
	defer p.Stop()

	p.Publish(1, ResultSet{})
	c.waitFor(t, 1)

	got := c.snapshot()
	if got[0] == nil {
		t.Error("expected empty non-nil result set")
	}
	if len(got[0]) != 0 {
		t.Errorf("expected 0 faces, got %d", len(got[0]))
	}
}

func TestResultPublisher_StopIsIdempotent(t *testing.T) {
	p := NewResultPublisher(func(ResultSet) {})
	p.Start()
	p.Stop()
	p.Stop()

	// Publishing after stop is a no-op, not a panic.
	p.Publish(1, ResultSet{})
}
