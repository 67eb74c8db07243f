package pipeline

import "sync"

// publication pairs a result set with the submission sequence of the frame
// that produced it.
type publication struct {
	seq     uint64
	results ResultSet
}

// ResultPublisher delivers result sets to the consumer on a single delivery
// goroutine.
//
// Publish is non-blocking: results land in a single-slot mailbox and a
// result that was never picked up is overwritten (superseded) by the next
// one. A result whose frame was submitted no later than the last delivered
// one is dropped, so the consumer never regresses to stale geometry even if
// an adapter completes out of order.
type ResultPublisher struct {
	mu   sync.Mutex
	cond *sync.Cond

	slot   *publication // nil = consumed
	closed bool

	deliveredSeq uint64

	superseded uint64
	stale      uint64
	delivered  uint64

	onResult func(ResultSet)
	wg       sync.WaitGroup
}

// NewResultPublisher creates a publisher delivering to onResult. Call Start
// before publishing and Stop to shut the delivery goroutine down.
func NewResultPublisher(onResult func(ResultSet)) *ResultPublisher {
	p := &ResultPublisher{onResult: onResult}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start spawns the delivery goroutine.
func (p *ResultPublisher) Start() {
	p.wg.Add(1)
	go p.deliverLoop()
}

// Stop shuts the delivery goroutine down and waits for it to exit. A result
// sitting undelivered in the mailbox is discarded. Idempotent.
func (p *ResultPublisher) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cond.Broadcast()
	p.wg.Wait()
}

// Publish hands a result set to the delivery goroutine. Never blocks; an
// unconsumed previous result is superseded.
func (p *ResultPublisher) Publish(seq uint64, results ResultSet) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if p.slot != nil {
		p.superseded++
	}
	p.slot = &publication{seq: seq, results: results}
	p.mu.Unlock()

	p.cond.Signal()
}

func (p *ResultPublisher) deliverLoop() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for p.slot == nil && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return
		}

		pub := p.slot
		p.slot = nil

		if pub.seq <= p.deliveredSeq {
			p.stale++
			p.mu.Unlock()
			continue
		}
		p.deliveredSeq = pub.seq
		p.delivered++
		p.mu.Unlock()

		// Consumer callback runs here, on the delivery goroutine only.
		p.onResult(pub.results)
	}
}

// PublisherStats is a snapshot of publisher counters.
type PublisherStats struct {
	Delivered  uint64
	Superseded uint64
	Stale      uint64
}

// Stats returns a snapshot of the publisher counters.
func (p *ResultPublisher) Stats() PublisherStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PublisherStats{
		Delivered:  p.delivered,
		Superseded: p.superseded,
		Stale:      p.stale,
	}
}
