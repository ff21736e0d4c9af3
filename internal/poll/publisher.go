package poll

import "sync"

// Publisher delivers the latest Snapshot to all subscribers. Each
// subscriber owns a buffered channel and receives its own deep copy, so
// no mutable state ever crosses goroutines. Delivery is latest-wins: a
// subscriber that hasn't drained its channel loses the stale pending
// snapshot, never blocks the poller.
type Publisher struct {
	mu     sync.Mutex
	subs   map[<-chan Snapshot]chan Snapshot
	closed bool
}

// NewPublisher creates an empty publisher.
func NewPublisher() *Publisher {
	return &Publisher{
		subs: make(map[<-chan Snapshot]chan Snapshot),
	}
}

// Subscribe registers a new consumer and returns its channel.
// The channel is closed by Close.
func (p *Publisher) Subscribe() <-chan Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if p.closed {
		close(ch)
		return ch
	}
	p.subs[ch] = ch
	return ch
}

// Unsubscribe removes a consumer and closes its channel.
func (p *Publisher) Unsubscribe(ch <-chan Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if send, ok := p.subs[ch]; ok {
		delete(p.subs, ch)
		close(send)
	}
}

// Publish delivers a snapshot to every subscriber without blocking.
// Each subscriber gets an independent copy; consumers must treat it as
// read-only all the same.
func (p *Publisher) Publish(s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ch := range p.subs {
		cp := s.Clone()
		select {
		case ch <- cp:
		default:
			// Subscriber is behind: replace the stale pending snapshot.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- cp:
			default:
			}
		}
	}
}

// Close closes all subscriber channels. Further Subscribe calls return a
// closed channel and Publish becomes a no-op.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for key, ch := range p.subs {
		delete(p.subs, key)
		close(ch)
	}
}

// Subscribers returns the current subscriber count.
func (p *Publisher) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}
