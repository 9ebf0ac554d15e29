package events

import (
	"context"
	"sync"
)

const defaultBuffer = 16

// MemoryPublisher fans events out to in-process subscribers. Slow subscribers
// miss events instead of blocking the publisher.
type MemoryPublisher struct {
	mu     sync.RWMutex
	subs   map[int]chan BatchCompleted
	nextID int
	closed bool
}

// NewMemoryPublisher creates an in-process publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{subs: make(map[int]chan BatchCompleted)}
}

// Publish implements Publisher.
func (p *MemoryPublisher) Publish(ctx context.Context, event BatchCompleted) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, ch := range p.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe implements Subscriber. The listener is removed when ctx is done
// or the returned func is called.
func (p *MemoryPublisher) Subscribe(ctx context.Context) (<-chan BatchCompleted, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	ch, cancel := p.subscribe(defaultBuffer)
	stop := make(chan struct{})
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			close(stop)
			cancel()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-stop:
		}
	}()
	return ch, unsubscribe, nil
}

// subscribe registers a listener with the given buffer size.
func (p *MemoryPublisher) subscribe(buffer int) (<-chan BatchCompleted, func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan BatchCompleted, buffer)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := p.nextID
	p.nextID++
	p.subs[id] = ch
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if c, ok := p.subs[id]; ok {
				delete(p.subs, id)
				close(c)
			}
		})
	}
}

// Close closes every subscriber channel.
func (p *MemoryPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, ch := range p.subs {
		delete(p.subs, id)
		close(ch)
	}
	p.closed = true
	return nil
}
