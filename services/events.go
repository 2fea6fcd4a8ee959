package services

import (
	"sync"

	"github.com/flashbots/leakhunt/hunt"
)

// broadcaster fans session events out to SSE subscribers.
type broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan hunt.Event]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subscribers: make(map[chan hunt.Event]struct{})}
}

func (b *broadcaster) subscribe() chan hunt.Event {
	ch := make(chan hunt.Event, 32)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *broadcaster) unsubscribe(ch chan hunt.Event) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	b.mu.Unlock()
}

func (b *broadcaster) broadcast(ev hunt.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			// Drop if subscriber is slow
		}
	}
}
