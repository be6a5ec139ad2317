// Package stream fans finished audit records out to live subscribers (the
// admin SSE endpoint). Delivery is best effort; the durable trail is the
// audit store.
package stream

import (
	"context"
	"sync"

	"coachscope.org/internal/audit"
)

// Stream fan-outs audit records to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan audit.Record
	next int
}

func New() *Stream {
	return &Stream{
		subs: make(map[int]chan audit.Record),
	}
}

// Subscribe registers a subscriber and returns a channel which will receive
// records. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan audit.Record {
	ch := make(chan audit.Record, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the record to all subscribers.
func (s *Stream) Publish(rec audit.Record) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- rec:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
