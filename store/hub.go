package store

import (
	"context"
	"log"
	"sync"
)

// subscription re-reads its target every time it is kicked and hands the
// result to the consumer. Kicks coalesce: while a fetch is running at most one
// more is queued, so delivery order always follows write order.
type subscription struct {
	id         int64
	collection string
	docID      string // empty for query subscriptions

	fetch   func(ctx context.Context) error
	onError func(error)

	kick   chan struct{}
	done   chan struct{}
	exited chan struct{} // closed once run has returned
	once   sync.Once
}

func (s *subscription) notify() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// halt asks run to return without waiting for it.
func (s *subscription) halt() {
	s.once.Do(func() { close(s.done) })
}

// stop halts the subscription and blocks until a fetch in progress, and the
// callback it is running, has finished.
func (s *subscription) stop() {
	s.halt()
	<-s.exited
}

func (s *subscription) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *subscription) run(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			s.halt()
			return
		case <-s.kick:
			if err := s.fetch(ctx); err != nil && !s.stopped() && ctx.Err() == nil {
				log.Printf("⚠️ Subscription on %s failed: %v", s.collection, err)
				if s.onError != nil {
					s.onError(err)
				}
			}
		}
	}
}

// hub tracks live subscriptions and fans change notifications out to them.
type hub struct {
	mu     sync.Mutex
	subs   map[int64]*subscription
	nextID int64
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[int64]*subscription)}
}

func (h *hub) add(ctx context.Context, sub *subscription) (Unsubscribe, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	h.nextID++
	sub.id = h.nextID
	sub.kick = make(chan struct{}, 1)
	sub.done = make(chan struct{})
	sub.exited = make(chan struct{})
	h.subs[sub.id] = sub
	h.mu.Unlock()

	go func() {
		defer close(sub.exited)
		sub.run(ctx)
		h.remove(sub.id)
	}()
	sub.notify()

	return func() {
		sub.stop()
		h.remove(sub.id)
	}, nil
}

func (h *hub) remove(id int64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// changed kicks every subscription watching collection/id.
func (h *hub) changed(collection, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		if sub.collection != collection {
			continue
		}
		if sub.docID != "" && sub.docID != id {
			continue
		}
		sub.notify()
	}
}

// refreshAll kicks every subscription, used after a lost notification stream.
func (h *hub) refreshAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		sub.notify()
	}
}

func (h *hub) broadcastError(err error) {
	h.mu.Lock()
	subs := make([]*subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()
	for _, sub := range subs {
		if sub.onError != nil && !sub.stopped() {
			sub.onError(err)
		}
	}
}

// close stops every subscription and waits for their callbacks to return.
func (h *hub) close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*subscription, 0, len(h.subs))
	for id, sub := range h.subs {
		sub.halt()
		subs = append(subs, sub)
		delete(h.subs, id)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		<-sub.exited
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
