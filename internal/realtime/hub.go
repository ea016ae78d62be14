package realtime

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

var ErrHubClosed = errors.New("realtime: hub closed")

// Hub broadcasts change events to every subscriber, the originator of the
// write included. Publish never blocks: a subscriber whose buffer is full is
// evicted and has to resubscribe and reload.
type Hub struct {
	logger *zap.Logger
	buffer int

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

func NewHub(logger *zap.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		logger: logger,
		buffer: buffer,
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a new listener. The returned subscription must be
// closed when the listener goes away.
func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{hub: h, ch: make(chan model.ChangeEvent, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.ch)
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

func (h *Hub) Publish(_ context.Context, ev model.ChangeEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}

	for s := range h.subs {
		select {
		case s.ch <- ev:
		default:
			h.logger.Warn("evicting slow subscriber",
				zap.String("event", string(ev.Type)),
				zap.String("task_id", ev.TaskID()),
			)
			delete(h.subs, s)
			close(s.ch)
		}
	}
	return nil
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription. Later publishes fail with ErrHubClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		close(s.ch)
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}

type Subscription struct {
	hub *Hub
	ch  chan model.ChangeEvent
}

// Events is closed when the subscription ends, whether by Close, eviction or
// hub shutdown.
func (s *Subscription) Events() <-chan model.ChangeEvent {
	return s.ch
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() error {
	s.hub.remove(s)
	return nil
}
