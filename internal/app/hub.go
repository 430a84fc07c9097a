package app

import (
	"sync"

	"github.com/violabg/dev-quiz-battle-sub000/internal/domain"
)

// EventHub fans change events out to per-game subscribers. Stores embed it to
// implement GameStore.Subscribe; broadcast never blocks on a slow subscriber
// (the oldest buffered event is dropped instead, consumers re-snapshot
// anyway).
type EventHub struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.Event]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[string]map[chan domain.Event]struct{})}
}

// Subscribe registers a buffered channel for one game's events.
func (h *EventHub) Subscribe(gameID string) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 8)

	h.mu.Lock()
	if h.subs[gameID] == nil {
		h.subs[gameID] = make(map[chan domain.Event]struct{})
	}
	h.subs[gameID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[gameID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, gameID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of its game.
func (h *EventHub) Publish(ev domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ev.GameID] {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
