package logger

import (
	"sync"
)

type Event struct {
	Time  string         `json:"time"`
	Level string         `json:"level"`
	Msg   string         `json:"msg"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

const recentMax = 2000

var (
	recentMu sync.Mutex
	recent   []Event
)

func addEvent(evt Event) {
	recentMu.Lock()
	defer recentMu.Unlock()
	if len(recent) < recentMax {
		recent = append(recent, evt)
		return
	}
	copy(recent, recent[1:])
	recent[len(recent)-1] = evt
}

// Recent returns up to limit of the newest events, oldest first.
func Recent(limit int) []Event {
	recentMu.Lock()
	defer recentMu.Unlock()
	if limit <= 0 || limit > len(recent) {
		limit = len(recent)
	}
	return append([]Event(nil), recent[len(recent)-limit:]...)
}

type hub struct {
	mu   sync.RWMutex
	subs map[chan []byte]struct{}
}

var events = &hub{subs: map[chan []byte]struct{}{}}

// Subscribe streams encoded log events until cancel is called. Slow
// subscribers miss events rather than block logging.
func Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 256)
	events.mu.Lock()
	events.subs[ch] = struct{}{}
	events.mu.Unlock()
	return ch, func() {
		events.mu.Lock()
		if _, ok := events.subs[ch]; ok {
			delete(events.subs, ch)
			close(ch)
		}
		events.mu.Unlock()
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *hub) publish(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}
