package core

import "sync"

// EventContext carries a small payload with an event. Which fields are set
// depends on the event code.
type EventContext struct {
	Data struct {
		U32 [4]uint32
		U16 [8]uint16
	}
}

type EventCode uint16

const (
	// Shuts the application down on the next frame.
	EventApplicationQuit EventCode = iota + 1

	// Keyboard key pressed.
	/* Context usage:
	 * key := KeyCode(data.Data.U16[0])
	 */
	EventKeyPressed

	// Keyboard key released.
	/* Context usage:
	 * key := KeyCode(data.Data.U16[0])
	 */
	EventKeyReleased

	// Framebuffer resized by the OS.
	/* Context usage:
	 * width := data.Data.U32[0]
	 * height := data.Data.U32[1]
	 */
	EventResized

	maxEventCode
)

// Should return true if handled.
type EventHandler func(code EventCode, sender interface{}, listener interface{}, data EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback EventHandler
}

// EventBus dispatches events to listeners registered per code. Listeners
// run synchronously on the goroutine that fires the event.
type EventBus struct {
	mu         sync.RWMutex
	registered [maxEventCode][]registeredEvent
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

// Register adds a listener for code. A listener can only be registered once
// per code, a duplicate returns false.
func (b *EventBus) Register(code EventCode, listener interface{}, onEvent EventHandler) bool {
	if code >= maxEventCode || onEvent == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for event %d", code)
			return false
		}
	}
	b.registered[code] = append(b.registered[code], registeredEvent{listener: listener, callback: onEvent})
	return true
}

func (b *EventBus) Unregister(code EventCode, listener interface{}) bool {
	if code >= maxEventCode {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	events := b.registered[code]
	for i, e := range events {
		if e.listener == listener {
			b.registered[code] = append(events[:i:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// Fire sends an event to the listeners of code in registration order until
// one of them handles it. It reports whether the event was handled.
func (b *EventBus) Fire(code EventCode, sender interface{}, data EventContext) bool {
	if code >= maxEventCode {
		return false
	}
	b.mu.RLock()
	events := append([]registeredEvent(nil), b.registered[code]...)
	b.mu.RUnlock()

	for _, e := range events {
		if e.callback(code, sender, e.listener, data) {
			return true
		}
	}
	return false
}

// Clear drops every registration.
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.registered {
		b.registered[i] = nil
	}
}
