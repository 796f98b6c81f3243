package mocks

import (
	"encoding/json"
	"sync"

	"chat-client/internal/eventchannel"
)

// ChannelFake is an in-memory stand-in for the event channel: it keeps the
// same registry semantics (listeners survive until unsubscribed) and lets
// tests push inbound events and inspect or fail outbound emits.
type ChannelFake struct {
	mu        sync.Mutex
	nextID    int
	listeners map[string]map[int]eventchannel.Handler

	EmitErr error
	Emitted []EmittedEvent
}

type EmittedEvent struct {
	Event   string
	Payload any
}

func NewChannelFake() *ChannelFake {
	return &ChannelFake{listeners: make(map[string]map[int]eventchannel.Handler)}
}

func (c *ChannelFake) On(event string, fn eventchannel.Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listeners[event] == nil {
		c.listeners[event] = make(map[int]eventchannel.Handler)
	}
	id := c.nextID
	c.nextID++
	c.listeners[event][id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners[event], id)
	}
}

func (c *ChannelFake) Emit(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.EmitErr != nil {
		return c.EmitErr
	}
	c.Emitted = append(c.Emitted, EmittedEvent{Event: event, Payload: payload})
	return nil
}

// Dispatch delivers an inbound event to every registered listener, the way
// the real channel dispatches a received frame.
func (c *ChannelFake) Dispatch(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	c.mu.Lock()
	handlers := make([]eventchannel.Handler, 0, len(c.listeners[event]))
	for _, fn := range c.listeners[event] {
		handlers = append(handlers, fn)
	}
	c.mu.Unlock()
	for _, fn := range handlers {
		fn(data)
	}
}

// ListenerCount reports how many listeners are registered for an event.
func (c *ChannelFake) ListenerCount(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners[event])
}
