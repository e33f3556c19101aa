package core

import (
	"sort"
	"sync"
	"time"

	"github.com/sliink/relay/internal/model"
)

// Event represents a system event with metadata
type Event struct {
	Type      model.EventType `json:"type"`
	SourceID  string          `json:"source_id"`
	Data      interface{}     `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent creates a new event
func NewEvent(eventType model.EventType, sourceID string, data interface{}) Event {
	return Event{
		Type:      eventType,
		SourceID:  sourceID,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// EventCallback is a function that is called when an event occurs
type EventCallback func(Event)

// EventBus delivers events synchronously to the subscribers of their type
type EventBus struct {
	subscribers map[model.EventType]map[string]EventCallback
	mutex       sync.RWMutex
	BaseComponent
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers:   make(map[model.EventType]map[string]EventCallback),
		BaseComponent: NewBaseComponent("event_bus", "Event Bus"),
	}
}

// Initialize prepares the event bus for operation
func (b *EventBus) Initialize() bool {
	b.SetStatus(model.StatusInitialized)
	return true
}

// Start begins event bus operation
func (b *EventBus) Start() bool {
	b.SetStatus(model.StatusRunning)
	return true
}

// Stop halts event bus operation and drops all subscribers
func (b *EventBus) Stop() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.subscribers = make(map[model.EventType]map[string]EventCallback)

	b.SetStatus(model.StatusStopped)
	return true
}

// Subscribe registers a callback for a specific event type. A second
// subscription with the same listener id replaces the first.
func (b *EventBus) Subscribe(eventType model.EventType, listenerID string, callback EventCallback) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.subscribers[eventType] == nil {
		b.subscribers[eventType] = make(map[string]EventCallback)
	}
	b.subscribers[eventType][listenerID] = callback
}

// Unsubscribe removes a subscriber from a specific event type
func (b *EventBus) Unsubscribe(eventType model.EventType, listenerID string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.subscribers[eventType] != nil {
		delete(b.subscribers[eventType], listenerID)
	}
}

// Publish calls every subscriber of the event type in listener id order.
// Callbacks run without the bus lock held and may publish themselves.
func (b *EventBus) Publish(event Event) {
	if b.GetStatus() != model.StatusRunning {
		return
	}

	b.mutex.RLock()
	subscribers := b.subscribers[event.Type]
	ids := make([]string, 0, len(subscribers))
	for id := range subscribers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	callbacks := make([]EventCallback, 0, len(ids))
	for _, id := range ids {
		callbacks = append(callbacks, subscribers[id])
	}
	b.mutex.RUnlock()

	for _, callback := range callbacks {
		callback(event)
	}
}
