// Package events provides event management functionality.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	// Strategy lifecycle events
	StrategyRegistered    EventType = "STRATEGY_REGISTERED"
	StrategyEvaluated     EventType = "STRATEGY_EVALUATED"
	StrategyStatusChanged EventType = "STRATEGY_STATUS_CHANGED"
	MutationSpawned       EventType = "MUTATION_SPAWNED"

	// Pipeline events
	BacktestCompleted      EventType = "BACKTEST_COMPLETED"
	BacktestFailed         EventType = "BACKTEST_FAILED"
	EvolutionTickCompleted EventType = "EVOLUTION_TICK_COMPLETED"

	// Operational events
	SettingsChanged EventType = "SETTINGS_CHANGED"
	BackupCompleted EventType = "BACKUP_COMPLETED"
	ErrorOccurred   EventType = "ERROR_OCCURRED"
)

// Event represents a system event with typed data
// The Data field can be either EventData (typed) or map[string]interface{} (legacy)
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Handler is invoked for every event of the subscribed type
type Handler func(*Event)

// Bus is an in-process publish/subscribe fan-out. Dispatch is synchronous:
// Emit returns after every handler has run, which keeps scheduler replay
// deterministic.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType]map[int]Handler
	nextID      int
	log         zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[EventType]map[int]Handler),
		log:         log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for an event type and returns an
// unsubscribe function.
func (b *Bus) Subscribe(t EventType, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[t] == nil {
		b.subscribers[t] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.subscribers[t][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers[t], id)
	}
}

// Emit publishes an event to all subscribers of its type.
func (b *Bus) Emit(t EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      t,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subscribers[t]))
	for _, h := range b.subscribers[t] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	// Handlers run outside the lock so a handler may subscribe or
	// unsubscribe without deadlocking.
	for _, h := range handlers {
		h(event)
	}
}

// SubscriberCount returns the number of handlers for an event type
func (b *Bus) SubscriberCount(t EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[t])
}
