package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Event names.
const (
	EventBlocksSaved     = "blocks:saved"
	EventBlocksRejected  = "blocks:rejected"
	EventSweepCompleted  = "sweeper:completed"
	EventImportCompleted = "importer:completed"
)

// EventEmitter is notified of things services did, e.g. to push updates to
// connected clients. Services receive this interface so they can be tested
// with a recording emitter.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// LogEmitter writes every event to a logger.
type LogEmitter struct {
	Logger zerolog.Logger
}

func (e LogEmitter) Emit(_ context.Context, event string, data any) {
	e.Logger.Debug().Str("event", event).Interface("data", data).Msg("event")
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Named returns the recorded events called event.
func (m *MockEmitter) Named(event string) []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EmittedEvent
	for _, e := range m.Events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
