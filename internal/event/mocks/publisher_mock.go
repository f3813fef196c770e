package mocks

import (
	"context"
	"sync"

	"github.com/example/ec-backoffice/internal/event"
)

// MockPublisher is a mock implementation of event.Publisher for testing
type MockPublisher struct {
	mu sync.Mutex

	// For tracking calls in tests
	PublishCalls [][]event.Envelope
	PublishErr   error
}

// NewMockPublisher creates a new MockPublisher
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{PublishCalls: make([][]event.Envelope, 0)}
}

// Publish records the events and returns PublishErr
func (m *MockPublisher) Publish(_ context.Context, events ...event.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PublishCalls = append(m.PublishCalls, append([]event.Envelope(nil), events...))
	return m.PublishErr
}

// Events returns every published event in order
func (m *MockPublisher) Events() []event.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []event.Envelope
	for _, call := range m.PublishCalls {
		all = append(all, call...)
	}
	return all
}

// EventTypes returns the event types of every published event in order
func (m *MockPublisher) EventTypes() []string {
	var types []string
	for _, e := range m.Events() {
		types = append(types, e.EventType)
	}
	return types
}

// Reset clears recorded calls and the injected error
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishCalls = make([][]event.Envelope, 0)
	m.PublishErr = nil
}
