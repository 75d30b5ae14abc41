package stt

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider for testing.
type Mock struct {
	// StartFunc overrides Start readiness. Defaults to ready.
	StartFunc func(ctx context.Context, cb Callbacks) bool

	// SendChunkFunc overrides SendChunk. Defaults to accepting chunks
	// while streaming.
	SendChunkFunc func(chunk []byte) bool

	// StopFunc overrides Stop. Defaults to returning queued finals.
	StopFunc func() []string

	// Finals returned by Stop when StopFunc is nil.
	Finals []string

	mu        sync.Mutex
	cb        Callbacks
	streaming bool
	chunks    [][]byte
	calls     []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Time   time.Time
}

// NewMock creates a mock provider that reports ready immediately.
func NewMock() *Mock {
	return &Mock{}
}

// NewMockUnready creates a mock whose session never becomes ready.
func NewMockUnready() *Mock {
	return &Mock{
		StartFunc: func(ctx context.Context, cb Callbacks) bool {
			return false
		},
	}
}

// Start records the callbacks and reports readiness.
func (m *Mock) Start(ctx context.Context, cb Callbacks) bool {
	m.record("Start")

	m.mu.Lock()
	m.cb = cb
	m.mu.Unlock()

	if m.StartFunc != nil {
		ok := m.StartFunc(ctx, cb)
		m.mu.Lock()
		m.streaming = ok
		m.mu.Unlock()
		return ok
	}

	m.mu.Lock()
	m.streaming = true
	m.mu.Unlock()
	return true
}

// SendChunk records the chunk.
func (m *Mock) SendChunk(chunk []byte) bool {
	m.record("SendChunk")
	if m.SendChunkFunc != nil {
		return m.SendChunkFunc(chunk)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.streaming {
		return false
	}
	m.chunks = append(m.chunks, chunk)
	return true
}

// Stop ends the session and returns the configured finals.
func (m *Mock) Stop() []string {
	m.record("Stop")

	m.mu.Lock()
	m.streaming = false
	m.mu.Unlock()

	if m.StopFunc != nil {
		return m.StopFunc()
	}
	return m.Finals
}

// IsStreaming reports the mock session state.
func (m *Mock) IsStreaming() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streaming
}

// Close marks the session closed.
func (m *Mock) Close() error {
	m.record("Close")
	m.mu.Lock()
	m.streaming = false
	m.mu.Unlock()
	return nil
}

// EmitPartial invokes the registered partial callback, simulating a
// transcript event from the backend.
func (m *Mock) EmitPartial(text string, confidence float64) {
	m.mu.Lock()
	cb := m.cb
	m.mu.Unlock()
	if cb.OnPartial != nil {
		cb.OnPartial(text, confidence)
	}
}

// EmitFinal invokes the registered final callback.
func (m *Mock) EmitFinal(text string, confidence float64) {
	m.mu.Lock()
	cb := m.cb
	m.mu.Unlock()
	if cb.OnFinal != nil {
		cb.OnFinal(text, confidence)
	}
}

// EmitTurnEnd invokes the registered turn-end callback.
func (m *Mock) EmitTurnEnd(text string) {
	m.mu.Lock()
	cb := m.cb
	m.mu.Unlock()
	if cb.OnTurnEnd != nil {
		cb.OnTurnEnd(text)
	}
}

// EmitError invokes the registered error callback.
func (m *Mock) EmitError(err error) {
	m.mu.Lock()
	cb := m.cb
	m.mu.Unlock()
	if cb.OnError != nil {
		cb.OnError(err)
	}
}

// Chunks returns all chunks received by SendChunk.
func (m *Mock) Chunks() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.chunks))
	copy(out, m.chunks)
	return out
}

// record adds a call to the tracking list.
func (m *Mock) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Time: time.Now()})
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Reset clears all recorded calls and chunks.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.chunks = nil
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
