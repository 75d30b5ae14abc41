package tts

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider for testing.
// All methods can be customized via function fields.
type Mock struct {
	// SynthesizeFunc is called when Synthesize is invoked.
	// If nil, returns silent audio of appropriate length.
	SynthesizeFunc func(ctx context.Context, text string) (*AudioResult, error)

	// HealthFunc is called when Health is invoked.
	// If nil, returns nil (healthy).
	HealthFunc func(ctx context.Context) error

	// CloseFunc is called when Close is invoked.
	// If nil, returns nil.
	CloseFunc func() error

	// Tracking
	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Text   string
	Time   time.Time
}

// NewMock creates a new mock provider with sensible defaults.
func NewMock() *Mock {
	return &Mock{
		SynthesizeFunc: func(ctx context.Context, text string) (*AudioResult, error) {
			// Silent audio, ~20ms per character at 44.1kHz PCM16
			bytesPerChar := 1764
			silence := make([]byte, len(text)*bytesPerChar)

			return &AudioResult{
				Audio: silence,
				Format: AudioFormat{
					Encoding:   EncodingWAV,
					SampleRate: 44100,
					Channels:   1,
				},
				CharCount: len(text),
				LatencyMs: 10,
			}, nil
		},
		HealthFunc: func(ctx context.Context) error {
			return nil
		},
	}
}

// Synthesize calls SynthesizeFunc and records the call.
func (m *Mock) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	m.recordCall("Synthesize", text)
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}
	return nil, WrapError("mock", ErrProviderUnavailable)
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) error {
	m.recordCall("Health", "")
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.recordCall("Close", "")
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// recordCall adds a call to the tracking list.
func (m *Mock) recordCall(method, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method: method,
		Text:   text,
		Time:   time.Now(),
	})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
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

// LastCall returns the most recent call, or nil if none.
func (m *Mock) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	call := m.calls[len(m.calls)-1]
	return &call
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// WithError returns a mock that always returns the given error.
func WithError(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(ctx context.Context, text string) (*AudioResult, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error {
			return err
		},
	}
}

// WithLatency wraps a mock to add artificial latency.
func WithLatency(m *Mock, delay time.Duration) *Mock {
	originalSynthesize := m.SynthesizeFunc
	m.SynthesizeFunc = func(ctx context.Context, text string) (*AudioResult, error) {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if originalSynthesize != nil {
			return originalSynthesize(ctx, text)
		}
		return nil, WrapError("mock", ErrProviderUnavailable)
	}
	return m
}

// MockStream implements StreamProvider for testing. SendText calls are
// recorded so interruption behavior (clear and end flags) can be asserted.
type MockStream struct {
	// SendTextFunc overrides SendText. If nil, calls succeed.
	SendTextFunc func(contextID, text string, end, clear bool) error

	// WaitForFinalFunc overrides WaitForFinal. If nil, returns FinalResult.
	WaitForFinalFunc func(contextID string, timeout time.Duration) bool

	// FinalResult is returned by WaitForFinal when WaitForFinalFunc is nil.
	FinalResult bool

	// OnAudioChunk mirrors the production provider's callback.
	OnAudioChunk func(contextID, audioB64 string, final bool)

	mu        sync.Mutex
	connected bool
	sends     []MockSend
	released  []string
}

// MockSend records one SendText invocation.
type MockSend struct {
	ContextID string
	Text      string
	End       bool
	Clear     bool
}

// NewMockStream creates a connected mock streaming provider whose
// WaitForFinal reports success.
func NewMockStream() *MockStream {
	return &MockStream{FinalResult: true, connected: true}
}

// Connect marks the session connected.
func (m *MockStream) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

// SendText records the call.
func (m *MockStream) SendText(contextID, text string, end, clear bool) error {
	m.mu.Lock()
	m.sends = append(m.sends, MockSend{
		ContextID: contextID,
		Text:      text,
		End:       end,
		Clear:     clear,
	})
	m.mu.Unlock()

	if m.SendTextFunc != nil {
		return m.SendTextFunc(contextID, text, end, clear)
	}
	return nil
}

// WaitForFinal returns the configured result.
func (m *MockStream) WaitForFinal(contextID string, timeout time.Duration) bool {
	if m.WaitForFinalFunc != nil {
		return m.WaitForFinalFunc(contextID, timeout)
	}
	return m.FinalResult
}

// ReleaseContext records the released context ID.
func (m *MockStream) ReleaseContext(contextID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, contextID)
}

// Released returns all context IDs released so far.
func (m *MockStream) Released() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.released))
	copy(out, m.released)
	return out
}

// IsConnected reports the mock connection state.
func (m *MockStream) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Close marks the session disconnected.
func (m *MockStream) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// EmitAudio invokes the audio callback, simulating a chunk from the backend.
func (m *MockStream) EmitAudio(contextID, audioB64 string, final bool) {
	if m.OnAudioChunk != nil {
		m.OnAudioChunk(contextID, audioB64, final)
	}
}

// Sends returns all recorded SendText calls.
func (m *MockStream) Sends() []MockSend {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockSend, len(m.sends))
	copy(out, m.sends)
	return out
}

// SendsFor returns the recorded SendText calls for one context.
func (m *MockStream) SendsFor(contextID string) []MockSend {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MockSend
	for _, s := range m.sends {
		if s.ContextID == contextID {
			out = append(out, s)
		}
	}
	return out
}

// Reset clears all recorded sends.
func (m *MockStream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = nil
}

// Verify mocks implement their interfaces at compile time.
var _ Provider = (*Mock)(nil)
var _ StreamProvider = (*MockStream)(nil)
