// Package tts provides a unified interface for text-to-speech providers.
//
// The package supports Murf in two modes: a streaming WebSocket provider that
// synthesizes token-by-token into per-context audio streams, and a REST
// provider used as a non-streaming fallback. All non-streaming providers
// implement the Provider interface, enabling seamless switching without
// changing caller code.
//
// Example usage:
//
//	provider, _ := tts.NewMurf(
//	    tts.WithAPIKey(os.Getenv("MURF_API_KEY")),
//	    tts.WithVoice("en-US-natalie"),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "Hello world")
//	// result.Audio contains WAV audio bytes
package tts

import (
	"context"
	"time"
)

// Provider defines the non-streaming TTS provider interface.
// All implementations must satisfy this interface for seamless provider switching.
type Provider interface {
	// Synthesize converts text to audio, returning the complete audio buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// StreamProvider is a duplex synthesis session. Text is fed incrementally
// under a context ID; audio chunks come back tagged with the same ID so
// stale contexts can be filtered after an interruption.
type StreamProvider interface {
	// Connect establishes the synthesis session.
	Connect(ctx context.Context) error

	// SendText forwards one text fragment for the given context. Setting
	// end marks the context's text as complete; setting clear tells the
	// backend to drop any pending synthesis for the context.
	SendText(contextID, text string, end, clear bool) error

	// WaitForFinal blocks until the final audio chunk for the context has
	// been observed or the timeout elapses. Returns false on timeout.
	WaitForFinal(contextID string, timeout time.Duration) bool

	// ReleaseContext drops any bookkeeping for a finished context. Safe to
	// call for contexts the provider never saw.
	ReleaseContext(contextID string)

	// IsConnected reports whether the session is established.
	IsConnected() bool

	// Close terminates the session and releases resources.
	Close() error
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains the raw audio data in the specified format.
	Audio []byte

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the time to the full response in milliseconds.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	// Encoding specifies the container or codec (e.g., WAV, MP3).
	Encoding Encoding

	// SampleRate in Hz (e.g., 44100, 24000).
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int
}

// Encoding represents audio output formats.
// These match the Murf API format options.
type Encoding string

const (
	EncodingWAV  Encoding = "WAV"
	EncodingMP3  Encoding = "MP3"
	EncodingFLAC Encoding = "FLAC"
	EncodingULaw Encoding = "ULAW"
)

// ChannelType values for the Murf API.
const (
	ChannelMono   = "MONO"
	ChannelStereo = "STEREO"
)

// VoiceSettings controls voice characteristics for providers that support it.
type VoiceSettings struct {
	// Style selects the speaking style (e.g., "Conversational").
	Style string

	// Rate adjusts speaking speed (-50 to 50, 0 is normal).
	Rate int

	// Pitch adjusts voice pitch (-50 to 50, 0 is normal).
	Pitch int
}

// DefaultVoiceSettings returns sensible defaults for voice synthesis.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Style: "Conversational",
	}
}
