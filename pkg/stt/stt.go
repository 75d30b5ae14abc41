// Package stt provides streaming speech-to-text for the voice pipeline.
//
// Providers hold one realtime transcription session at a time. Audio is fed
// as raw PCM chunks and transcripts are delivered through callbacks: partial
// transcripts for live feedback, final transcripts as the authoritative text,
// and turn-end signals when the speaker stops.
//
// Example usage:
//
//	client, _ := stt.NewAssemblyAI(
//	    stt.WithAPIKey(os.Getenv("ASSEMBLYAI_API_KEY")),
//	)
//	ready := client.Start(ctx, stt.Callbacks{
//	    OnFinal:   func(text string, confidence float64) { ... },
//	    OnTurnEnd: func(text string) { ... },
//	})
//	if ready {
//	    client.SendChunk(pcm)
//	}
//	finals := client.Stop()
package stt

import "context"

// Callbacks deliver transcription events. All callbacks are invoked from a
// single dispatch goroutine, so handlers never race each other.
type Callbacks struct {
	// OnPartial delivers a non-authoritative in-progress transcript.
	OnPartial func(text string, confidence float64)

	// OnFinal delivers an authoritative transcript segment.
	OnFinal func(text string, confidence float64)

	// OnTurnEnd signals that the speaker finished a turn. Text is the
	// final transcript of that turn.
	OnTurnEnd func(text string)

	// OnError delivers session errors.
	OnError func(err error)
}

// Provider is a realtime speech-to-text session.
type Provider interface {
	// Start opens the streaming session and reports readiness. It blocks
	// for at most the configured ready timeout; false means the session
	// did not come up in time and chunks will be dropped.
	Start(ctx context.Context, cb Callbacks) bool

	// SendChunk forwards one raw PCM chunk. Returns false when there is
	// no live session to receive it.
	SendChunk(chunk []byte) bool

	// Stop terminates the session and returns the accumulated final
	// transcript segments in order.
	Stop() []string

	// IsStreaming reports whether a live session is established.
	IsStreaming() bool

	// Close releases all resources. The provider cannot be reused.
	Close() error
}
