// Package agent orchestrates one response turn: model tokens stream out to
// the client and into synthesis under a per-turn context ID, with
// interruption handled by cancelling the in-flight turn and clearing its
// synthesis context.
package agent

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxalabs/voxa/internal/metrics"
	"github.com/voxalabs/voxa/pkg/llm"
	"github.com/voxalabs/voxa/pkg/protocol"
	"github.com/voxalabs/voxa/pkg/session"
	"github.com/voxalabs/voxa/pkg/tts"
)

// DefaultFinalWaitTimeout bounds how long a turn waits for the final
// synthesis chunk after the model finishes.
const DefaultFinalWaitTimeout = 5 * time.Second

// Emitter delivers one protocol message to the client. Implementations must
// be safe for concurrent use; the orchestrator calls it from turn goroutines
// and from the synthesis read loop.
type Emitter func(msg *protocol.Message)

// Config holds orchestrator configuration.
type Config struct {
	// FinalWaitTimeout bounds the wait for final synthesis audio.
	FinalWaitTimeout time.Duration

	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.Metrics

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring the orchestrator.
type Option func(*Config)

// WithFinalWaitTimeout sets the final-audio wait bound.
func WithFinalWaitTimeout(d time.Duration) Option {
	return func(c *Config) { c.FinalWaitTimeout = d }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Config) { c.Metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// turnState tracks one active synthesis context.
type turnState struct {
	emit      Emitter
	audioSeen bool
}

// Orchestrator runs response turns. One orchestrator serves all sessions;
// each session has at most one active turn at a time.
type Orchestrator struct {
	llm       llm.Provider
	streamTTS tts.StreamProvider
	restTTS   tts.Provider

	config *Config
	logger *slog.Logger

	mu    sync.Mutex
	turns map[string]*turnState
}

// New creates an orchestrator. streamTTS and restTTS may be nil; turns then
// run text-only.
func New(llmProvider llm.Provider, streamTTS tts.StreamProvider, restTTS tts.Provider, opts ...Option) *Orchestrator {
	cfg := &Config{
		FinalWaitTimeout: DefaultFinalWaitTimeout,
		Logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Orchestrator{
		llm:       llmProvider,
		streamTTS: streamTTS,
		restTTS:   restTTS,
		config:    cfg,
		logger:    cfg.Logger.With("component", "agent.orchestrator"),
		turns:     make(map[string]*turnState),
	}
}

// StartTurn begins a response turn for the given user text and returns
// immediately; the caller's receive loop never blocks on the handoff. Any
// in-flight turn on the session is cancelled and fully awaited by the new
// turn's goroutine before it touches session state, so at most one turn per
// session is ever active. The user message is recorded before the turn
// runs; the assistant message is recorded only if the turn completes.
func (o *Orchestrator) StartTurn(sess *session.Session, userText string, emit Emitter) {
	ctx, cancel := context.WithCancel(context.Background())
	task := session.NewTask(cancel)
	prev := sess.SetTask(task)

	if o.config.Metrics != nil {
		o.config.Metrics.TurnsStarted.Inc()
	}

	go func() {
		if prev != nil {
			prev.Cancel()
			<-prev.Done
		}

		// Snapshot history only once the previous turn has fully
		// unwound, so its outcome is settled before this turn builds
		// its prompt.
		history := sess.History()
		sess.AddUserMessage(userText)

		o.runTurn(ctx, sess, userText, history, emit, task)
	}()
}

// CancelActive cancels the session's in-flight turn, if any, and waits for
// it to finish unwinding.
func (o *Orchestrator) CancelActive(sess *session.Session) {
	if task := sess.SetTask(nil); task != nil {
		task.Cancel()
		<-task.Done
	}
}

// HandleAudioChunk relays one synthesis chunk to the turn that owns its
// context. Chunks for unknown contexts are stale output from an interrupted
// turn and are dropped. Wire this to the stream provider's audio callback.
func (o *Orchestrator) HandleAudioChunk(contextID, audioB64 string, final bool) {
	o.mu.Lock()
	state, ok := o.turns[contextID]
	if ok {
		state.audioSeen = true
	}
	o.mu.Unlock()

	if !ok {
		return
	}

	msg, err := protocol.NewAudioChunkMessageB64(audioB64, contextID, final)
	if err != nil {
		return
	}
	state.emit(msg)

	if o.config.Metrics != nil {
		o.config.Metrics.AudioChunksRelayed.Inc()
	}
}

// ChatTurn runs one blocking, non-streaming exchange for the REST API.
// The reply is synthesized through the fallback provider when available.
func (o *Orchestrator) ChatTurn(ctx context.Context, sess *session.Session, userText string) (string, *tts.AudioResult, error) {
	history := sess.History()
	sess.AddUserMessage(userText)

	resp, err := o.llm.Chat(ctx, &llm.ChatRequest{
		Messages: llm.BuildVoiceMessages(history, userText),
	})
	if err != nil {
		return "", nil, err
	}

	reply := resp.Message.Content
	sess.AddAssistantMessage(reply)

	var audio *tts.AudioResult
	if o.restTTS != nil {
		audio, err = o.restTTS.Synthesize(ctx, reply)
		if err != nil {
			// Text still answers the request; audio is best-effort here
			o.logger.Warn("chat synthesis failed", "error", err, "session_id", sess.ID)
			audio = nil
		}
	}

	return reply, audio, nil
}

// runTurn drives one turn: stream tokens, feed synthesis, close out.
func (o *Orchestrator) runTurn(ctx context.Context, sess *session.Session, userText string, history []llm.Message, emit Emitter, task *session.Task) {
	defer close(task.Done)

	start := time.Now()
	contextID := uuid.NewString()
	prevContext := sess.ContextID()
	sess.SetContextID(contextID)

	o.registerTurn(contextID, emit)
	defer o.unregisterTurn(contextID)

	// Abandon any synthesis still in flight from the interrupted turn
	if prevContext != "" && o.streamTTSReady() {
		if err := o.streamTTS.SendText(prevContext, "", false, true); err != nil {
			o.logger.Warn("failed to clear stale context",
				"error", err, "context_id", prevContext)
		}
	}

	if msg, err := protocol.NewStatusMessage("thinking", ""); err == nil {
		emit(msg)
	}

	stream, err := o.llm.Stream(ctx, &llm.ChatRequest{
		Messages: llm.BuildVoiceMessages(history, userText),
	})
	if err != nil {
		o.failTurn(emit, "backend_unavailable", err)
		return
	}
	defer stream.Close()

	var assembled strings.Builder
	for {
		if ctx.Err() != nil {
			o.cancelTurn(contextID)
			return
		}

		chunk, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				o.cancelTurn(contextID)
				return
			}
			o.failTurn(emit, "backend_unavailable", err)
			return
		}

		if chunk.Delta != "" {
			// Assemble first, then notify, then synthesize, so the
			// client never hears audio for a token it has not seen.
			assembled.WriteString(chunk.Delta)

			if msg, err := protocol.NewTokenMessage(chunk.Delta, contextID); err == nil {
				emit(msg)
			}
			if o.config.Metrics != nil {
				o.config.Metrics.TokensStreamed.Inc()
			}

			if o.streamTTSReady() {
				if err := o.streamTTS.SendText(contextID, chunk.Delta, false, false); err != nil {
					o.logger.Warn("failed to forward token to synthesis",
						"error", err, "context_id", contextID)
				}
			}
		}

		if chunk.Done {
			break
		}
	}

	if ctx.Err() != nil {
		o.cancelTurn(contextID)
		return
	}

	reply := assembled.String()
	if reply != "" {
		sess.AddAssistantMessage(reply)
	}

	if msg, err := protocol.NewCompleteMessage(reply, contextID); err == nil {
		emit(msg)
	}

	// Close out synthesis: signal end of text, bound the wait for the
	// final chunk, and fall back to one-shot synthesis if no streaming
	// audio was observed at all.
	if o.streamTTSReady() && reply != "" {
		if err := o.streamTTS.SendText(contextID, "", true, false); err != nil {
			o.logger.Warn("failed to send end of text",
				"error", err, "context_id", contextID)
		} else if !o.waitForFinal(ctx, contextID) {
			if ctx.Err() != nil {
				// Interrupted while waiting for the last audio
				// chunk. The reply text already completed; only
				// the synthesis context is abandoned.
				o.cancelTurn(contextID)
				return
			}
			o.logger.Warn("final audio not observed in time", "context_id", contextID)
		}
	}

	if ctx.Err() != nil {
		o.cancelTurn(contextID)
		return
	}

	if reply != "" && !o.audioSeen(contextID) && o.restTTS != nil {
		o.fallbackSynthesize(ctx, reply, emit)
	}

	if o.config.Metrics != nil {
		o.config.Metrics.TurnsCompleted.Inc()
		o.config.Metrics.TurnDuration.Observe(time.Since(start).Seconds())
	}

	o.logger.Info("turn complete",
		"session_id", sess.ID,
		"context_id", contextID,
		"chars", len(reply),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// waitForFinal waits for the final synthesis chunk, giving up early if the
// turn is cancelled. The provider wait runs in its own goroutine so an
// interruption never has to ride out the full timeout.
func (o *Orchestrator) waitForFinal(ctx context.Context, contextID string) bool {
	done := make(chan bool, 1)
	go func() {
		done <- o.streamTTS.WaitForFinal(contextID, o.config.FinalWaitTimeout)
	}()

	select {
	case ok := <-done:
		return ok
	case <-ctx.Done():
		return false
	}
}

// fallbackSynthesize runs exactly-once non-streaming synthesis for a turn
// that produced no streaming audio.
func (o *Orchestrator) fallbackSynthesize(ctx context.Context, reply string, emit Emitter) {
	result, err := o.restTTS.Synthesize(ctx, reply)
	if err != nil {
		if ctx.Err() != nil {
			// The turn was interrupted mid-synthesis; the client asked
			// for this, so it is not a backend failure.
			return
		}
		o.logger.Error("fallback synthesis failed", "error", err)
		o.failTurn(emit, "backend_unavailable", err)
		return
	}

	if msg, err := protocol.NewTTSAudioMessage(result.Audio,
		strings.ToLower(string(result.Format.Encoding)), result.Format.SampleRate); err == nil {
		emit(msg)
	}

	if o.config.Metrics != nil {
		o.config.Metrics.FallbackSyntheses.Inc()
	}
}

// cancelTurn unwinds an interrupted turn: its synthesis context is cleared
// and nothing is recorded in history.
func (o *Orchestrator) cancelTurn(contextID string) {
	if o.streamTTSReady() {
		if err := o.streamTTS.SendText(contextID, "", false, true); err != nil {
			o.logger.Warn("failed to clear cancelled context",
				"error", err, "context_id", contextID)
		}
	}

	if o.config.Metrics != nil {
		o.config.Metrics.TurnsCancelled.Inc()
	}

	o.logger.Debug("turn cancelled", "context_id", contextID)
}

// failTurn reports a turn failure to the client as a single error event.
// The session remains usable for the next turn.
func (o *Orchestrator) failTurn(emit Emitter, code string, err error) {
	o.logger.Error("turn failed", "code", code, "error", err)
	if msg, merr := protocol.NewErrorMessage(code, err.Error()); merr == nil {
		emit(msg)
	}
}

func (o *Orchestrator) registerTurn(contextID string, emit Emitter) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.turns[contextID] = &turnState{emit: emit}
}

func (o *Orchestrator) unregisterTurn(contextID string) {
	o.mu.Lock()
	delete(o.turns, contextID)
	o.mu.Unlock()

	if o.streamTTS != nil {
		o.streamTTS.ReleaseContext(contextID)
	}
}

func (o *Orchestrator) audioSeen(contextID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	state, ok := o.turns[contextID]
	return ok && state.audioSeen
}

func (o *Orchestrator) streamTTSReady() bool {
	return o.streamTTS != nil && o.streamTTS.IsConnected()
}
