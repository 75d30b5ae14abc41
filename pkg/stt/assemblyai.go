package stt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	assemblyAIWSBaseURL = "wss://api.assemblyai.com/v2/realtime/ws"
	keepaliveInterval   = 30 * time.Second
)

// AssemblyAI implements realtime transcription over WebSocket.
type AssemblyAI struct {
	config *Config
	logger *slog.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	streaming bool

	cb      Callbacks
	ready   chan struct{}
	events  chan realtimeEvent
	closeCh chan struct{}

	finalsMu sync.Mutex
	finals   []string

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	// testEndpoint overrides the production URL in tests.
	testEndpoint string
}

// NewAssemblyAI creates a new realtime transcription provider.
func NewAssemblyAI(opts ...Option) (*AssemblyAI, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &AssemblyAI{
		config:  cfg,
		logger:  cfg.Logger.With("component", "stt.assemblyai"),
		ready:   make(chan struct{}),
		events:  make(chan realtimeEvent, 64),
		closeCh: make(chan struct{}),
	}, nil
}

// Start opens the streaming session. It returns true once the backend
// acknowledges the session, false if that does not happen within the
// configured ready timeout. On false the caller may keep sending chunks;
// they are dropped until readiness, never an error.
func (a *AssemblyAI) Start(ctx context.Context, cb Callbacks) bool {
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.cb = cb

	if err := a.dial(); err != nil {
		a.logger.Error("realtime session dial failed", "error", err)
		if cb.OnError != nil {
			cb.OnError(WrapError("assemblyai", err))
		}
		return false
	}

	go a.readLoop()
	go a.dispatchLoop()
	go a.keepaliveLoop()

	select {
	case <-a.ready:
		a.connMu.Lock()
		a.streaming = true
		a.connMu.Unlock()
		a.logger.Info("realtime session established", "sample_rate", a.config.SampleRate)
		return true
	case <-time.After(a.config.ReadyTimeout):
		a.logger.Warn("realtime session not ready in time",
			"timeout", a.config.ReadyTimeout,
		)
		return false
	case <-a.ctx.Done():
		return false
	}
}

// dial establishes the WebSocket connection.
func (a *AssemblyAI) dial() error {
	a.connMu.Lock()
	defer a.connMu.Unlock()

	base := assemblyAIWSBaseURL
	if a.testEndpoint != "" {
		base = a.testEndpoint
	}
	url := fmt.Sprintf("%s?sample_rate=%d", base, a.config.SampleRate)

	headers := http.Header{}
	headers.Set("Authorization", a.config.APIKey)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(a.ctx, url, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	a.conn = conn
	return nil
}

// SendChunk forwards one raw PCM chunk to the live session.
// Returns false when there is no session to receive it.
func (a *AssemblyAI) SendChunk(chunk []byte) bool {
	a.connMu.Lock()
	conn := a.conn
	streaming := a.streaming
	a.connMu.Unlock()

	if !streaming || conn == nil || len(chunk) == 0 {
		return false
	}

	msg := map[string]string{
		"audio_data": base64.StdEncoding.EncodeToString(chunk),
	}

	a.connMu.Lock()
	err := conn.WriteJSON(msg)
	a.connMu.Unlock()

	if err != nil {
		a.logger.Error("failed to send audio chunk", "error", err)
		a.handleDisconnect()
		return false
	}
	return true
}

// Stop terminates the session and returns the accumulated final transcript
// segments in order.
func (a *AssemblyAI) Stop() []string {
	a.connMu.Lock()
	conn := a.conn
	a.streaming = false
	a.connMu.Unlock()

	if conn != nil {
		// Best-effort session terminate before closing
		a.connMu.Lock()
		conn.WriteJSON(map[string]bool{"terminate_session": true})
		a.connMu.Unlock()
	}

	a.Close()

	// Hand the accumulated finals to the first caller only; a repeated
	// stop on an already-closed session reports an empty summary.
	a.finalsMu.Lock()
	defer a.finalsMu.Unlock()
	out := a.finals
	a.finals = nil
	return out
}

// IsStreaming reports whether a live session is established.
func (a *AssemblyAI) IsStreaming() bool {
	a.connMu.Lock()
	defer a.connMu.Unlock()
	return a.streaming
}

// Transcript returns the accumulated final segments joined as one string.
func (a *AssemblyAI) Transcript() string {
	a.finalsMu.Lock()
	defer a.finalsMu.Unlock()
	return strings.Join(a.finals, " ")
}

// Close terminates the WebSocket connection and stops all loops.
func (a *AssemblyAI) Close() error {
	a.closeOnce.Do(func() {
		if a.cancel != nil {
			a.cancel()
		}
		close(a.closeCh)

		a.connMu.Lock()
		defer a.connMu.Unlock()
		if a.conn != nil {
			a.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			a.conn.Close()
			a.conn = nil
		}
		a.streaming = false
	})
	return nil
}

// readLoop reads transcript events from the WebSocket and forwards them to
// the dispatch loop. Keeping parsing here and callbacks in dispatchLoop means
// a slow handler cannot stall the socket reads.
func (a *AssemblyAI) readLoop() {
	readyClosed := false

	for {
		select {
		case <-a.closeCh:
			return
		default:
		}

		a.connMu.Lock()
		conn := a.conn
		a.connMu.Unlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				a.logger.Error("websocket read error", "error", err)
			}
			a.handleDisconnect()
			return
		}

		var event realtimeEvent
		if err := json.Unmarshal(message, &event); err != nil {
			a.logger.Warn("failed to parse realtime event", "error", err)
			continue
		}

		if event.MessageType == "SessionBegins" && !readyClosed {
			close(a.ready)
			readyClosed = true
			continue
		}

		select {
		case a.events <- event:
		case <-a.closeCh:
			return
		}
	}
}

// dispatchLoop invokes callbacks from a single goroutine.
func (a *AssemblyAI) dispatchLoop() {
	for {
		select {
		case <-a.closeCh:
			return
		case event := <-a.events:
			switch event.MessageType {
			case "PartialTranscript":
				if event.Text != "" && a.cb.OnPartial != nil {
					a.cb.OnPartial(event.Text, event.Confidence)
				}
			case "FinalTranscript":
				if event.Text == "" {
					continue
				}
				a.finalsMu.Lock()
				a.finals = append(a.finals, event.Text)
				a.finalsMu.Unlock()

				if a.cb.OnFinal != nil {
					a.cb.OnFinal(event.Text, event.Confidence)
				}
				// A final segment marks the end of the speaker's turn
				if a.cb.OnTurnEnd != nil {
					a.cb.OnTurnEnd(event.Text)
				}
			case "SessionTerminated":
				return
			case "RealtimeError":
				if a.cb.OnError != nil {
					a.cb.OnError(WrapError("assemblyai", fmt.Errorf("%s", event.Error)))
				}
			}
		}
	}
}

// keepaliveLoop sends periodic pings to maintain the connection.
func (a *AssemblyAI) keepaliveLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.closeCh:
			return
		case <-ticker.C:
			a.connMu.Lock()
			conn := a.conn
			a.connMu.Unlock()

			if conn == nil {
				continue
			}

			a.connMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			a.connMu.Unlock()

			if err != nil {
				a.logger.Warn("keepalive ping failed", "error", err)
				a.handleDisconnect()
			}
		}
	}
}

// handleDisconnect tears down the connection state after a socket failure.
// Realtime transcription sessions are per-turn, so there is no reconnect;
// the next turn starts a fresh session.
func (a *AssemblyAI) handleDisconnect() {
	a.connMu.Lock()
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
	wasStreaming := a.streaming
	a.streaming = false
	a.connMu.Unlock()

	if wasStreaming && a.cb.OnError != nil {
		a.cb.OnError(WrapError("assemblyai", fmt.Errorf("session disconnected")))
	}
}

// realtimeEvent is the wire format of realtime transcription messages.
type realtimeEvent struct {
	MessageType string  `json:"message_type"`
	SessionID   string  `json:"session_id,omitempty"`
	Text        string  `json:"text,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// Verify AssemblyAI implements Provider at compile time.
var _ Provider = (*AssemblyAI)(nil)
