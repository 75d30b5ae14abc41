package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	murfWSBaseURL      = "wss://api.murf.ai/v1/speech/stream-input"
	keepaliveInterval  = 30 * time.Second
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// MurfWS implements streaming TTS via WebSocket for lowest latency.
//
// Text is fed incrementally under a context ID; audio chunks come back
// tagged with the same ID. Interrupting a turn means clearing its context
// and opening a new one, so audio from the stale context can be filtered
// by ID rather than torn down mid-flight.
type MurfWS struct {
	config *Config
	logger *slog.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	connected bool

	// OnAudioChunk is called for each audio chunk with its context ID,
	// base64-encoded audio, and whether it is the final chunk for that
	// context.
	OnAudioChunk func(contextID, audioB64 string, final bool)

	// OnError is called on session errors.
	OnError func(err error)

	// finalCh holds one channel per context, closed when that context's
	// final chunk arrives.
	finalMu sync.Mutex
	finalCh map[string]chan struct{}

	ctx          context.Context
	cancel       context.CancelFunc
	closeCh      chan struct{}
	closeOnce    sync.Once
	reconnecting bool

	// testEndpoint overrides the production URL in tests.
	testEndpoint string
}

// NewMurfWS creates a new WebSocket-based Murf TTS provider.
func NewMurfWS(opts ...Option) (*MurfWS, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.ValidateWithVoice(); err != nil {
		return nil, err
	}

	return &MurfWS{
		config:  cfg,
		logger:  cfg.Logger.With("component", "tts.murf_ws"),
		finalCh: make(map[string]chan struct{}),
		closeCh: make(chan struct{}),
	}, nil
}

// Connect establishes the WebSocket connection (pre-warms for low latency).
func (m *MurfWS) Connect(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.dial(); err != nil {
		return err
	}

	go m.readLoop()
	go m.keepaliveLoop()

	return nil
}

// dial establishes the WebSocket connection and sends the voice config.
func (m *MurfWS) dial() error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	base := murfWSBaseURL
	if m.testEndpoint != "" {
		base = m.testEndpoint
	}

	wsURL := fmt.Sprintf("%s?api-key=%s&sample_rate=%d&channel_type=%s&format=%s",
		base,
		url.QueryEscape(m.config.APIKey),
		m.config.SampleRate,
		m.config.ChannelType,
		string(m.config.OutputFormat),
	)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(m.ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	m.conn = conn
	m.connected = true

	// Voice config must be the first message on the stream
	voiceConfig := map[string]interface{}{
		"voice_config": map[string]interface{}{
			"voiceId":   m.config.VoiceID,
			"style":     m.config.VoiceSettings.Style,
			"rate":      m.config.VoiceSettings.Rate,
			"pitch":     m.config.VoiceSettings.Pitch,
			"variation": 1,
		},
	}
	if err := conn.WriteJSON(voiceConfig); err != nil {
		conn.Close()
		m.conn = nil
		m.connected = false
		return fmt.Errorf("send voice config: %w", err)
	}

	m.logger.Info("websocket connected",
		"voice", m.config.VoiceID,
		"sample_rate", m.config.SampleRate,
	)

	return nil
}

// SendText forwards one text fragment for the given context. Setting end
// marks the context's text as complete; setting clear tells the backend to
// drop pending synthesis for the context.
func (m *MurfWS) SendText(contextID, text string, end, clear bool) error {
	m.connMu.Lock()
	conn := m.conn
	connected := m.connected
	m.connMu.Unlock()

	if !connected || conn == nil {
		return WrapError(providerMurf, ErrNotConnected)
	}

	msg := map[string]interface{}{
		"context_id": contextID,
	}
	if text != "" {
		msg["text"] = text
	}
	if end {
		msg["end"] = true
	}
	if clear {
		msg["clear"] = true
	}

	// Register the final waiter before the end flag goes out, so the
	// final chunk cannot race the waiter.
	if end {
		m.finalWaiter(contextID)
	}

	m.connMu.Lock()
	err := m.conn.WriteJSON(msg)
	m.connMu.Unlock()

	if err != nil {
		m.logger.Error("failed to send text", "error", err, "context_id", contextID)
		m.handleDisconnect()
		return WrapError(providerMurf, err)
	}
	return nil
}

// WaitForFinal blocks until the final audio chunk for the context has been
// observed or the timeout elapses. Returns false on timeout.
func (m *MurfWS) WaitForFinal(contextID string, timeout time.Duration) bool {
	ch := m.finalWaiter(contextID)

	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		m.logger.Warn("timed out waiting for final audio",
			"context_id", contextID,
			"timeout", timeout,
		)
		return false
	case <-m.closeCh:
		return false
	}
}

// finalWaiter returns the final-chunk channel for a context, creating it if
// needed.
func (m *MurfWS) finalWaiter(contextID string) chan struct{} {
	m.finalMu.Lock()
	defer m.finalMu.Unlock()

	ch, ok := m.finalCh[contextID]
	if !ok {
		ch = make(chan struct{})
		m.finalCh[contextID] = ch
	}
	return ch
}

// ReleaseContext drops the final waiter for a finished or abandoned context.
func (m *MurfWS) ReleaseContext(contextID string) {
	m.finalMu.Lock()
	defer m.finalMu.Unlock()
	delete(m.finalCh, contextID)
}

// readLoop reads audio chunks from the WebSocket.
func (m *MurfWS) readLoop() {
	for {
		select {
		case <-m.closeCh:
			return
		default:
		}

		m.connMu.Lock()
		conn := m.conn
		m.connMu.Unlock()

		if conn == nil {
			select {
			case <-m.closeCh:
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Error("websocket read error", "error", err)
			}
			m.handleDisconnect()
			continue
		}

		var resp struct {
			ContextID string `json:"context_id"`
			Audio     string `json:"audio"`
			Final     bool   `json:"final"`
			Error     string `json:"error"`
		}
		if err := json.Unmarshal(message, &resp); err != nil {
			m.logger.Warn("failed to parse response", "error", err)
			continue
		}

		if resp.Error != "" {
			m.logger.Error("synthesis error", "error", resp.Error, "context_id", resp.ContextID)
			if m.OnError != nil {
				m.OnError(WrapError(providerMurf, fmt.Errorf("%s", resp.Error)))
			}
			continue
		}

		if resp.Audio != "" && m.OnAudioChunk != nil {
			m.OnAudioChunk(resp.ContextID, resp.Audio, resp.Final)
		}

		if resp.Final {
			m.finalMu.Lock()
			if ch, ok := m.finalCh[resp.ContextID]; ok {
				select {
				case <-ch:
					// already closed
				default:
					close(ch)
				}
			} else {
				// Final arrived before any waiter registered
				ch := make(chan struct{})
				close(ch)
				m.finalCh[resp.ContextID] = ch
			}
			m.finalMu.Unlock()
		}
	}
}

// keepaliveLoop sends periodic pings to maintain connection.
func (m *MurfWS) keepaliveLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.closeCh:
			return
		case <-ticker.C:
			m.connMu.Lock()
			conn := m.conn
			connected := m.connected
			m.connMu.Unlock()

			if !connected || conn == nil {
				continue
			}

			m.connMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			m.connMu.Unlock()

			if err != nil {
				m.logger.Warn("keepalive ping failed", "error", err)
				m.handleDisconnect()
			}
		}
	}
}

// handleDisconnect handles connection loss and triggers reconnection.
func (m *MurfWS) handleDisconnect() {
	m.connMu.Lock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.connected = false
	wasReconnecting := m.reconnecting
	m.reconnecting = true
	m.connMu.Unlock()

	select {
	case <-m.closeCh:
		return
	default:
	}

	// Only start one reconnection goroutine
	if !wasReconnecting {
		go m.reconnectLoop()
	}
}

// reconnectLoop attempts to reconnect with exponential backoff.
func (m *MurfWS) reconnectLoop() {
	delay := reconnectBaseDelay

	for {
		select {
		case <-m.closeCh:
			return
		default:
		}

		m.logger.Info("attempting to reconnect", "delay", delay)

		select {
		case <-m.closeCh:
			return
		case <-time.After(delay):
		}

		if err := m.dial(); err != nil {
			m.logger.Error("reconnect failed", "error", err)
			delay *= 2
			if delay > reconnectMaxDelay {
				delay = reconnectMaxDelay
			}
			continue
		}

		m.connMu.Lock()
		m.reconnecting = false
		m.connMu.Unlock()
		m.logger.Info("reconnected successfully")
		return
	}
}

// IsConnected returns true if the WebSocket is connected.
func (m *MurfWS) IsConnected() bool {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	return m.connected
}

// Close terminates the WebSocket connection and cleans up resources.
func (m *MurfWS) Close() error {
	m.closeOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
		close(m.closeCh)

		m.connMu.Lock()
		if m.conn != nil {
			m.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			m.conn.Close()
			m.conn = nil
		}
		m.connected = false
		m.connMu.Unlock()
	})
	return nil
}

// VoiceID returns the configured voice ID.
func (m *MurfWS) VoiceID() string {
	return m.config.VoiceID
}

// Verify MurfWS implements StreamProvider at compile time.
var _ StreamProvider = (*MurfWS)(nil)
