package web

import (
	"context"
	"errors"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"github.com/voxalabs/voxa/pkg/audio"
	"github.com/voxalabs/voxa/pkg/protocol"
	"github.com/voxalabs/voxa/pkg/session"
	"github.com/voxalabs/voxa/pkg/stt"
)

// wsClient wraps one voice connection. Writes are serialized because turn
// goroutines and the synthesis read loop emit concurrently with the handler.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// emit sends one event frame. Send failures are dropped; the read loop
// notices the dead connection and unwinds.
func (c *wsClient) emit(msg *protocol.Message) {
	data, err := msg.Bytes()
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsClient) emitError(code, message string) {
	if msg, err := protocol.NewErrorMessage(code, message); err == nil {
		c.emit(msg)
	}
}

// handleVoiceWS runs the duplex voice channel: binary frames carry turn
// audio in, JSON control frames steer the pipeline, and JSON event frames
// carry transcripts, tokens, and synthesized audio back out.
func (s *Server) handleVoiceWS(conn *websocket.Conn) {
	client := &wsClient{conn: conn}

	sess, created := s.deps.Registry.GetOrCreate(conn.Query("session_id"))
	if created && s.deps.Metrics != nil {
		s.deps.Metrics.SessionsCreated.Inc()
		s.deps.Metrics.ActiveSessions.Set(float64(s.deps.Registry.Count()))
	}

	if msg, err := protocol.NewConnectionMessage(sess.ID, "connected"); err == nil {
		client.emit(msg)
	}

	s.logger.Info("voice connection opened", "session_id", sess.ID)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}

		switch msgType {
		case websocket.BinaryMessage:
			s.handleAudioFrame(sess, data, client)
		case websocket.TextMessage:
			sess = s.handleControlFrame(sess, data, client)
		}
	}

	s.teardownConnection(sess)
	s.logger.Info("voice connection closed", "session_id", sess.ID)
}

// handleAudioFrame appends one inbound chunk to the open turn and forwards
// it to the live transcription session.
func (s *Server) handleAudioFrame(sess *session.Session, chunk []byte, client *wsClient) {
	stats, err := sess.Buffer.Append(chunk)
	if err != nil {
		code := "invalid_state"
		if errors.Is(err, audio.ErrEmptyChunk) {
			code = "empty_chunk"
		}
		client.emitError(code, err.Error())
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.AudioChunksIn.Inc()
	}

	if prov := sess.STT(); prov != nil {
		prov.SendChunk(chunk)
	}

	if msg, err := protocol.NewProgressMessage(stats.ChunkCount, stats.TotalBytes, stats.ElapsedSeconds); err == nil {
		client.emit(msg)
	}
}

// handleControlFrame dispatches one JSON control message. It returns the
// session the connection should use from here on; session_create and
// session_join swap it. Malformed or unknown messages produce an error
// event and the connection stays open.
func (s *Server) handleControlFrame(sess *session.Session, data []byte, client *wsClient) *session.Session {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		client.emitError("invalid_message", "malformed control frame")
		return sess
	}
	sess.Touch()

	switch msg.Type {
	case protocol.TypeEcho:
		echo, err := msg.GetEchoData()
		if err != nil {
			client.emitError("invalid_message", "bad echo payload")
			return sess
		}
		if out, err := protocol.NewMessage(protocol.TypeEcho, protocol.EchoData{Text: echo.Text}); err == nil {
			client.emit(out)
		}

	case protocol.TypeSessionCreate:
		fresh, _ := s.deps.Registry.GetOrCreate("")
		if s.deps.Metrics != nil {
			s.deps.Metrics.SessionsCreated.Inc()
			s.deps.Metrics.ActiveSessions.Set(float64(s.deps.Registry.Count()))
		}
		if out, err := protocol.NewSessionCreatedMessage(fresh.ID); err == nil {
			client.emit(out)
		}
		return fresh

	case protocol.TypeSessionJoin:
		join, err := msg.GetSessionJoinData()
		if err != nil || join.SessionID == "" {
			client.emitError("invalid_message", "session_id is required")
			return sess
		}
		target := s.deps.Registry.Get(join.SessionID)
		if target == nil {
			client.emitError("session_not_found", "no such session: "+join.SessionID)
			return sess
		}
		if out, err := protocol.NewSessionJoinedMessage(target.ID, target.HistoryLen()); err == nil {
			client.emit(out)
		}
		return target

	case protocol.TypeStreamingStart:
		s.openAudioTurn(sess, client)

	case protocol.TypeStreamingStop:
		sess.SetStreamingMode(false)
		s.closeAudioTurn(sess, client)
		if prov := sess.STT(); prov != nil {
			prov.Stop()
			sess.SetSTT(nil)
		}
		if out, err := protocol.NewStatusMessage("stopped", ""); err == nil {
			client.emit(out)
		}

	case protocol.TypeTextMessage:
		text, err := msg.GetTextMessageData()
		if err != nil || text.Text == "" {
			client.emitError("invalid_message", "text is required")
			return sess
		}
		s.deps.Orchestrator.StartTurn(sess, text.Text, client.emit)

	case protocol.TypeTurnEnd:
		// The client closed its audio turn. The transcription session
		// stays live: a final transcript still to arrive is what
		// triggers the response.
		s.closeAudioTurn(sess, client)
		if sess.StreamingMode() {
			sess.Buffer.Start()
		}

	case protocol.TypeClearContext:
		s.deps.Orchestrator.CancelActive(sess)
		if out, err := protocol.NewStatusMessage("cleared", ""); err == nil {
			client.emit(out)
		}

	default:
		code := "unknown_type"
		if protocol.KnownType(msg.Type) {
			code = "unsupported_type"
		}
		client.emitError(code, "cannot handle message type: "+string(msg.Type))
	}

	return sess
}

// openAudioTurn opens the turn buffer and brings up a transcription
// session whose turn boundaries drive response turns.
func (s *Server) openAudioTurn(sess *session.Session, client *wsClient) {
	sess.SetStreamingMode(true)
	sess.Buffer.Start()

	if s.deps.STTFactory == nil {
		client.emitError("stt_unavailable", "transcription is not configured")
		return
	}
	if existing := sess.STT(); existing != nil && existing.IsStreaming() {
		// Already listening; streaming_start is idempotent
		return
	}

	prov, err := s.deps.STTFactory()
	if err != nil {
		client.emitError("stt_unavailable", err.Error())
		return
	}

	ready := prov.Start(context.Background(), s.transcriptionCallbacks(sess, client))
	if !ready {
		prov.Close()
		client.emitError("stt_unavailable", "transcription session did not become ready")
		return
	}
	sess.SetSTT(prov)

	if out, err := protocol.NewStatusMessage("listening", ""); err == nil {
		client.emit(out)
	}
}

// transcriptionCallbacks routes transcription events back to the client. A
// turn-end boundary starts the response turn for its text.
func (s *Server) transcriptionCallbacks(sess *session.Session, client *wsClient) stt.Callbacks {
	return stt.Callbacks{
		OnPartial: func(text string, confidence float64) {
			if s.deps.Metrics != nil {
				s.deps.Metrics.TranscriptsPartial.Inc()
			}
			if msg, err := protocol.NewTranscriptMessage(text, confidence, false); err == nil {
				client.emit(msg)
			}
		},
		OnFinal: func(text string, confidence float64) {
			if s.deps.Metrics != nil {
				s.deps.Metrics.TranscriptsFinal.Inc()
			}
			if msg, err := protocol.NewTranscriptMessage(text, confidence, true); err == nil {
				client.emit(msg)
			}
		},
		OnTurnEnd: func(text string) {
			if msg, err := protocol.NewTurnDetectedMessage(text); err == nil {
				client.emit(msg)
			}
			if text != "" {
				s.deps.Orchestrator.StartTurn(sess, text, client.emit)
			}
		},
		OnError: func(err error) {
			s.logger.Warn("transcription error", "error", err, "session_id", sess.ID)
			client.emitError("stt_error", err.Error())
		},
	}
}

// closeAudioTurn finalizes the open turn buffer and reports its final
// stats. A turn that never opened is not an error here.
func (s *Server) closeAudioTurn(sess *session.Session, client *wsClient) {
	if !sess.Buffer.IsOpen() {
		return
	}
	_, stats, err := sess.Buffer.Finalize()
	if err != nil {
		client.emitError("invalid_state", err.Error())
		return
	}
	if msg, err := protocol.NewProgressMessage(stats.ChunkCount, stats.TotalBytes, stats.ElapsedSeconds); err == nil {
		client.emit(msg)
	}
}

// teardownConnection releases per-connection pipeline state when the socket
// drops. The session itself survives for reconnection.
func (s *Server) teardownConnection(sess *session.Session) {
	if prov := sess.STT(); prov != nil {
		prov.Close()
		sess.SetSTT(nil)
	}
	sess.Buffer.Discard()
	sess.SetStreamingMode(false)
}
