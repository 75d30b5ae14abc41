// Package protocol defines the WebSocket message types for the voxa duplex
// voice channel. Clients send JSON control frames plus raw binary audio
// frames; the server answers with JSON event frames.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Client → Server messages
	TypeEcho           MessageType = "echo"            // Echo test
	TypeSessionCreate  MessageType = "session_create"  // Create a new session
	TypeSessionJoin    MessageType = "session_join"    // Join an existing session
	TypeStreamingStart MessageType = "streaming_start" // Open an audio turn
	TypeStreamingStop  MessageType = "streaming_stop"  // Close the audio turn
	TypeTextMessage    MessageType = "text_message"    // Finalized user text
	TypeTurnEnd        MessageType = "turn_end"        // Explicit end-of-turn signal
	TypeClearContext   MessageType = "clear_context"   // Abandon in-flight synthesis

	// Server → Client messages
	TypeConnection        MessageType = "connection"         // Connection acknowledgment
	TypeSessionCreated    MessageType = "session_created"    // Session created
	TypeSessionJoined     MessageType = "session_joined"     // Session joined
	TypeStreamingProgress MessageType = "streaming_progress" // Audio ingestion progress
	TypePartialTranscript MessageType = "partial_transcript" // Non-authoritative transcript
	TypeFinalTranscript   MessageType = "final_transcript"   // Authoritative transcript
	TypeTurnDetected      MessageType = "turn_detected"      // Turn boundary detected
	TypeLLMToken          MessageType = "llm_token"          // Incremental model token
	TypeLLMComplete       MessageType = "llm_complete"       // Full assembled reply
	TypeAudioChunk        MessageType = "audio_chunk"        // Streaming synthesis audio
	TypeTTSAudio          MessageType = "tts_audio"          // Complete fallback audio
	TypeProcessingStatus  MessageType = "processing_status"  // Pipeline status update
	TypeError             MessageType = "error"              // Error event
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// KnownType reports whether t is part of the closed message set.
// Unknown inbound types are answered with an error event, never ignored.
func KnownType(t MessageType) bool {
	switch t {
	case TypeEcho, TypeSessionCreate, TypeSessionJoin, TypeStreamingStart,
		TypeStreamingStop, TypeTextMessage, TypeTurnEnd, TypeClearContext,
		TypeConnection, TypeSessionCreated, TypeSessionJoined,
		TypeStreamingProgress, TypePartialTranscript, TypeFinalTranscript,
		TypeTurnDetected, TypeLLMToken, TypeLLMComplete, TypeAudioChunk,
		TypeTTSAudio, TypeProcessingStatus, TypeError:
		return true
	}
	return false
}

// =============================================================================
// Client → Server Message Types
// =============================================================================

// EchoData carries an echo payload back to the sender
type EchoData struct {
	Text string `json:"text"`
}

// SessionJoinData identifies the session a client wants to attach to
type SessionJoinData struct {
	SessionID string `json:"session_id"`
}

// TextMessageData contains a finalized user text turn
type TextMessageData struct {
	Text string `json:"text"`
}

// =============================================================================
// Server → Client Message Types
// =============================================================================

// ConnectionData acknowledges a new duplex connection
type ConnectionData struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message,omitempty"`
}

// SessionData describes a created or joined session
type SessionData struct {
	SessionID    string `json:"session_id"`
	MessageCount int    `json:"message_count"`
}

// ProgressData reports audio ingestion progress for the open turn
type ProgressData struct {
	ChunkCount     int     `json:"chunk_count"`
	TotalBytes     int     `json:"total_bytes"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// TranscriptData carries a partial or final transcript
type TranscriptData struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
	IsFinal    bool    `json:"is_final"`
}

// TurnDetectedData announces a detected turn boundary
type TurnDetectedData struct {
	Text string `json:"text"`
}

// TokenData carries one incremental model token
type TokenData struct {
	Token     string `json:"token"`
	ContextID string `json:"context_id"`
}

// CompleteData carries the full assembled assistant reply
type CompleteData struct {
	Text      string `json:"text"`
	ContextID string `json:"context_id"`
}

// AudioChunkData carries one streaming synthesis chunk. Consumers must
// discard chunks whose ContextID does not match the current turn.
type AudioChunkData struct {
	Audio     string `json:"audio"` // base64 encoded
	ContextID string `json:"context_id"`
	Final     bool   `json:"final"`
}

// TTSAudioData carries a complete non-streamed audio artifact
type TTSAudioData struct {
	Audio      string `json:"audio"` // base64 encoded
	Format     string `json:"format,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

// StatusData reports pipeline progress for user feedback
type StatusData struct {
	Stage   string `json:"stage"`
	Message string `json:"message,omitempty"`
}

// ErrorData reports a recoverable failure to the client
type ErrorData struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
