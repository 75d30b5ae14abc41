package protocol

import (
	"encoding/base64"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewConnectionMessage creates a connection acknowledgment
func NewConnectionMessage(sessionID, message string) (*Message, error) {
	return NewMessage(TypeConnection, ConnectionData{
		SessionID: sessionID,
		Message:   message,
	})
}

// NewSessionCreatedMessage announces a freshly created session
func NewSessionCreatedMessage(sessionID string) (*Message, error) {
	return NewMessage(TypeSessionCreated, SessionData{SessionID: sessionID})
}

// NewSessionJoinedMessage announces a joined session
func NewSessionJoinedMessage(sessionID string, messageCount int) (*Message, error) {
	return NewMessage(TypeSessionJoined, SessionData{
		SessionID:    sessionID,
		MessageCount: messageCount,
	})
}

// NewProgressMessage reports audio ingestion progress
func NewProgressMessage(chunkCount, totalBytes int, elapsedSeconds float64) (*Message, error) {
	return NewMessage(TypeStreamingProgress, ProgressData{
		ChunkCount:     chunkCount,
		TotalBytes:     totalBytes,
		ElapsedSeconds: elapsedSeconds,
	})
}

// NewTranscriptMessage creates a partial or final transcript event
func NewTranscriptMessage(text string, confidence float64, isFinal bool) (*Message, error) {
	msgType := TypePartialTranscript
	if isFinal {
		msgType = TypeFinalTranscript
	}
	return NewMessage(msgType, TranscriptData{
		Text:       text,
		Confidence: confidence,
		IsFinal:    isFinal,
	})
}

// NewTurnDetectedMessage announces a detected turn boundary
func NewTurnDetectedMessage(text string) (*Message, error) {
	return NewMessage(TypeTurnDetected, TurnDetectedData{Text: text})
}

// NewTokenMessage creates an incremental model token event
func NewTokenMessage(token, contextID string) (*Message, error) {
	return NewMessage(TypeLLMToken, TokenData{Token: token, ContextID: contextID})
}

// NewCompleteMessage creates the end-of-reply event with the assembled text
func NewCompleteMessage(text, contextID string) (*Message, error) {
	return NewMessage(TypeLLMComplete, CompleteData{Text: text, ContextID: contextID})
}

// NewAudioChunkMessage creates a streaming audio chunk event
func NewAudioChunkMessage(audio []byte, contextID string, final bool) (*Message, error) {
	return NewMessage(TypeAudioChunk, AudioChunkData{
		Audio:     base64.StdEncoding.EncodeToString(audio),
		ContextID: contextID,
		Final:     final,
	})
}

// NewAudioChunkMessageB64 creates a streaming audio chunk event from audio
// that is already base64 encoded, avoiding a decode/encode round trip.
func NewAudioChunkMessageB64(audioB64, contextID string, final bool) (*Message, error) {
	return NewMessage(TypeAudioChunk, AudioChunkData{
		Audio:     audioB64,
		ContextID: contextID,
		Final:     final,
	})
}

// NewTTSAudioMessage creates a complete fallback audio event
func NewTTSAudioMessage(audio []byte, format string, sampleRate int) (*Message, error) {
	return NewMessage(TypeTTSAudio, TTSAudioData{
		Audio:      base64.StdEncoding.EncodeToString(audio),
		Format:     format,
		SampleRate: sampleRate,
	})
}

// NewStatusMessage creates a processing status event
func NewStatusMessage(stage, message string) (*Message, error) {
	return NewMessage(TypeProcessingStatus, StatusData{Stage: stage, Message: message})
}

// NewErrorMessage creates an error event
func NewErrorMessage(code, message string) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Code: code, Message: message})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetEchoData extracts echo data from a message
func (m *Message) GetEchoData() (*EchoData, error) {
	var data EchoData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetSessionJoinData extracts session join data from a message
func (m *Message) GetSessionJoinData() (*SessionJoinData, error) {
	var data SessionJoinData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetTextMessageData extracts a user text turn from a message
func (m *Message) GetTextMessageData() (*TextMessageData, error) {
	var data TextMessageData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetTranscriptData extracts transcript data from a message
func (m *Message) GetTranscriptData() (*TranscriptData, error) {
	var data TranscriptData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetTokenData extracts token data from a message
func (m *Message) GetTokenData() (*TokenData, error) {
	var data TokenData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetCompleteData extracts completion data from a message
func (m *Message) GetCompleteData() (*CompleteData, error) {
	var data CompleteData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetAudioChunkData extracts audio chunk data from a message
func (m *Message) GetAudioChunkData() (*AudioChunkData, error) {
	var data AudioChunkData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeAudio decodes the base64 audio payload
func (a *AudioChunkData) DecodeAudio() ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.Audio)
}

// GetTTSAudioData extracts fallback audio data from a message
func (m *Message) GetTTSAudioData() (*TTSAudioData, error) {
	var data TTSAudioData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeAudio decodes the base64 audio payload
func (a *TTSAudioData) DecodeAudio() ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.Audio)
}

// GetErrorData extracts error data from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStatusData extracts status data from a message
func (m *Message) GetStatusData() (*StatusData, error) {
	var data StatusData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
