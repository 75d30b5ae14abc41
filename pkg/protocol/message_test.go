package protocol

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    interface{}
		wantErr bool
	}{
		{
			name:    "transcript message",
			msgType: TypeFinalTranscript,
			data:    TranscriptData{Text: "hello", Confidence: 0.9, IsFinal: true},
			wantErr: false,
		},
		{
			name:    "token message",
			msgType: TypeLLMToken,
			data:    TokenData{Token: "Hel", ContextID: "ctx-1"},
			wantErr: false,
		},
		{
			name:    "nil data",
			msgType: TypeConnection,
			data:    nil,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewMessage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if msg == nil && !tt.wantErr {
				t.Error("NewMessage() returned nil message")
				return
			}
			if msg.Type != tt.msgType {
				t.Errorf("NewMessage() type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("NewMessage() timestamp should be set")
			}
		})
	}
}

func TestMessageRoundTrip(t *testing.T) {
	original := AudioChunkData{
		Audio:     base64.StdEncoding.EncodeToString([]byte("test audio data")),
		ContextID: "ctx-42",
		Final:     true,
	}

	msg, err := NewMessage(TypeAudioChunk, original)
	if err != nil {
		t.Fatalf("NewMessage() error = %v", err)
	}

	raw, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	parsed, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}

	if parsed.Type != TypeAudioChunk {
		t.Errorf("Type = %v, want %v", parsed.Type, TypeAudioChunk)
	}

	chunk, err := parsed.GetAudioChunkData()
	if err != nil {
		t.Fatalf("GetAudioChunkData() error = %v", err)
	}

	if chunk.ContextID != original.ContextID {
		t.Errorf("ContextID = %v, want %v", chunk.ContextID, original.ContextID)
	}
	if !chunk.Final {
		t.Error("Final should be true")
	}

	decoded, err := chunk.DecodeAudio()
	if err != nil {
		t.Fatalf("DecodeAudio() error = %v", err)
	}
	if string(decoded) != "test audio data" {
		t.Errorf("decoded audio = %q, want %q", decoded, "test audio data")
	}
}

func TestTranscriptMessage(t *testing.T) {
	msg, err := NewTranscriptMessage("hello world", 0.95, false)
	if err != nil {
		t.Fatalf("NewTranscriptMessage() error = %v", err)
	}

	if msg.Type != TypePartialTranscript {
		t.Errorf("Type = %v, want %v", msg.Type, TypePartialTranscript)
	}

	data, err := msg.GetTranscriptData()
	if err != nil {
		t.Fatalf("GetTranscriptData() error = %v", err)
	}

	if data.Text != "hello world" {
		t.Errorf("Text = %v, want hello world", data.Text)
	}
	if data.IsFinal {
		t.Error("IsFinal should be false")
	}

	final, _ := NewTranscriptMessage("hello world", 0.95, true)
	if final.Type != TypeFinalTranscript {
		t.Errorf("Type = %v, want %v", final.Type, TypeFinalTranscript)
	}
}

func TestTokenAndCompleteMessages(t *testing.T) {
	tok, err := NewTokenMessage("Hel", "ctx-1")
	if err != nil {
		t.Fatalf("NewTokenMessage() error = %v", err)
	}

	tokData, err := tok.GetTokenData()
	if err != nil {
		t.Fatalf("GetTokenData() error = %v", err)
	}
	if tokData.Token != "Hel" {
		t.Errorf("Token = %v, want Hel", tokData.Token)
	}
	if tokData.ContextID != "ctx-1" {
		t.Errorf("ContextID = %v, want ctx-1", tokData.ContextID)
	}

	done, err := NewCompleteMessage("Hello world", "ctx-1")
	if err != nil {
		t.Fatalf("NewCompleteMessage() error = %v", err)
	}

	doneData, err := done.GetCompleteData()
	if err != nil {
		t.Fatalf("GetCompleteData() error = %v", err)
	}
	if doneData.Text != "Hello world" {
		t.Errorf("Text = %v, want Hello world", doneData.Text)
	}
}

func TestTTSAudioMessage(t *testing.T) {
	audio := []byte{0x00, 0x01, 0x02, 0x03}

	msg, err := NewTTSAudioMessage(audio, "wav", 44100)
	if err != nil {
		t.Fatalf("NewTTSAudioMessage() error = %v", err)
	}

	if msg.Type != TypeTTSAudio {
		t.Errorf("Type = %v, want %v", msg.Type, TypeTTSAudio)
	}

	data, err := msg.GetTTSAudioData()
	if err != nil {
		t.Fatalf("GetTTSAudioData() error = %v", err)
	}

	if data.Format != "wav" {
		t.Errorf("Format = %v, want wav", data.Format)
	}
	if data.SampleRate != 44100 {
		t.Errorf("SampleRate = %v, want 44100", data.SampleRate)
	}

	decoded, err := data.DecodeAudio()
	if err != nil {
		t.Fatalf("DecodeAudio() error = %v", err)
	}
	if len(decoded) != len(audio) {
		t.Errorf("Decoded length = %v, want %v", len(decoded), len(audio))
	}
}

func TestErrorMessage(t *testing.T) {
	msg, err := NewErrorMessage("malformed_input", "unknown message type")
	if err != nil {
		t.Fatalf("NewErrorMessage() error = %v", err)
	}

	if msg.Type != TypeError {
		t.Errorf("Type = %v, want %v", msg.Type, TypeError)
	}

	data, err := msg.GetErrorData()
	if err != nil {
		t.Fatalf("GetErrorData() error = %v", err)
	}

	if data.Code != "malformed_input" {
		t.Errorf("Code = %v, want malformed_input", data.Code)
	}
	if data.Message != "unknown message type" {
		t.Errorf("Message = %v, want unknown message type", data.Message)
	}
}

func TestKnownType(t *testing.T) {
	known := []MessageType{
		TypeEcho, TypeSessionCreate, TypeSessionJoin, TypeTextMessage,
		TypeStreamingStart, TypeStreamingStop, TypeTurnEnd, TypeClearContext,
		TypeAudioChunk, TypeError,
	}
	for _, mt := range known {
		if !KnownType(mt) {
			t.Errorf("KnownType(%v) = false, want true", mt)
		}
	}

	if KnownType("bogus") {
		t.Error("KnownType(bogus) = true, want false")
	}
	if KnownType("") {
		t.Error("KnownType(empty) = true, want false")
	}
}

func TestParseInvalidMessage(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "invalid json",
			input:   "not json",
			wantErr: true,
		},
		{
			name:    "empty json",
			input:   "{}",
			wantErr: false, // Empty is valid, just no type
		},
		{
			name:    "valid message",
			input:   `{"type":"echo","ts":1234567890}`,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMessage([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageJSON(t *testing.T) {
	// Verify JSON structure matches the wire format
	msg, _ := NewTokenMessage("hi", "ctx-9")

	raw, _ := msg.Bytes()

	var parsed map[string]interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("Failed to unmarshal as map: %v", err)
	}

	if parsed["type"] != "llm_token" {
		t.Errorf("type = %v, want llm_token", parsed["type"])
	}

	if _, ok := parsed["ts"]; !ok {
		t.Error("ts field should be present")
	}

	if _, ok := parsed["data"]; !ok {
		t.Error("data field should be present")
	}
}

func BenchmarkNewAudioChunkMessage(b *testing.B) {
	audio := make([]byte, 32*1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		NewAudioChunkMessage(audio, "ctx-1", false)
	}
}

func BenchmarkParseMessage(b *testing.B) {
	msg, _ := NewAudioChunkMessage(make([]byte, 32*1024), "ctx-1", false)
	raw, _ := msg.Bytes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ParseMessage(raw)
	}
}
