package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeSynthServer simulates the streaming synthesis WebSocket API. For each
// context that receives an end flag it replies with two audio chunks, the
// second marked final.
type fakeSynthServer struct {
	*httptest.Server

	upgrader websocket.Upgrader

	mu       sync.Mutex
	voiceCfg map[string]interface{}
	messages []map[string]interface{}
}

func newFakeSynthServer() *fakeSynthServer {
	f := &fakeSynthServer{}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeSynthServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg map[string]interface{}
		if json.Unmarshal(message, &msg) != nil {
			continue
		}

		f.mu.Lock()
		if vc, ok := msg["voice_config"].(map[string]interface{}); ok {
			f.voiceCfg = vc
		} else {
			f.messages = append(f.messages, msg)
		}
		f.mu.Unlock()

		if end, ok := msg["end"].(bool); ok && end {
			ctxID, _ := msg["context_id"].(string)
			audio := base64.StdEncoding.EncodeToString([]byte("chunk"))
			conn.WriteJSON(map[string]interface{}{
				"context_id": ctxID, "audio": audio, "final": false,
			})
			conn.WriteJSON(map[string]interface{}{
				"context_id": ctxID, "audio": audio, "final": true,
			})
		}
	}
}

func (f *fakeSynthServer) wsURL() string {
	return "ws" + strings.TrimPrefix(f.URL, "http")
}

func (f *fakeSynthServer) voiceConfig() map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.voiceCfg
}

func (f *fakeSynthServer) received() []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]interface{}, len(f.messages))
	copy(out, f.messages)
	return out
}

func newTestMurfWS(t *testing.T, serverURL string) *MurfWS {
	t.Helper()
	provider, err := NewMurfWS(
		WithAPIKey("test-key"),
		WithVoice("en-US-natalie"),
	)
	if err != nil {
		t.Fatalf("NewMurfWS() error = %v", err)
	}
	provider.testEndpoint = serverURL
	return provider
}

func TestMurfWSConnectSendsVoiceConfig(t *testing.T) {
	server := newFakeSynthServer()
	defer server.Close()

	provider := newTestMurfWS(t, server.wsURL())
	defer provider.Close()

	if err := provider.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !provider.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}

	deadline := time.Now().Add(2 * time.Second)
	for server.voiceConfig() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server never received voice config")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if server.voiceConfig()["voiceId"] != "en-US-natalie" {
		t.Errorf("voiceId = %v, want en-US-natalie", server.voiceConfig()["voiceId"])
	}
}

func TestMurfWSStreamingRoundTrip(t *testing.T) {
	server := newFakeSynthServer()
	defer server.Close()

	provider := newTestMurfWS(t, server.wsURL())
	defer provider.Close()

	var mu sync.Mutex
	var chunks []string
	var finals int
	provider.OnAudioChunk = func(contextID, audioB64 string, final bool) {
		mu.Lock()
		defer mu.Unlock()
		chunks = append(chunks, contextID)
		if final {
			finals++
		}
	}

	if err := provider.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := provider.SendText("ctx-1", "Hello", false, false); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if err := provider.SendText("ctx-1", "", true, false); err != nil {
		t.Fatalf("SendText(end) error = %v", err)
	}

	if !provider.WaitForFinal("ctx-1", 2*time.Second) {
		t.Fatal("WaitForFinal() = false, want true")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(chunks) != 2 {
		t.Errorf("chunks = %d, want 2", len(chunks))
	}
	for _, id := range chunks {
		if id != "ctx-1" {
			t.Errorf("chunk context = %v, want ctx-1", id)
		}
	}
	if finals != 1 {
		t.Errorf("final chunks = %d, want 1", finals)
	}
}

func TestMurfWSWaitForFinalTimeout(t *testing.T) {
	server := newFakeSynthServer()
	defer server.Close()

	provider := newTestMurfWS(t, server.wsURL())
	defer provider.Close()

	if err := provider.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// No end flag was sent, so no final chunk ever arrives
	if provider.WaitForFinal("ctx-never", 50*time.Millisecond) {
		t.Error("WaitForFinal() = true, want false on timeout")
	}
}

func TestMurfWSClearContext(t *testing.T) {
	server := newFakeSynthServer()
	defer server.Close()

	provider := newTestMurfWS(t, server.wsURL())
	defer provider.Close()

	if err := provider.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := provider.SendText("ctx-old", "", false, true); err != nil {
		t.Fatalf("SendText(clear) error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(server.received()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("server never received the clear message")
		}
		time.Sleep(10 * time.Millisecond)
	}

	msg := server.received()[0]
	if msg["context_id"] != "ctx-old" {
		t.Errorf("context_id = %v, want ctx-old", msg["context_id"])
	}
	if clear, _ := msg["clear"].(bool); !clear {
		t.Error("clear flag not set")
	}
	if _, hasText := msg["text"]; hasText {
		t.Error("clear message should not carry text")
	}
}

func TestMurfWSSendTextNotConnected(t *testing.T) {
	provider, err := NewMurfWS(
		WithAPIKey("test-key"),
		WithVoice("en-US-natalie"),
	)
	if err != nil {
		t.Fatalf("NewMurfWS() error = %v", err)
	}
	defer provider.Close()

	err = provider.SendText("ctx-1", "Hello", false, false)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendText() error = %v, want ErrNotConnected", err)
	}
}

func TestMurfWSReleaseContext(t *testing.T) {
	provider, err := NewMurfWS(
		WithAPIKey("test-key"),
		WithVoice("en-US-natalie"),
	)
	if err != nil {
		t.Fatalf("NewMurfWS() error = %v", err)
	}
	defer provider.Close()

	ch := provider.finalWaiter("ctx-1")
	provider.ReleaseContext("ctx-1")

	if again := provider.finalWaiter("ctx-1"); again == ch {
		t.Error("ReleaseContext did not drop the waiter")
	}
}
