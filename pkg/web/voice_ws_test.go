package web

import (
	"net"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/voxalabs/voxa/pkg/agent"
	"github.com/voxalabs/voxa/pkg/llm"
	"github.com/voxalabs/voxa/pkg/protocol"
	"github.com/voxalabs/voxa/pkg/session"
	"github.com/voxalabs/voxa/pkg/stt"
	"github.com/voxalabs/voxa/pkg/tts"
)

// voiceFixture holds the server and the mocks behind it.
type voiceFixture struct {
	server   *Server
	registry *session.Registry
	sttMock  *stt.Mock
	addr     string
}

func startVoiceServer(t *testing.T, llmProvider llm.Provider) *voiceFixture {
	t.Helper()

	registry := session.NewRegistry(10, "", nil)
	t.Cleanup(registry.Close)

	sttMock := stt.NewMock()

	srv := NewServer(0, Deps{
		Registry:     registry,
		Orchestrator: agent.New(llmProvider, tts.NewMockStream(), tts.NewMock()),
		STTFactory:   func() (stt.Provider, error) { return sttMock, nil },
		LLM:          llmProvider,
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Shutdown() })

	return &voiceFixture{
		server:   srv,
		registry: registry,
		sttMock:  sttMock,
		addr:     ln.Addr().String(),
	}
}

func dialVoice(t *testing.T, f *voiceFixture, sessionID string) *gws.Conn {
	t.Helper()

	url := "ws://" + f.addr + "/ws/voice"
	if sessionID != "" {
		url += "?session_id=" + sessionID
	}

	var conn *gws.Conn
	var err error
	for i := 0; i < 20; i++ {
		conn, _, err = gws.DefaultDialer.Dial(url, nil)
		if err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendControl(t *testing.T, conn *gws.Conn, msgType protocol.MessageType, data any) {
	t.Helper()
	msg, err := protocol.NewMessage(msgType, data)
	if err != nil {
		t.Fatalf("build %s: %v", msgType, err)
	}
	raw, err := msg.Bytes()
	if err != nil {
		t.Fatalf("encode %s: %v", msgType, err)
	}
	if err := conn.WriteMessage(gws.TextMessage, raw); err != nil {
		t.Fatalf("send %s: %v", msgType, err)
	}
}

// readUntil reads events until one of the wanted type arrives, skipping
// everything else.
func readUntil(t *testing.T, conn *gws.Conn, want protocol.MessageType) *protocol.Message {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	conn.SetReadDeadline(deadline)
	for time.Now().Before(deadline) {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		msg, err := protocol.ParseMessage(raw)
		if err != nil {
			t.Fatalf("parse event: %v", err)
		}
		if msg.Type == want {
			return msg
		}
	}
	t.Fatalf("no %s event before deadline", want)
	return nil
}

func TestVoiceConnectionAck(t *testing.T) {
	f := startVoiceServer(t, llm.NewMock())
	conn := dialVoice(t, f, "s1")

	msg := readUntil(t, conn, protocol.TypeConnection)
	var data protocol.ConnectionData
	if err := msg.ParseData(&data); err != nil {
		t.Fatalf("ParseData: %v", err)
	}
	if data.SessionID != "s1" {
		t.Errorf("SessionID = %q, want s1", data.SessionID)
	}
	if f.registry.Get("s1") == nil {
		t.Error("session not registered")
	}
}

func TestVoiceEcho(t *testing.T) {
	f := startVoiceServer(t, llm.NewMock())
	conn := dialVoice(t, f, "s1")
	readUntil(t, conn, protocol.TypeConnection)

	sendControl(t, conn, protocol.TypeEcho, protocol.EchoData{Text: "ping"})

	msg := readUntil(t, conn, protocol.TypeEcho)
	echo, err := msg.GetEchoData()
	if err != nil {
		t.Fatalf("GetEchoData: %v", err)
	}
	if echo.Text != "ping" {
		t.Errorf("Text = %q, want ping", echo.Text)
	}
}

func TestVoiceUnknownTypeKeepsConnectionOpen(t *testing.T) {
	f := startVoiceServer(t, llm.NewMock())
	conn := dialVoice(t, f, "s1")
	readUntil(t, conn, protocol.TypeConnection)

	sendControl(t, conn, protocol.MessageType("bogus"), nil)

	msg := readUntil(t, conn, protocol.TypeError)
	data, _ := msg.GetErrorData()
	if data.Code != "unknown_type" {
		t.Errorf("Code = %q, want unknown_type", data.Code)
	}

	// Connection still serves requests
	sendControl(t, conn, protocol.TypeEcho, protocol.EchoData{Text: "still here"})
	readUntil(t, conn, protocol.TypeEcho)
}

func TestVoiceMalformedFrame(t *testing.T) {
	f := startVoiceServer(t, llm.NewMock())
	conn := dialVoice(t, f, "s1")
	readUntil(t, conn, protocol.TypeConnection)

	if err := conn.WriteMessage(gws.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("send: %v", err)
	}

	msg := readUntil(t, conn, protocol.TypeError)
	data, _ := msg.GetErrorData()
	if data.Code != "invalid_message" {
		t.Errorf("Code = %q, want invalid_message", data.Code)
	}
}

func TestVoiceTextMessageTurn(t *testing.T) {
	f := startVoiceServer(t, llm.NewMockStreaming("Hel", "lo", " there"))
	conn := dialVoice(t, f, "s1")
	readUntil(t, conn, protocol.TypeConnection)

	sendControl(t, conn, protocol.TypeTextMessage, protocol.TextMessageData{Text: "hi"})

	msg := readUntil(t, conn, protocol.TypeLLMComplete)
	data, err := msg.GetCompleteData()
	if err != nil {
		t.Fatalf("GetCompleteData: %v", err)
	}
	if data.Text != "Hello there" {
		t.Errorf("assembled = %q, want Hello there", data.Text)
	}

	sess := f.registry.Get("s1")
	awaitSessionTask(t, sess)
	history := sess.History()
	if len(history) != 2 {
		t.Fatalf("history = %d messages, want 2", len(history))
	}
	if history[0].Content != "hi" || history[1].Content != "Hello there" {
		t.Errorf("history = %+v", history)
	}
}

func TestVoiceAudioTurn(t *testing.T) {
	f := startVoiceServer(t, llm.NewMockStreaming("it", " is", " noon"))
	conn := dialVoice(t, f, "s1")
	readUntil(t, conn, protocol.TypeConnection)

	sendControl(t, conn, protocol.TypeStreamingStart, nil)
	readUntil(t, conn, protocol.TypeProcessingStatus)

	// Three chunks land in the turn buffer and the transcription session
	var progress *protocol.Message
	for _, size := range []int{100, 200, 150} {
		if err := conn.WriteMessage(gws.BinaryMessage, make([]byte, size)); err != nil {
			t.Fatalf("send audio: %v", err)
		}
		progress = readUntil(t, conn, protocol.TypeStreamingProgress)
	}

	var stats protocol.ProgressData
	if err := progress.ParseData(&stats); err != nil {
		t.Fatalf("ParseData: %v", err)
	}
	if stats.ChunkCount != 3 || stats.TotalBytes != 450 {
		t.Errorf("progress = %+v, want 3 chunks / 450 bytes", stats)
	}
	if got := len(f.sttMock.Chunks()); got != 3 {
		t.Errorf("stt chunks = %d, want 3", got)
	}

	// End of turn before any transcript: buffer closes, no history yet
	sendControl(t, conn, protocol.TypeTurnEnd, nil)
	readUntil(t, conn, protocol.TypeStreamingProgress)

	sess := f.registry.Get("s1")
	if sess.HistoryLen() != 0 {
		t.Errorf("history before transcript = %d messages, want 0", sess.HistoryLen())
	}

	// The transcript arrives and drives the response
	f.sttMock.EmitFinal("what time is it", 0.98)
	f.sttMock.EmitTurnEnd("what time is it")

	final := readUntil(t, conn, protocol.TypeFinalTranscript)
	transcript, _ := final.GetTranscriptData()
	if transcript.Text != "what time is it" || !transcript.IsFinal {
		t.Errorf("transcript = %+v", transcript)
	}

	readUntil(t, conn, protocol.TypeTurnDetected)

	complete := readUntil(t, conn, protocol.TypeLLMComplete)
	data, _ := complete.GetCompleteData()
	if data.Text != "it is noon" {
		t.Errorf("assembled = %q, want it is noon", data.Text)
	}

	awaitSessionTask(t, sess)
	history := sess.History()
	if len(history) != 2 || history[0].Content != "what time is it" {
		t.Errorf("history = %+v", history)
	}
}

func TestVoiceAudioBeforeStreamingStart(t *testing.T) {
	f := startVoiceServer(t, llm.NewMock())
	conn := dialVoice(t, f, "s1")
	readUntil(t, conn, protocol.TypeConnection)

	if err := conn.WriteMessage(gws.BinaryMessage, make([]byte, 64)); err != nil {
		t.Fatalf("send audio: %v", err)
	}

	msg := readUntil(t, conn, protocol.TypeError)
	data, _ := msg.GetErrorData()
	if data.Code != "invalid_state" {
		t.Errorf("Code = %q, want invalid_state", data.Code)
	}
}

func TestVoiceEmptyAudioFrame(t *testing.T) {
	f := startVoiceServer(t, llm.NewMock())
	conn := dialVoice(t, f, "s1")
	readUntil(t, conn, protocol.TypeConnection)

	sendControl(t, conn, protocol.TypeStreamingStart, nil)
	readUntil(t, conn, protocol.TypeProcessingStatus)

	if err := conn.WriteMessage(gws.BinaryMessage, []byte{}); err != nil {
		t.Fatalf("send audio: %v", err)
	}

	msg := readUntil(t, conn, protocol.TypeError)
	data, _ := msg.GetErrorData()
	if data.Code != "empty_chunk" {
		t.Errorf("Code = %q, want empty_chunk", data.Code)
	}

	// The open turn is unaffected; a real chunk still lands
	if err := conn.WriteMessage(gws.BinaryMessage, make([]byte, 64)); err != nil {
		t.Fatalf("send audio: %v", err)
	}
	progress := readUntil(t, conn, protocol.TypeStreamingProgress)
	var stats protocol.ProgressData
	if err := progress.ParseData(&stats); err != nil {
		t.Fatalf("ParseData: %v", err)
	}
	if stats.ChunkCount != 1 || stats.TotalBytes != 64 {
		t.Errorf("progress = %+v, want 1 chunk / 64 bytes", stats)
	}
}

func TestVoiceStreamingStopClosesTranscription(t *testing.T) {
	f := startVoiceServer(t, llm.NewMock())
	conn := dialVoice(t, f, "s1")
	readUntil(t, conn, protocol.TypeConnection)

	sendControl(t, conn, protocol.TypeStreamingStart, nil)
	readUntil(t, conn, protocol.TypeProcessingStatus)

	sendControl(t, conn, protocol.TypeStreamingStop, nil)
	readUntil(t, conn, protocol.TypeProcessingStatus)

	if f.sttMock.CallCount("Stop") != 1 {
		t.Errorf("Stop calls = %d, want 1", f.sttMock.CallCount("Stop"))
	}
	if f.sttMock.IsStreaming() {
		t.Error("transcription still streaming after streaming_stop")
	}

	sess := f.registry.Get("s1")
	if sess.StreamingMode() {
		t.Error("session still in streaming mode")
	}
	if sess.Buffer.IsOpen() {
		t.Error("turn buffer still open")
	}
}

func TestVoiceSessionJoinMissing(t *testing.T) {
	f := startVoiceServer(t, llm.NewMock())
	conn := dialVoice(t, f, "s1")
	readUntil(t, conn, protocol.TypeConnection)

	sendControl(t, conn, protocol.TypeSessionJoin, protocol.SessionJoinData{SessionID: "ghost"})

	msg := readUntil(t, conn, protocol.TypeError)
	data, _ := msg.GetErrorData()
	if data.Code != "session_not_found" {
		t.Errorf("Code = %q, want session_not_found", data.Code)
	}
}

func TestVoiceSessionCreateSwitches(t *testing.T) {
	f := startVoiceServer(t, llm.NewMockStreaming("fresh", " start"))
	conn := dialVoice(t, f, "s1")
	readUntil(t, conn, protocol.TypeConnection)

	sendControl(t, conn, protocol.TypeSessionCreate, nil)

	msg := readUntil(t, conn, protocol.TypeSessionCreated)
	var data protocol.SessionData
	if err := msg.ParseData(&data); err != nil {
		t.Fatalf("ParseData: %v", err)
	}
	if data.SessionID == "" || data.SessionID == "s1" {
		t.Fatalf("SessionID = %q, want a fresh ID", data.SessionID)
	}

	// Turns now land in the new session
	sendControl(t, conn, protocol.TypeTextMessage, protocol.TextMessageData{Text: "hi"})
	readUntil(t, conn, protocol.TypeLLMComplete)

	fresh := f.registry.Get(data.SessionID)
	awaitSessionTask(t, fresh)
	if fresh.HistoryLen() != 2 {
		t.Errorf("new session history = %d messages, want 2", fresh.HistoryLen())
	}
	if f.registry.Get("s1").HistoryLen() != 0 {
		t.Error("old session accumulated history after switch")
	}
}

func awaitSessionTask(t *testing.T, sess *session.Session) {
	t.Helper()
	task := sess.Task()
	if task == nil {
		return
	}
	select {
	case <-task.Done:
	case <-time.After(3 * time.Second):
		t.Fatal("turn did not finish")
	}
}
