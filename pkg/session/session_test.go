package session

import (
	"context"
	"testing"
	"time"

	"github.com/voxalabs/voxa/pkg/llm"
	"github.com/voxalabs/voxa/pkg/stt"
)

func TestHistoryCap(t *testing.T) {
	s := New("test", 3, "")

	for i := 0; i < 10; i++ {
		s.AddUserMessage("question")
		s.AddAssistantMessage("answer")
	}

	// 3 exchanges = 6 messages
	if got := s.HistoryLen(); got != 6 {
		t.Errorf("HistoryLen() = %d, want 6", got)
	}
}

func TestHistoryOrder(t *testing.T) {
	s := New("test", 10, "")

	s.AddUserMessage("first")
	s.AddAssistantMessage("second")
	s.AddUserMessage("third")

	history := s.History()
	if len(history) != 3 {
		t.Fatalf("len = %d, want 3", len(history))
	}
	if history[0].Content != "first" || history[2].Content != "third" {
		t.Errorf("history order wrong: %+v", history)
	}
	if history[0].Role != llm.RoleUser || history[1].Role != llm.RoleAssistant {
		t.Errorf("roles wrong: %v, %v", history[0].Role, history[1].Role)
	}
}

func TestHistoryEvictsOldest(t *testing.T) {
	s := New("test", 2, "")

	s.AddUserMessage("old question")
	s.AddAssistantMessage("old answer")
	s.AddUserMessage("mid question")
	s.AddAssistantMessage("mid answer")
	s.AddUserMessage("new question")
	s.AddAssistantMessage("new answer")

	history := s.History()
	if len(history) != 4 {
		t.Fatalf("len = %d, want 4", len(history))
	}
	if history[0].Content != "mid question" {
		t.Errorf("oldest kept = %q, want mid question", history[0].Content)
	}
	if history[3].Content != "new answer" {
		t.Errorf("newest = %q, want new answer", history[3].Content)
	}
}

func TestClearHistory(t *testing.T) {
	s := New("test", 10, "")
	s.AddUserMessage("hi")
	s.AddAssistantMessage("hello")

	s.ClearHistory()

	if s.HistoryLen() != 0 {
		t.Errorf("HistoryLen() = %d after clear, want 0", s.HistoryLen())
	}
}

func TestTaskHandoff(t *testing.T) {
	s := New("test", 10, "")

	_, cancel1 := context.WithCancel(context.Background())
	t1 := NewTask(cancel1)

	if prev := s.SetTask(t1); prev != nil {
		t.Errorf("first SetTask returned %v, want nil", prev)
	}

	_, cancel2 := context.WithCancel(context.Background())
	t2 := NewTask(cancel2)

	if prev := s.SetTask(t2); prev != t1 {
		t.Error("SetTask did not return the previous task")
	}
	if s.Task() != t2 {
		t.Error("Task() did not return the current task")
	}
}

func TestCloseReleasesResources(t *testing.T) {
	s := New("test", 10, "")

	// Open audio turn
	s.Buffer.Start()
	s.Buffer.Append([]byte("audio"))

	// Attached transcription session
	mockSTT := stt.NewMock()
	mockSTT.Start(context.Background(), stt.Callbacks{})
	s.SetSTT(mockSTT)

	// In-flight task whose goroutine exits on cancel
	ctx, cancel := context.WithCancel(context.Background())
	task := NewTask(cancel)
	go func() {
		<-ctx.Done()
		close(task.Done)
	}()
	s.SetTask(task)

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close() did not finish")
	}

	if s.Buffer.IsOpen() {
		t.Error("Buffer still open after Close")
	}
	if mockSTT.CallCount("Close") != 1 {
		t.Errorf("STT Close calls = %d, want 1", mockSTT.CallCount("Close"))
	}
	if mockSTT.IsStreaming() {
		t.Error("STT still streaming after Close")
	}
}

func TestStreamingModeAndContextID(t *testing.T) {
	s := New("test", 10, "")

	if s.StreamingMode() {
		t.Error("StreamingMode() = true initially")
	}
	s.SetStreamingMode(true)
	if !s.StreamingMode() {
		t.Error("StreamingMode() = false after set")
	}

	s.SetContextID("ctx-7")
	if s.ContextID() != "ctx-7" {
		t.Errorf("ContextID() = %v, want ctx-7", s.ContextID())
	}
}
