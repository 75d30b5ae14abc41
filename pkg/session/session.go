// Package session manages conversation sessions: capped chat history, the
// per-session audio turn buffer, and the handle of the in-flight response
// task.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/voxalabs/voxa/pkg/audio"
	"github.com/voxalabs/voxa/pkg/llm"
	"github.com/voxalabs/voxa/pkg/stt"
)

// DefaultMaxHistory is the default number of user/assistant exchanges kept
// per session.
const DefaultMaxHistory = 10

// Task is the handle of one in-flight response turn. Cancel requests the
// turn to stop; Done is closed when the turn's goroutine has fully exited.
type Task struct {
	Cancel context.CancelFunc
	Done   chan struct{}
}

// NewTask creates a task handle for a turn goroutine.
func NewTask(cancel context.CancelFunc) *Task {
	return &Task{Cancel: cancel, Done: make(chan struct{})}
}

// Session is one conversation. All methods are safe for concurrent use.
type Session struct {
	ID string

	// Buffer accumulates inbound audio for the open turn.
	Buffer *audio.TurnBuffer

	mu            sync.Mutex
	history       []llm.Message
	maxHistory    int
	streamingMode bool
	contextID     string
	task          *Task
	sttProvider   stt.Provider
	createdAt     time.Time
	lastActivity  time.Time
}

// New creates a session. maxHistory is the number of exchanges kept; zero
// means DefaultMaxHistory.
func New(id string, maxHistory int, persistDir string) *Session {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	now := time.Now()
	return &Session{
		ID:           id,
		Buffer:       audio.NewTurnBuffer(persistDir),
		maxHistory:   maxHistory,
		createdAt:    now,
		lastActivity: now,
	}
}

// Touch updates the last-activity timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity returns the time of the most recent activity.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createdAt
}

// AddUserMessage appends a user message, evicting the oldest exchange when
// the history cap is reached.
func (s *Session) AddUserMessage(text string) {
	s.addMessage(llm.NewUserMessage(text))
}

// AddAssistantMessage appends an assistant message, evicting the oldest
// exchange when the history cap is reached.
func (s *Session) AddAssistantMessage(text string) {
	s.addMessage(llm.NewAssistantMessage(text))
}

func (s *Session) addMessage(msg llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, msg)
	// Cap at maxHistory exchanges (two messages each), oldest evicted
	max := s.maxHistory * 2
	if len(s.history) > max {
		s.history = s.history[len(s.history)-max:]
	}
	s.lastActivity = time.Now()
}

// History returns a copy of the conversation history in insertion order.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Message, len(s.history))
	copy(out, s.history)
	return out
}

// HistoryLen returns the number of stored messages.
func (s *Session) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// ClearHistory drops all stored messages.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.lastActivity = time.Now()
}

// SetStreamingMode toggles the audio streaming mode flag.
func (s *Session) SetStreamingMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamingMode = on
}

// StreamingMode reports whether the session is in audio streaming mode.
func (s *Session) StreamingMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamingMode
}

// SetContextID records the synthesis context of the active turn.
func (s *Session) SetContextID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contextID = id
}

// ContextID returns the synthesis context of the active turn.
func (s *Session) ContextID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contextID
}

// SetTask installs the handle of a new response turn and returns the
// previous one, which the caller must cancel and await.
func (s *Session) SetTask(t *Task) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.task
	s.task = t
	return prev
}

// Task returns the current response task handle, or nil.
func (s *Session) Task() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task
}

// SetSTT attaches the realtime transcription session.
func (s *Session) SetSTT(p stt.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sttProvider = p
}

// STT returns the attached transcription session, or nil.
func (s *Session) STT() stt.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sttProvider
}

// Close releases everything the session holds: the in-flight task is
// cancelled and awaited, the transcription session is closed, and any open
// audio turn is discarded.
func (s *Session) Close() {
	s.mu.Lock()
	task := s.task
	s.task = nil
	sttProvider := s.sttProvider
	s.sttProvider = nil
	s.mu.Unlock()

	if task != nil {
		task.Cancel()
		<-task.Done
	}
	if sttProvider != nil {
		sttProvider.Close()
	}
	s.Buffer.Discard()
}
