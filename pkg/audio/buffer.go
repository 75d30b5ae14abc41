// Package audio provides the per-turn audio buffer for the voice pipeline.
//
// A TurnBuffer accumulates inbound binary frames for one user utterance and
// surfaces running statistics for progress reporting. It can optionally
// mirror the raw bytes to a file for audit/debugging.
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Sentinel errors for buffer lifecycle violations.
var (
	// ErrNoOpenTurn is returned when appending with no turn open.
	ErrNoOpenTurn = errors.New("audio: no open turn")

	// ErrEmptyChunk is returned when appending a zero-length chunk.
	ErrEmptyChunk = errors.New("audio: empty chunk")
)

// Stats reports the running state of an open turn.
type Stats struct {
	ChunkCount     int     `json:"chunk_count"`
	TotalBytes     int     `json:"total_bytes"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// TurnBuffer accumulates binary audio frames for the currently-open turn.
// The zero value is ready to use with no turn open.
type TurnBuffer struct {
	mu sync.Mutex

	open       bool
	data       []byte
	chunkCount int
	startedAt  time.Time

	// Optional persistence
	persistDir string
	file       *os.File
	filePath   string
}

// NewTurnBuffer creates a turn buffer. If persistDir is non-empty, each turn's
// raw bytes are mirrored to a file under that directory.
func NewTurnBuffer(persistDir string) *TurnBuffer {
	return &TurnBuffer{persistDir: persistDir}
}

// Start opens a new turn. Calling Start on an already-open buffer is a no-op,
// so a duplicate streaming_start from a client cannot discard buffered audio.
func (b *TurnBuffer) Start() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open {
		return b.statsLocked()
	}

	b.open = true
	b.data = b.data[:0]
	b.chunkCount = 0
	b.startedAt = time.Now()

	if b.persistDir != "" {
		if err := os.MkdirAll(b.persistDir, 0o755); err == nil {
			path := filepath.Join(b.persistDir,
				fmt.Sprintf("turn_%d.pcm", b.startedAt.UnixMilli()))
			if f, err := os.Create(path); err == nil {
				b.file = f
				b.filePath = path
			}
		}
	}

	return b.statsLocked()
}

// IsOpen reports whether a turn is currently open.
func (b *TurnBuffer) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// Append adds one audio chunk to the open turn and returns updated stats.
func (b *TurnBuffer) Append(chunk []byte) (Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return Stats{}, ErrNoOpenTurn
	}
	if len(chunk) == 0 {
		return b.statsLocked(), ErrEmptyChunk
	}

	b.data = append(b.data, chunk...)
	b.chunkCount++

	if b.file != nil {
		if _, err := b.file.Write(chunk); err != nil {
			// Persistence is best-effort; stop mirroring but keep the turn.
			b.closeFileLocked()
		}
	}

	return b.statsLocked(), nil
}

// Finalize closes the turn and returns the accumulated bytes with final
// stats. The buffer is reset to "no turn open". The persisted file handle,
// if any, is released on every path through here.
func (b *TurnBuffer) Finalize() ([]byte, Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil, Stats{}, ErrNoOpenTurn
	}

	stats := b.statsLocked()
	data := make([]byte, len(b.data))
	copy(data, b.data)

	b.closeFileLocked()
	b.open = false
	b.data = b.data[:0]
	b.chunkCount = 0

	return data, stats, nil
}

// Discard drops any open turn without returning its contents. Safe to call
// when no turn is open; used on session teardown.
func (b *TurnBuffer) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closeFileLocked()
	b.open = false
	b.data = b.data[:0]
	b.chunkCount = 0
}

// ArtifactPath returns the path of the persisted audio file for the current
// or last turn, or empty when persistence is disabled.
func (b *TurnBuffer) ArtifactPath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filePath
}

func (b *TurnBuffer) statsLocked() Stats {
	return Stats{
		ChunkCount:     b.chunkCount,
		TotalBytes:     len(b.data),
		ElapsedSeconds: time.Since(b.startedAt).Seconds(),
	}
}

func (b *TurnBuffer) closeFileLocked() {
	if b.file != nil {
		b.file.Close()
		b.file = nil
	}
}
