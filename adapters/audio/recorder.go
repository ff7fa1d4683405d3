// Package audio provides capture device implementations. The server has no
// microphone of its own, so the default recorder is a mock that synthesizes
// a small audio file; real capture hardware plugs in behind the same
// interface.
package audio

import (
	"errors"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/rdyatmika/swara/domain/repositories"
)

// MockRecorder is a mock implementation of AudioRecorder for
// testing/development. It writes a fixed byte pattern to the capture path
// on Stop.
type MockRecorder struct {
	mu        sync.Mutex
	path      string
	recording bool
	logger    *zap.Logger
}

var _ repositories.AudioRecorder = (*MockRecorder)(nil)

// mockAudioBytes stands in for encoded audio content.
var mockAudioBytes = []byte("mock-m4a-audio")

// NewMockRecorder creates a new mock audio recorder.
func NewMockRecorder(logger *zap.Logger) *MockRecorder {
	return &MockRecorder{logger: logger}
}

// Start begins a capture session targeting the given path.
func (m *MockRecorder) Start(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recording {
		return errors.New("a capture session is already in progress")
	}
	m.path = path
	m.recording = true
	m.logger.Info("Mock capture started", zap.String("path", path))
	return nil
}

// Stop finalizes the capture, writing the audio file, and returns its path.
func (m *MockRecorder) Stop() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.recording {
		return "", errors.New("no capture session in progress")
	}
	m.recording = false

	if err := os.WriteFile(m.path, mockAudioBytes, 0o644); err != nil {
		return "", err
	}
	m.logger.Info("Mock capture stopped", zap.String("path", m.path))
	return m.path, nil
}

// Recording reports whether a capture session is in progress.
func (m *MockRecorder) Recording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recording
}
