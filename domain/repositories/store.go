package repositories

import (
	"context"

	"github.com/rdyatmika/swara/domain/entities"
)

// RecordingStore persists recordings as one document per recording,
// colocated with the audio file it references.
type RecordingStore interface {
	// Save serializes the full recording to its canonical path,
	// overwriting atomically.
	Save(rec *entities.Recording) error
	// Load deserializes one document. Malformed or schema-mismatched
	// documents yield *DecodeError.
	Load(path string) (*entities.Recording, error)
	// LoadFolder returns the decodable recordings of a folder in
	// descending creation-time order, skipping and logging the rest.
	LoadFolder(folder string) ([]*entities.Recording, error)
	// Folders lists the folder names, reserved folders included.
	Folders() ([]string, error)
	// EnsureFolder creates a folder if it does not exist.
	EnsureFolder(folder string) error
	// Move relocates a recording's audio and document to another folder,
	// staging the copy before removing the source. Updates rec.FolderPath.
	Move(rec *entities.Recording, toFolder string) error
	// Delete removes a recording's document and audio file.
	Delete(rec *entities.Recording) error
	// ImportAudio copies an external audio file into a folder's raw
	// directory and returns the stored filename.
	ImportAudio(src, folder string) (string, error)
	// AudioPath returns the absolute path of a recording's audio file.
	AudioPath(rec *entities.Recording) string
	// NewAudioPath returns an absolute path for a fresh capture in the
	// folder's raw directory.
	NewAudioPath(folder string) (string, error)
}

// EventRepository stores settled generation events for history/analytics.
type EventRepository interface {
	SaveEvent(ctx context.Context, event entities.GenerationEvent) error
	ListByRecording(ctx context.Context, recordingID string, limit int) ([]entities.GenerationEvent, error)
}

// AudioRecorder abstracts the capture hardware. Start begins writing to
// the given path; Stop finalizes the file and returns its path.
type AudioRecorder interface {
	Start(path string) error
	Stop() (string, error)
	Recording() bool
}
