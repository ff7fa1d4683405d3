package entities

import (
	"time"

	"github.com/google/uuid"
)

// Reserved folder names. FolderDefault holds new recordings; FolderTrash
// holds soft-deleted ones until they are hard-deleted from within it.
const (
	FolderDefault = "Recordings"
	FolderTrash   = "Recently Deleted"
)

// UntitledTitle is the display title before a generated title arrives.
const UntitledTitle = "Untitled"

// Recording is one voice memo: an audio file plus the ledger of texts
// generated from it. Exactly one persisted document exists per recording,
// colocated with its audio file.
type Recording struct {
	ID           uuid.UUID `json:"id"`
	FolderPath   string    `json:"folderPath"`
	AudioPath    string    `json:"audioPath"`
	FilePath     string    `json:"filePath"`
	CreatedAt    time.Time `json:"createdAt"`
	Title        string    `json:"title"`
	GenerateText bool      `json:"generateText"`
	Outputs      *Ledger   `json:"outputs"`
}

// NewRecording creates a recording for a just-captured or imported audio
// file. The document lives alongside the audio, named after it.
func NewRecording(folderPath, audioPath string, createdAt time.Time, generateText bool) *Recording {
	return &Recording{
		ID:           uuid.New(),
		FolderPath:   folderPath,
		AudioPath:    audioPath,
		FilePath:     audioPath + ".json",
		CreatedAt:    createdAt,
		Title:        UntitledTitle,
		GenerateText: generateText,
		Outputs:      DefaultLedger(),
	}
}

// GenerationEvent is emitted whenever an output changes state. Consumed by
// the websocket hub and the optional event history sink.
type GenerationEvent struct {
	RecordingID uuid.UUID    `json:"recording_id"`
	OutputID    uuid.UUID    `json:"output_id,omitempty"`
	Kind        OutputKind   `json:"kind,omitempty"`
	Status      OutputStatus `json:"status"`
	Timestamp   time.Time    `json:"timestamp"`
}
