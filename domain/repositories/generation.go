package repositories

import (
	"context"

	"github.com/rdyatmika/swara/domain/entities"
)

// Transcriber abstracts speech-to-text services.
type Transcriber interface {
	// Transcribe converts the audio file at the given path to text.
	// Failures are reported as *TranscriptionError.
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// OutputGenerator abstracts the text-generation service that derives one
// output kind from a transcript. Stateless; safe to call concurrently for
// different kinds on the same transcript.
type OutputGenerator interface {
	// GenerateOutput produces the text for one output kind. Failures are
	// reported as *GenerationError carrying the kind and transcript.
	GenerateOutput(ctx context.Context, transcript string, kind entities.OutputKind, settings entities.OutputSettings) (string, error)
}

// SettingsProvider supplies the user's current generation preferences.
// Injected rather than read from a global so settings changes mid-flight
// are deterministic per pipeline invocation.
type SettingsProvider interface {
	// ConfiguredKinds returns the output kinds to generate after a
	// transcript is ready, e.g. {Title, Summary}.
	ConfiguredKinds() []entities.OutputKind
	// OutputSettings returns the current global output settings.
	OutputSettings() entities.OutputSettings
}
