package repositories

import (
	"fmt"

	"github.com/rdyatmika/swara/domain/entities"
)

// TranscriptionError reports a failed transcription: network, server or
// decode failure. It fails the entire output set of the recording.
type TranscriptionError struct {
	Err     error
	Timeout bool
}

func (e *TranscriptionError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("transcription timed out: %v", e.Err)
	}
	return fmt.Sprintf("transcription failed: %v", e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// GenerationError reports a failure generating one specific output kind.
// It retains the kind and transcript so a caller can offer a retry without
// re-deriving context.
type GenerationError struct {
	Kind       entities.OutputKind
	Transcript string
	Err        error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generating %s output failed: %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// DecodeError reports a persisted document that failed to parse. Callers
// enumerating a folder skip and log it; it is never fatal.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding recording document %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// FilesystemError reports a failed move/copy/delete. These operations are
// best-effort; the error is logged and surfaced, not rolled back.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }
