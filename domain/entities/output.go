package entities

import (
	"github.com/google/uuid"
)

// OutputKind is the category of a generated output.
type OutputKind string

const (
	OutputKindTitle      OutputKind = "Title"
	OutputKindTranscript OutputKind = "Transcript"
	OutputKindSummary    OutputKind = "Summary"
	OutputKindCustom     OutputKind = "Custom"
)

// OutputStatus represents the lifecycle state of one output.
type OutputStatus string

const (
	OutputStatusRestricted OutputStatus = "restricted"
	OutputStatusLoading    OutputStatus = "loading"
	OutputStatusCompleted  OutputStatus = "completed"
	OutputStatusError      OutputStatus = "error"
)

// User-facing placeholder content. The error sentinel doubles as the retry
// affordance in clients, so it must stay stable across versions.
const (
	LoadingContent = "Loading"
	ErrorContent   = "Error, tap to retry"
)

// Output is one generated text artifact attached to a recording.
type Output struct {
	ID       uuid.UUID      `json:"id"`
	Kind     OutputKind     `json:"type"`
	Content  string         `json:"content"`
	Status   OutputStatus   `json:"status"`
	Settings OutputSettings `json:"settings"`
}

// NewOutput creates an output in the loading state.
func NewOutput(kind OutputKind, settings OutputSettings) *Output {
	return &Output{
		ID:       uuid.New(),
		Kind:     kind,
		Content:  LoadingContent,
		Status:   OutputStatusLoading,
		Settings: settings,
	}
}

// Ledger is the insertion-ordered collection of a recording's outputs.
// All mutation methods are synchronous and never block; callers are
// responsible for serializing concurrent access per recording.
type Ledger struct {
	Outputs []*Output `json:"outputs"`
}

// DefaultLedger is the placeholder ledger a fresh recording starts with:
// Title, Transcript and Summary, all loading.
func DefaultLedger() *Ledger {
	defaults := DefaultOutputSettings()
	return &Ledger{Outputs: []*Output{
		NewOutput(OutputKindTitle, defaults),
		NewOutput(OutputKindTranscript, defaults),
		NewOutput(OutputKindSummary, defaults),
	}}
}

// UpsertLoading returns the existing output of the given kind reset to
// loading, or appends a new loading output if none exists. Custom outputs
// are never deduplicated: each call appends a fresh one.
func (l *Ledger) UpsertLoading(kind OutputKind, settings OutputSettings) *Output {
	if kind != OutputKindCustom {
		if out := l.Get(kind); out != nil {
			out.Content = LoadingContent
			out.Status = OutputStatusLoading
			out.Settings = settings
			return out
		}
	}
	out := NewOutput(kind, settings)
	l.Outputs = append(l.Outputs, out)
	return out
}

// Complete transitions the output with the given id to completed, replacing
// its content and settings. Returns false if no such output exists.
func (l *Ledger) Complete(id uuid.UUID, content string, settings OutputSettings) bool {
	out := l.GetByID(id)
	if out == nil {
		return false
	}
	out.Content = content
	out.Settings = settings
	out.Status = OutputStatusCompleted
	return true
}

// Fail transitions the output with the given id to the error state. The
// content is replaced with the error sentinel. Returns false if no such
// output exists.
func (l *Ledger) Fail(id uuid.UUID) bool {
	out := l.GetByID(id)
	if out == nil {
		return false
	}
	out.Content = ErrorContent
	out.Status = OutputStatusError
	return true
}

// MarkLoading resets the output with the given id to loading, keeping its
// identity and settings. Returns false if no such output exists.
func (l *Ledger) MarkLoading(id uuid.UUID) bool {
	out := l.GetByID(id)
	if out == nil {
		return false
	}
	out.Content = LoadingContent
	out.Status = OutputStatusLoading
	return true
}

// FailAll transitions every output to the error state. Used when the
// transcript itself could not be produced, so no dependent output can ever
// resolve.
func (l *Ledger) FailAll() {
	for _, out := range l.Outputs {
		out.Content = ErrorContent
		out.Status = OutputStatusError
	}
}

// LoadingAll resets every output to loading ahead of a full regeneration.
func (l *Ledger) LoadingAll() {
	for _, out := range l.Outputs {
		out.Content = LoadingContent
		out.Status = OutputStatusLoading
	}
}

// RestrictAll marks every output restricted. Terminal state for recordings
// with text generation disabled, not an error.
func (l *Ledger) RestrictAll() {
	for _, out := range l.Outputs {
		out.Status = OutputStatusRestricted
	}
}

// Remove deletes the output with the given id. Returns false if absent.
func (l *Ledger) Remove(id uuid.UUID) bool {
	for i, out := range l.Outputs {
		if out.ID == id {
			l.Outputs = append(l.Outputs[:i], l.Outputs[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns the first output of the given kind, or nil.
func (l *Ledger) Get(kind OutputKind) *Output {
	for _, out := range l.Outputs {
		if out.Kind == kind {
			return out
		}
	}
	return nil
}

// GetByID returns the output with the given id, or nil.
func (l *Ledger) GetByID(id uuid.UUID) *Output {
	for _, out := range l.Outputs {
		if out.ID == id {
			return out
		}
	}
	return nil
}

// Customs returns the custom outputs in insertion order.
func (l *Ledger) Customs() []*Output {
	var customs []*Output
	for _, out := range l.Outputs {
		if out.Kind == OutputKindCustom {
			customs = append(customs, out)
		}
	}
	return customs
}

// Transcript returns the transcript content, or "" when absent.
func (l *Ledger) Transcript() string {
	if out := l.Get(OutputKindTranscript); out != nil {
		return out.Content
	}
	return ""
}

// Settled reports whether no output remains loading.
func (l *Ledger) Settled() bool {
	for _, out := range l.Outputs {
		if out.Status == OutputStatusLoading {
			return false
		}
	}
	return true
}
