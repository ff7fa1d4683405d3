package entities

// Length controls how long a generated output should be.
type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

// Format controls the layout of a generated output.
type Format string

const (
	FormatBullet    Format = "bullet"
	FormatParagraph Format = "paragraph"
)

// Tone controls the voice of a generated output.
type Tone string

const (
	ToneCasual       Tone = "casual"
	ToneProfessional Tone = "professional"
)

// TransformKind names a user-defined transformation applied to a transcript.
// The set is open-ended; these are the built-in ones.
type TransformKind string

const (
	TransformActionItems TransformKind = "ActionItems"
	TransformEmail       TransformKind = "Email"
	TransformNotes       TransformKind = "Notes"
)

// OutputSettings is the immutable value describing how one output was
// generated. It is attached to an Output at creation and replaced wholesale
// on regeneration.
type OutputSettings struct {
	Length    Length        `json:"length"`
	Format    Format        `json:"format"`
	Tone      Tone          `json:"tone"`
	Name      string        `json:"name"`
	Prompt    string        `json:"prompt"`
	Transform TransformKind `json:"transformType,omitempty"`
	Language  string        `json:"language,omitempty"`
}

// DefaultOutputSettings returns the settings used when the user has not
// configured anything.
func DefaultOutputSettings() OutputSettings {
	return OutputSettings{
		Length: LengthShort,
		Format: FormatBullet,
		Tone:   ToneCasual,
		Name:   "Default",
	}
}
