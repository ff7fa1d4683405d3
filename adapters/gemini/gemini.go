// Package gemini generates outputs directly against Google's Gemini API,
// as an alternative backend to the remote generation service.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/rdyatmika/swara/domain/entities"
	"github.com/rdyatmika/swara/domain/repositories"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultTemperature    = 0.7
	defaultMaxTokens      = 2048
	defaultTimeoutSeconds = 120
)

// Config holds configuration for the Gemini generator.
// Required fields:
// - APIKey: Google AI API key
// Optional fields with defaults:
// - Model: model name (default: "gemini-2.0-flash")
// - Temperature: sampling temperature (default: 0.7)
// - MaxOutputTokens: response token ceiling (default: 2048)
// - TimeoutSeconds: per-request ceiling (default: 120)
type Config struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int
	TimeoutSeconds  int
}

// ValidateConfig validates the Config.
func ValidateConfig(config Config) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}
	if config.Temperature != 0 && (config.Temperature < 0 || config.Temperature > 1) {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", config.Temperature)
	}
	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("maxOutputTokens must be positive, got %d", config.MaxOutputTokens)
	}
	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}
	return nil
}

// Generator implements OutputGenerator using Google's Gemini API.
type Generator struct {
	client          *genai.Client
	logger          *zap.Logger
	model           string
	temperature     float32
	maxOutputTokens int
	timeoutSeconds  int
}

var _ repositories.OutputGenerator = (*Generator)(nil)

// NewGenerator creates a Gemini-backed output generator.
func NewGenerator(ctx context.Context, config Config, logger *zap.Logger) (*Generator, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}
	temperature := config.Temperature
	if temperature == 0 {
		temperature = float32(defaultTemperature)
	}
	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultMaxTokens
	}
	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}

	return &Generator{
		client:          client,
		logger:          logger,
		model:           model,
		temperature:     temperature,
		maxOutputTokens: maxOutputTokens,
		timeoutSeconds:  timeoutSeconds,
	}, nil
}

// GenerateOutput prompts the model with the transcript and the settings for
// one output kind and returns the generated text.
func (g *Generator) GenerateOutput(ctx context.Context, transcript string, kind entities.OutputKind, settings entities.OutputSettings) (string, error) {
	prompt := buildPrompt(transcript, kind, settings)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: int32(g.maxOutputTokens),
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(g.timeoutSeconds)*time.Second)
	defer cancel()

	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", &repositories.GenerationError{Kind: kind, Transcript: transcript, Err: err}
	}
	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return "", &repositories.GenerationError{
			Kind:       kind,
			Transcript: transcript,
			Err:        fmt.Errorf("no content generated"),
		}
	}

	var text string
	for _, part := range response.Candidates[0].Content.Parts {
		text += part.Text
	}
	if text == "" {
		return "", &repositories.GenerationError{
			Kind:       kind,
			Transcript: transcript,
			Err:        fmt.Errorf("empty response"),
		}
	}
	return strings.TrimSpace(text), nil
}

// buildPrompt renders the instruction for one output kind. The transcript is
// appended verbatim at the end so model instructions always come first.
func buildPrompt(transcript string, kind entities.OutputKind, settings entities.OutputSettings) string {
	var b strings.Builder

	switch {
	case kind == entities.OutputKindCustom && settings.Transform != "":
		fmt.Fprintf(&b, "Transform the following voice memo transcript into %s.\n", transformInstruction(settings.Transform))
	case kind == entities.OutputKindCustom:
		b.WriteString("Apply the following instruction to the voice memo transcript below.\n")
		if settings.Prompt != "" {
			fmt.Fprintf(&b, "Instruction: %s\n", settings.Prompt)
		}
	case kind == entities.OutputKindTitle:
		b.WriteString("Write a title for the following voice memo transcript. Respond with the title only.\n")
	default:
		fmt.Fprintf(&b, "Write a %s of the following voice memo transcript.\n", strings.ToLower(string(kind)))
	}

	fmt.Fprintf(&b, "Length: %s. Format: %s. Tone: %s.\n", settings.Length, settings.Format, settings.Tone)
	if settings.Language != "" {
		fmt.Fprintf(&b, "Respond in %s.\n", settings.Language)
	}
	b.WriteString("\nTranscript:\n")
	b.WriteString(transcript)
	return b.String()
}

func transformInstruction(transform entities.TransformKind) string {
	switch transform {
	case entities.TransformActionItems:
		return "a list of action items"
	case entities.TransformEmail:
		return "a ready-to-send email"
	case entities.TransformNotes:
		return "structured notes"
	default:
		return string(transform)
	}
}
