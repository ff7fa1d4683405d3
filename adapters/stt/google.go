// Package stt transcribes recorded audio files with Google Cloud
// Speech-to-Text, as an alternative backend to the remote generation
// service.
package stt

import (
	"context"
	"fmt"
	"os"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/rdyatmika/swara/domain/repositories"
)

const (
	defaultLanguage   = "en-US"
	defaultSampleRate = 44100
)

// Config holds configuration for the Google transcriber.
// Optional fields with defaults:
// - Encoding: audio encoding name (default: inferred from the file extension)
// - SampleRate: sample rate in hertz (default: 44100)
// - Language: BCP-47 language code (default: "en-US")
type Config struct {
	Encoding   string
	SampleRate int
	Language   string
}

// GoogleTranscriber implements Transcriber against Google Cloud
// Speech-to-Text. Credentials come from the ambient Google Cloud
// environment.
type GoogleTranscriber struct {
	config Config
	logger *zap.Logger
}

var _ repositories.Transcriber = (*GoogleTranscriber)(nil)

// NewGoogleTranscriber creates a transcriber for recorded audio files.
func NewGoogleTranscriber(config Config, logger *zap.Logger) *GoogleTranscriber {
	if config.SampleRate == 0 {
		config.SampleRate = defaultSampleRate
	}
	if config.Language == "" {
		config.Language = defaultLanguage
	}
	return &GoogleTranscriber{config: config, logger: logger}
}

// Transcribe reads the whole audio file and runs one synchronous recognize
// call. All failure modes surface as *TranscriptionError; a cancelled or
// expired context is flagged as a timeout.
func (g *GoogleTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return "", &repositories.TranscriptionError{Err: err}
	}

	encoding, err := audioEncoding(g.config.Encoding, audioPath)
	if err != nil {
		return "", &repositories.TranscriptionError{Err: err}
	}

	client, err := speech.NewClient(ctx)
	if err != nil {
		return "", &repositories.TranscriptionError{Err: fmt.Errorf("failed to create speech client: %w", err)}
	}
	defer client.Close()

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        encoding,
			SampleRateHertz: int32(g.config.SampleRate),
			LanguageCode:    g.config.Language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: data},
		},
	})
	if err != nil {
		return "", &repositories.TranscriptionError{Err: err, Timeout: ctx.Err() != nil}
	}

	var transcript strings.Builder
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			transcript.WriteString(result.Alternatives[0].Transcript)
		}
	}

	g.logger.Debug("Transcription finished",
		zap.String("audioPath", audioPath),
		zap.Int("results", len(resp.Results)))
	return transcript.String(), nil
}

// audioEncoding maps an encoding name, or failing that the file extension,
// to the Speech API enum.
func audioEncoding(encoding, audioPath string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	if encoding == "" {
		switch {
		case strings.HasSuffix(audioPath, ".wav"):
			encoding = "LINEAR16"
		case strings.HasSuffix(audioPath, ".flac"):
			encoding = "FLAC"
		case strings.HasSuffix(audioPath, ".ogg"):
			encoding = "OGG_OPUS"
		default:
			// Container formats like m4a carry their own headers; let the
			// service sniff them.
			return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, nil
		}
	}

	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "AMR":
		return speechpb.RecognitionConfig_AMR, nil
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
