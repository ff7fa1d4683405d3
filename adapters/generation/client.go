// Package generation talks to the remote transcription/text-generation
// service over HTTP.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rdyatmika/swara/domain/entities"
	"github.com/rdyatmika/swara/domain/repositories"
)

const (
	defaultBaseURL = "https://turing-api.com/api/v1"
	defaultTimeout = 5 * time.Minute
)

// Config holds configuration for the remote generation service client.
// Required fields:
// - Token: static bearer token for the service
// Optional fields with defaults:
// - BaseURL: service base URL (default: "https://turing-api.com/api/v1")
// - Timeout: per-request ceiling (default: 5m)
type Config struct {
	Token   string
	BaseURL string
	Timeout time.Duration
}

// ValidateConfig validates the Config.
func ValidateConfig(config Config) error {
	if config.Token == "" {
		return fmt.Errorf("generation service token is required")
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %v", config.Timeout)
	}
	return nil
}

// Client implements both Transcriber and OutputGenerator against the remote
// service. Stateless request/response; safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

var (
	_ repositories.Transcriber     = (*Client)(nil)
	_ repositories.OutputGenerator = (*Client)(nil)
)

// NewClient creates a client for the remote generation service.
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      config.Token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

type transcribeResponse struct {
	Transcript *string `json:"transcript"`
}

// Transcribe uploads the audio file as multipart form data and returns the
// transcript. All failure modes surface as *TranscriptionError; request
// timeouts are flagged distinctly.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", &repositories.TranscriptionError{Err: err}
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", &repositories.TranscriptionError{Err: err}
	}
	if _, err := io.Copy(fw, f); err != nil {
		return "", &repositories.TranscriptionError{Err: err}
	}
	if err := mw.Close(); err != nil {
		return "", &repositories.TranscriptionError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", &body)
	if err != nil {
		return "", &repositories.TranscriptionError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &repositories.TranscriptionError{Err: err, Timeout: isTimeout(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", &repositories.TranscriptionError{
			Err: fmt.Errorf("transcribe http %d: %s", resp.StatusCode, string(b)),
		}
	}

	var tr transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", &repositories.TranscriptionError{Err: err}
	}
	if tr.Transcript == nil {
		return "", &repositories.TranscriptionError{Err: errors.New("invalid server response")}
	}
	return *tr.Transcript, nil
}

type generateRequest struct {
	Type       string                  `json:"type"`
	Transcript string                  `json:"transcript"`
	Settings   entities.OutputSettings `json:"settings"`
}

type generateResponse struct {
	Out string `json:"out"`
}

// GenerateOutput posts the transcript and settings for one output kind.
// Custom outputs carrying a transform go to the transformation endpoint
// with the transform kind as the type field.
func (c *Client) GenerateOutput(ctx context.Context, transcript string, kind entities.OutputKind, settings entities.OutputSettings) (string, error) {
	endpoint := "/generate_output"
	reqType := string(kind)
	if kind == entities.OutputKindCustom && settings.Transform != "" {
		endpoint = "/generate_transformation"
		reqType = string(settings.Transform)
	}

	payload, err := json.Marshal(generateRequest{
		Type:       reqType,
		Transcript: transcript,
		Settings:   settings,
	})
	if err != nil {
		return "", &repositories.GenerationError{Kind: kind, Transcript: transcript, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &repositories.GenerationError{Kind: kind, Transcript: transcript, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &repositories.GenerationError{Kind: kind, Transcript: transcript, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", &repositories.GenerationError{
			Kind:       kind,
			Transcript: transcript,
			Err:        fmt.Errorf("%s http %d: %s", endpoint, resp.StatusCode, string(b)),
		}
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", &repositories.GenerationError{Kind: kind, Transcript: transcript, Err: err}
	}
	return gr.Out, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
