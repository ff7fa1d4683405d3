// Package config loads the server configuration from the environment and
// holds the mutable output preferences.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rdyatmika/swara/domain/entities"
	"github.com/rdyatmika/swara/domain/repositories"
)

// Backend names selectable via the environment.
const (
	TranscriberWire   = "wire"
	TranscriberGoogle = "google"
	GeneratorWire     = "wire"
	GeneratorGemini   = "gemini"
)

// Config is the full server configuration.
type Config struct {
	Port    string
	DataDir string

	// Remote generation service.
	GenerationBaseURL string
	GenerationToken   string
	GenerationTimeout time.Duration

	// Backend selection.
	TranscriberBackend string
	GeneratorBackend   string
	GeminiAPIKey       string

	JWTSecret     string
	MongoURI      string
	MongoDatabase string
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		DataDir:            getEnv("DATA_DIR", "./data"),
		GenerationBaseURL:  os.Getenv("GENERATION_BASE_URL"),
		GenerationToken:    os.Getenv("GENERATION_TOKEN"),
		TranscriberBackend: getEnv("TRANSCRIBER_BACKEND", TranscriberWire),
		GeneratorBackend:   getEnv("GENERATOR_BACKEND", GeneratorWire),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		MongoURI:           os.Getenv("MONGODB_URI"),
		MongoDatabase:      os.Getenv("MONGODB_DATABASE"),
	}

	if v := os.Getenv("GENERATION_TIMEOUT_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds <= 0 {
			return nil, fmt.Errorf("invalid GENERATION_TIMEOUT_SECONDS: %q", v)
		}
		cfg.GenerationTimeout = time.Duration(seconds) * time.Second
	}

	switch cfg.TranscriberBackend {
	case TranscriberWire, TranscriberGoogle:
	default:
		return nil, fmt.Errorf("unknown TRANSCRIBER_BACKEND: %q", cfg.TranscriberBackend)
	}
	switch cfg.GeneratorBackend {
	case GeneratorWire, GeneratorGemini:
	default:
		return nil, fmt.Errorf("unknown GENERATOR_BACKEND: %q", cfg.GeneratorBackend)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// OutputPrefs holds the user's output preferences: which kinds are generated
// for every recording and the global settings applied to them. Safe for
// concurrent use.
type OutputPrefs struct {
	mu       sync.RWMutex
	kinds    []entities.OutputKind
	settings entities.OutputSettings
}

var _ repositories.SettingsProvider = (*OutputPrefs)(nil)

// NewOutputPrefs parses the configured kinds from the environment, falling
// back to Title and Summary.
func NewOutputPrefs() (*OutputPrefs, error) {
	kinds, err := parseKinds(os.Getenv("OUTPUT_KINDS"))
	if err != nil {
		return nil, err
	}
	return &OutputPrefs{
		kinds:    kinds,
		settings: entities.DefaultOutputSettings(),
	}, nil
}

func parseKinds(raw string) ([]entities.OutputKind, error) {
	if raw == "" {
		return []entities.OutputKind{entities.OutputKindTitle, entities.OutputKindSummary}, nil
	}
	var kinds []entities.OutputKind
	for _, name := range strings.Split(raw, ",") {
		switch kind := entities.OutputKind(strings.TrimSpace(name)); kind {
		case entities.OutputKindTitle, entities.OutputKindSummary:
			kinds = append(kinds, kind)
		default:
			return nil, fmt.Errorf("unsupported output kind: %q", name)
		}
	}
	return kinds, nil
}

// ConfiguredKinds returns the kinds generated for every recording.
func (p *OutputPrefs) ConfiguredKinds() []entities.OutputKind {
	p.mu.RLock()
	defer p.mu.RUnlock()
	kinds := make([]entities.OutputKind, len(p.kinds))
	copy(kinds, p.kinds)
	return kinds
}

// OutputSettings returns the current global settings.
func (p *OutputPrefs) OutputSettings() entities.OutputSettings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

// UpdateSettings replaces the global settings. Already-generated outputs
// keep the settings they were generated with.
func (p *OutputPrefs) UpdateSettings(settings entities.OutputSettings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = settings
}
