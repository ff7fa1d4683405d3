package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/rdyatmika/swara/adapters/audio"
	"github.com/rdyatmika/swara/adapters/filestore"
	"github.com/rdyatmika/swara/adapters/gemini"
	"github.com/rdyatmika/swara/adapters/generation"
	"github.com/rdyatmika/swara/adapters/mongo"
	"github.com/rdyatmika/swara/adapters/stt"
	"github.com/rdyatmika/swara/domain/repositories"
	"github.com/rdyatmika/swara/internal/api"
	"github.com/rdyatmika/swara/internal/auth"
	"github.com/rdyatmika/swara/internal/config"
	"github.com/rdyatmika/swara/internal/websocket"
	"github.com/rdyatmika/swara/usecase"
)

func main() {
	// Load .env when present; the environment wins otherwise.
	godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}
	prefs, err := config.NewOutputPrefs()
	if err != nil {
		logger.Fatal("Invalid output preferences", zap.Error(err))
	}
	authenticator, err := auth.NewAuthenticator(cfg.JWTSecret, 0)
	if err != nil {
		logger.Fatal("Invalid auth configuration", zap.Error(err))
	}

	// Initialize adapters
	store, err := filestore.NewStore(cfg.DataDir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize recording store", zap.Error(err))
	}
	transcriber, generator := buildBackends(cfg, logger)
	recorder := audio.NewMockRecorder(logger)

	// Optional generation event history.
	var events repositories.EventRepository
	var mongoClient *mongo.Client
	if cfg.MongoURI != "" {
		mongoClient, err = mongo.NewClient(context.Background(), mongo.Config{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		events = mongo.NewEventRepository(mongoClient.Database)
	}

	// Initialize usecase services
	pipeline := usecase.NewPipeline(transcriber, generator, store, prefs, logger)
	library := usecase.NewLibrary(store, recorder, pipeline, logger)
	if err := library.LoadAll(); err != nil {
		logger.Fatal("Failed to load recording library", zap.Error(err))
	}

	// Initialize WebSocket hub and fan generation events out to it.
	hub := websocket.NewHub(logger)
	go hub.Run()
	go func() {
		for event := range pipeline.EventChannel() {
			hub.Broadcast(event)
			if events != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := events.SaveEvent(ctx, event); err != nil {
					logger.Warn("Failed to persist generation event", zap.Error(err))
				}
				cancel()
			}
		}
	}()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize API routes
	api.NewServer(library, pipeline, prefs, authenticator, events, hub, logger).Register(e)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", cfg.Port), zap.String("dataDir", cfg.DataDir))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Let in-flight generation settle and persist before exiting.
	pipeline.Shutdown()
	if mongoClient != nil {
		mongoClient.Close(ctx)
	}

	logger.Info("Server exited")
}

// buildBackends selects the transcription and generation backends. The wire
// backend serves both unless the configuration splits them.
func buildBackends(cfg *config.Config, logger *zap.Logger) (repositories.Transcriber, repositories.OutputGenerator) {
	var wireClient *generation.Client
	needsWire := cfg.TranscriberBackend == config.TranscriberWire || cfg.GeneratorBackend == config.GeneratorWire
	if needsWire {
		var err error
		wireClient, err = generation.NewClient(generation.Config{
			Token:   cfg.GenerationToken,
			BaseURL: cfg.GenerationBaseURL,
			Timeout: cfg.GenerationTimeout,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize generation service client", zap.Error(err))
		}
	}

	var transcriber repositories.Transcriber = wireClient
	if cfg.TranscriberBackend == config.TranscriberGoogle {
		transcriber = stt.NewGoogleTranscriber(stt.Config{}, logger)
	}

	var generator repositories.OutputGenerator = wireClient
	if cfg.GeneratorBackend == config.GeneratorGemini {
		var err error
		generator, err = gemini.NewGenerator(context.Background(), gemini.Config{APIKey: cfg.GeminiAPIKey}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini generator", zap.Error(err))
		}
	}

	return transcriber, generator
}
