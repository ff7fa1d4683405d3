// Package api exposes the recording library and the generation pipeline
// over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rdyatmika/swara/domain/entities"
	"github.com/rdyatmika/swara/domain/repositories"
	"github.com/rdyatmika/swara/internal/auth"
	"github.com/rdyatmika/swara/internal/config"
	"github.com/rdyatmika/swara/internal/websocket"
	"github.com/rdyatmika/swara/usecase"
)

const claimsKey = "claims"

// Server wires the HTTP handlers to the use cases.
type Server struct {
	library       *usecase.Library
	pipeline      *usecase.Pipeline
	prefs         *config.OutputPrefs
	authenticator *auth.Authenticator
	events        repositories.EventRepository
	hub           *websocket.Hub
	logger        *zap.Logger
}

// NewServer creates the HTTP server. events may be nil when no event
// history backend is configured.
func NewServer(
	library *usecase.Library,
	pipeline *usecase.Pipeline,
	prefs *config.OutputPrefs,
	authenticator *auth.Authenticator,
	events repositories.EventRepository,
	hub *websocket.Hub,
	logger *zap.Logger,
) *Server {
	return &Server{
		library:       library,
		pipeline:      pipeline,
		prefs:         prefs,
		authenticator: authenticator,
		events:        events,
		hub:           hub,
		logger:        logger,
	}
}

// Register initializes all API routes
func (s *Server) Register(e *echo.Echo) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "swara-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")
	v1.POST("/auth/token", s.issueToken)

	authed := v1.Group("", s.requireUser)

	authed.GET("/folders", s.listFolders)
	authed.POST("/folders", s.createFolder)
	authed.GET("/folders/:folder/recordings", s.listRecordings)

	authed.POST("/recordings/start", s.startRecording)
	authed.POST("/recordings/stop", s.stopRecording)
	authed.POST("/recordings/import", s.importRecording)
	authed.GET("/recordings/:id", s.getRecording)
	authed.POST("/recordings/:id/move", s.moveRecording)
	authed.POST("/recordings/:id/trash", s.trashRecording)
	authed.DELETE("/recordings/:id", s.deleteRecording)
	authed.POST("/recordings/:id/cancel", s.cancelGeneration)
	authed.GET("/recordings/:id/events", s.listEvents)

	authed.POST("/recordings/:id/regenerate", s.regenerateAll, s.requireGeneration)
	authed.POST("/recordings/:id/outputs", s.createCustomOutput, s.requireGeneration)
	authed.POST("/recordings/:id/outputs/:outputID/regenerate", s.regenerateOutput, s.requireGeneration)
	authed.DELETE("/recordings/:id/outputs/:outputID", s.removeOutput)

	authed.GET("/settings", s.getSettings)
	authed.PUT("/settings", s.updateSettings)

	// WebSocket endpoint with JWT validation
	e.GET("/ws", s.websocketWithAuth)
}

// issueToken hands out a signed token. There is no user database behind
// this server; identity and plan come from the caller's environment.
func (s *Server) issueToken(c echo.Context) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "user_id is required",
		})
	}
	plan := req.Plan
	if plan == "" {
		plan = auth.PlanFree
	}

	token, err := s.authenticator.GenerateUserToken(req.UserID, plan)
	if err != nil {
		s.logger.Error("Failed to generate user token",
			zap.String("user_id", req.UserID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	})
}

// requireUser validates the bearer token and stores the claims on the
// context.
func (s *Server) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, errResp := s.claimsFromRequest(c)
		if errResp != nil {
			return c.JSON(http.StatusUnauthorized, *errResp)
		}
		c.Set(claimsKey, claims)
		return next(c)
	}
}

// requireGeneration gates text generation on the plan claim.
func (s *Server) requireGeneration(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, ok := c.Get(claimsKey).(*auth.Claims)
		if !ok || !claims.CanGenerate() {
			return c.JSON(http.StatusForbidden, ErrorResponse{
				Error:   "plan_restricted",
				Message: "Text generation requires the unlimited plan",
			})
		}
		return next(c)
	}
}

func (s *Server) claimsFromRequest(c echo.Context) (*auth.Claims, *ErrorResponse) {
	authHeader := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, &ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in Authorization header",
		}
	}

	claims, err := s.authenticator.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		s.logger.Warn("Rejected invalid token", zap.Error(err))
		return nil, &ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		}
	}
	return claims, nil
}

func (s *Server) canGenerate(c echo.Context) bool {
	claims, ok := c.Get(claimsKey).(*auth.Claims)
	return ok && claims.CanGenerate()
}

func (s *Server) listFolders(c echo.Context) error {
	folders, err := s.library.Folders()
	if err != nil {
		s.logger.Error("Failed to list folders", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
	}
	return c.JSON(http.StatusOK, map[string][]string{"folders": folders})
}

func (s *Server) createFolder(c echo.Context) error {
	var req CreateFolderRequest
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Folder name is required",
		})
	}
	if err := s.library.CreateFolder(req.Name); err != nil {
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "folder_rejected",
			Message: err.Error(),
		})
	}
	return c.NoContent(http.StatusCreated)
}

func (s *Server) listRecordings(c echo.Context) error {
	recordings := s.library.List(c.Param("folder"))
	payload := make([]json.RawMessage, 0, len(recordings))
	for _, rec := range recordings {
		data, err := s.recordingJSON(rec)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
		}
		payload = append(payload, data)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"recordings": payload})
}

// recordingJSON serializes a recording under the pipeline's critical
// section; generation may be mutating the ledger concurrently.
func (s *Server) recordingJSON(rec *entities.Recording) (json.RawMessage, error) {
	var payload []byte
	var err error
	s.pipeline.View(rec, func() { payload, err = json.Marshal(rec) })
	return payload, err
}

func (s *Server) respondRecording(c echo.Context, status int, rec *entities.Recording) error {
	payload, err := s.recordingJSON(rec)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
	}
	return c.JSONBlob(status, payload)
}

func (s *Server) startRecording(c echo.Context) error {
	var req StartRecordingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request"})
	}
	if req.Folder == "" {
		req.Folder = entities.FolderDefault
	}
	if err := s.library.StartRecording(req.Folder); err != nil {
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "capture_rejected",
			Message: err.Error(),
		})
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) stopRecording(c echo.Context) error {
	var req StopRecordingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request"})
	}
	if req.Folder == "" {
		req.Folder = entities.FolderDefault
	}

	rec, err := s.library.StopRecording(req.Folder, req.GenerateText && s.canGenerate(c))
	if err != nil {
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "capture_failed",
			Message: err.Error(),
		})
	}
	return s.respondRecording(c, http.StatusCreated, rec)
}

func (s *Server) importRecording(c echo.Context) error {
	var req ImportRequest
	if err := c.Bind(&req); err != nil || req.Path == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Audio path is required",
		})
	}
	if req.Folder == "" {
		req.Folder = entities.FolderDefault
	}

	rec, err := s.library.Import(req.Path, req.Folder, req.GenerateText && s.canGenerate(c))
	if err != nil {
		s.logger.Error("Import failed", zap.String("path", req.Path), zap.Error(err))
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "import_failed",
			Message: err.Error(),
		})
	}
	return s.respondRecording(c, http.StatusCreated, rec)
}

func (s *Server) getRecording(c echo.Context) error {
	rec, err := s.recordingFromPath(c)
	if rec == nil {
		return err
	}
	return s.respondRecording(c, http.StatusOK, rec)
}

func (s *Server) moveRecording(c echo.Context) error {
	rec, err := s.recordingFromPath(c)
	if rec == nil {
		return err
	}
	var req MoveRequest
	if err := c.Bind(&req); err != nil || req.Folder == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Destination folder is required",
		})
	}
	if err := s.library.Move(rec.ID, req.Folder); err != nil {
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "move_failed",
			Message: err.Error(),
		})
	}
	return s.respondRecording(c, http.StatusOK, rec)
}

func (s *Server) trashRecording(c echo.Context) error {
	rec, err := s.recordingFromPath(c)
	if rec == nil {
		return err
	}
	if err := s.library.Trash(rec.ID); err != nil {
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "trash_failed",
			Message: err.Error(),
		})
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) deleteRecording(c echo.Context) error {
	rec, err := s.recordingFromPath(c)
	if rec == nil {
		return err
	}
	if err := s.library.Delete(rec.ID); err != nil {
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "delete_rejected",
			Message: err.Error(),
		})
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) cancelGeneration(c echo.Context) error {
	rec, err := s.recordingFromPath(c)
	if rec == nil {
		return err
	}
	s.pipeline.Cancel(rec.ID)
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) regenerateAll(c echo.Context) error {
	rec, err := s.recordingFromPath(c)
	if rec == nil {
		return err
	}
	go s.pipeline.RegenerateAll(rec)
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) regenerateOutput(c echo.Context) error {
	rec, err := s.recordingFromPath(c)
	if rec == nil {
		return err
	}
	outputID, err := uuid.Parse(c.Param("outputID"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_output_id"})
	}
	var out *entities.Output
	s.pipeline.View(rec, func() { out = rec.Outputs.GetByID(outputID) })
	if out == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "output_not_found"})
	}
	if out.Kind == entities.OutputKindTranscript {
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "transcript_retry",
			Message: "Retry the transcript by regenerating the whole recording",
		})
	}
	s.pipeline.RegenerateOutput(rec, out)
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) createCustomOutput(c echo.Context) error {
	rec, err := s.recordingFromPath(c)
	if rec == nil {
		return err
	}
	var req CustomOutputRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request"})
	}

	out := s.pipeline.GenerateCustomOutput(rec, req.Settings)
	if out == nil {
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "generation_cancelled",
			Message: "The recording's generation has been cancelled",
		})
	}

	var payload []byte
	var marshalErr error
	s.pipeline.View(rec, func() { payload, marshalErr = json.Marshal(out) })
	if marshalErr != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
	}
	return c.JSONBlob(http.StatusAccepted, payload)
}

func (s *Server) removeOutput(c echo.Context) error {
	rec, err := s.recordingFromPath(c)
	if rec == nil {
		return err
	}
	outputID, err := uuid.Parse(c.Param("outputID"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_output_id"})
	}
	s.pipeline.RemoveOutput(rec, outputID)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listEvents(c echo.Context) error {
	if s.events == nil {
		return c.JSON(http.StatusNotImplemented, ErrorResponse{
			Error:   "history_disabled",
			Message: "No event history backend is configured",
		})
	}
	rec, err := s.recordingFromPath(c)
	if rec == nil {
		return err
	}

	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	events, err := s.events.ListByRecording(c.Request().Context(), rec.ID.String(), limit)
	if err != nil {
		s.logger.Error("Failed to list events",
			zap.String("recordingID", rec.ID.String()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Server) getSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, s.prefs.OutputSettings())
}

func (s *Server) updateSettings(c echo.Context) error {
	var settings entities.OutputSettings
	if err := c.Bind(&settings); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request"})
	}
	s.prefs.UpdateSettings(settings)
	return c.JSON(http.StatusOK, settings)
}

// recordingFromPath resolves the :id path parameter. On a malformed or
// unknown id it writes the error response and returns a nil recording;
// callers return the accompanying error.
func (s *Server) recordingFromPath(c echo.Context) (*entities.Recording, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_recording_id"})
	}
	rec, ok := s.library.Get(id)
	if !ok {
		return nil, c.JSON(http.StatusNotFound, ErrorResponse{Error: "recording_not_found"})
	}
	return rec, nil
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func (s *Server) websocketWithAuth(c echo.Context) error {
	claims, errResp := s.claimsFromRequest(c)
	if errResp != nil {
		return c.JSON(http.StatusUnauthorized, *errResp)
	}
	return websocket.HandleWebSocket(s.hub, c, claims.UserID, s.logger)
}
