package handlers

import (
	"errors"
	"io"
	"net/http"

	"call-assist-service/database"
	"call-assist-service/models"
	"call-assist-service/report"
	"call-assist-service/service"
	"call-assist-service/version"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// Handlers represents the HTTP handlers
type Handlers struct {
	db    *database.Database
	calls *service.CallService
}

// NewHandlers creates new HTTP handlers
func NewHandlers(db *database.Database, calls *service.CallService) *Handlers {
	return &Handlers{db: db, calls: calls}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:  "healthy",
		Service: "call-assist-service",
		Version: version.Version,
	})
}

// CreateCall creates a new call record
func (h *Handlers) CreateCall(c *gin.Context) {
	var req models.CreateCallRequest
	// Body is optional; a call may be opened before caller info is known
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
			return
		}
	}

	call, err := h.db.CreateCall(req.CallerInfo)
	if err != nil {
		log.Errorf("Failed to create call: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create call"})
		return
	}

	log.WithField("call_id", call.ID).Info("call created")
	c.JSON(http.StatusCreated, call)
}

// ListCalls returns all calls, newest first
func (h *Handlers) ListCalls(c *gin.Context) {
	calls, err := h.db.ListCalls()
	if err != nil {
		log.Errorf("Failed to list calls: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list calls"})
		return
	}
	if calls == nil {
		calls = []models.Call{}
	}
	c.JSON(http.StatusOK, calls)
}

// GetCall returns a single call by id
func (h *Handlers) GetCall(c *gin.Context) {
	call, err := h.db.GetCall(c.Param("id"))
	if err != nil {
		if errors.Is(err, database.ErrCallNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
			return
		}
		log.Errorf("Failed to get call: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get call"})
		return
	}
	c.JSON(http.StatusOK, call)
}

// UpdateCall updates a call's caller info
func (h *Handlers) UpdateCall(c *gin.Context) {
	var req models.UpdateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	id := c.Param("id")
	if err := h.db.UpdateCall(id, req.CallerInfo); err != nil {
		if errors.Is(err, database.ErrCallNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
			return
		}
		log.Errorf("Failed to update call: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update call"})
		return
	}

	call, err := h.db.GetCall(id)
	if err != nil {
		log.Errorf("Failed to reload call after update: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update call"})
		return
	}
	c.JSON(http.StatusOK, call)
}

// DeleteCall removes a call and its transcript segments
func (h *Handlers) DeleteCall(c *gin.Context) {
	if err := h.db.DeleteCall(c.Param("id")); err != nil {
		if errors.Is(err, database.ErrCallNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
			return
		}
		log.Errorf("Failed to delete call: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete call"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ListTranscripts returns all transcript segments for a call in timestamp order
func (h *Handlers) ListTranscripts(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.db.GetCall(id); err != nil {
		if errors.Is(err, database.ErrCallNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
			return
		}
		log.Errorf("Failed to get call: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list transcripts"})
		return
	}

	segments, err := h.db.ListTranscripts(id)
	if err != nil {
		log.Errorf("Failed to list transcripts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list transcripts"})
		return
	}
	if segments == nil {
		segments = []models.TranscriptSegment{}
	}
	c.JSON(http.StatusOK, segments)
}

// Transcribe accepts an uploaded audio file for a call, forwards it to the
// STT provider and finalizes the call with a regenerated report
func (h *Handlers) Transcribe(c *gin.Context) {
	id := c.Param("id")

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No audio file provided."})
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		log.Errorf("Failed to read uploaded audio: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read audio file"})
		return
	}

	resp, err := h.calls.SubmitAudio(c.Request.Context(), id, audio, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		h.writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetReport regenerates a report for a call on demand without mutating state
func (h *Handlers) GetReport(c *gin.Context) {
	result, err := h.calls.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": result})
}

// writeWorkflowError maps workflow error types to HTTP status codes
func (h *Handlers) writeWorkflowError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	var upstreamErr *service.UpstreamError
	var configErr *report.ConfigurationError
	var providerErr *report.ProviderError

	switch {
	case errors.Is(err, database.ErrCallNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Msg})
	case errors.As(err, &upstreamErr):
		log.Errorf("Transcription failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.As(err, &configErr):
		log.Errorf("Report generator misconfigured: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server misconfigured"})
	case errors.As(err, &providerErr):
		log.Errorf("Report provider failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		log.Errorf("Call workflow error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
