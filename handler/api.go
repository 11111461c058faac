package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"training-relay/dto"
	"training-relay/repository"
	"training-relay/service"
)

// API exposes the collaborator endpoints the relay (and the client's fast
// persistence path) call: session lifecycle, transcript persistence, recording
// records and scenario instructions.
type API struct {
	Lifecycle    service.LifecycleService
	Gateway      service.GatewayService
	Recordings   service.RecordingService
	Instructions service.InstructionService
}

func (a *API) ResolveSession(c *gin.Context) {
	var req dto.ResolveSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resolved, err := a.Lifecycle.ResolveSession(c.Request.Context(), req)
	if err != nil {
		abortWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, resolved)
}

func (a *API) CompleteSession(c *gin.Context) {
	sessionId, ok := sessionIdParam(c)
	if !ok {
		return
	}

	var req dto.CompleteSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.EndedAt.IsZero() {
		req.EndedAt = time.Now().UTC()
	}

	if err := a.Lifecycle.CompleteSession(c.Request.Context(), sessionId, req.EndedAt); err != nil {
		abortWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

func (a *API) PersistTurns(c *gin.Context) {
	sessionId, ok := sessionIdParam(c)
	if !ok {
		return
	}

	var req dto.PersistTurnsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, err := a.Gateway.PersistTurns(c.Request.Context(), sessionId, req.AttemptNumber, req.Turns)
	if err != nil {
		abortWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PersistTurnsResponse{SavedCount: saved})
}

func (a *API) SaveRecording(c *gin.Context) {
	sessionId, ok := sessionIdParam(c)
	if !ok {
		return
	}

	var req dto.SaveRecordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := a.Recordings.SaveRecording(c.Request.Context(), sessionId, req); err != nil {
		abortWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

func (a *API) ScenarioInstructions(c *gin.Context) {
	scenarioId, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scenario id"})
		return
	}

	instructions, err := a.Instructions.ScenarioInstructions(c.Request.Context(), scenarioId)
	if err != nil {
		abortWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, instructions)
}

func sessionIdParam(c *gin.Context) (uuid.UUID, bool) {
	sessionId, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return uuid.Nil, false
	}
	return sessionId, true
}

func abortWithDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrAssignmentNotFound),
		errors.Is(err, repository.ErrScenarioNotFound),
		errors.Is(err, repository.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrAssignmentCompleted),
		errors.Is(err, repository.ErrSessionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotAssignmentOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
