package dto

import (
	"time"

	"github.com/google/uuid"
	"training-relay/constant"
)

type ResolveSessionRequest struct {
	UserId       uuid.UUID  `json:"userId" binding:"required"`
	ScenarioId   *uuid.UUID `json:"scenarioId"`
	AssignmentId *uuid.UUID `json:"assignmentId"`
}

type ResolvedSession struct {
	SessionId     uuid.UUID `json:"sessionId"`
	AttemptNumber int       `json:"attemptNumber"`
	IsRetry       bool      `json:"isRetry"`
}

type TurnSubmission struct {
	Role       constant.Role `json:"role" binding:"required"`
	Content    string        `json:"content"`
	TurnOrder  int           `json:"turnOrder"`
	CapturedAt time.Time     `json:"capturedAt" binding:"required"`
}

type PersistTurnsRequest struct {
	AttemptNumber int              `json:"attemptNumber" binding:"required,min=1"`
	Turns         []TurnSubmission `json:"turns"`
}

type PersistTurnsResponse struct {
	SavedCount int `json:"savedCount"`
}

type SaveRecordingRequest struct {
	FilePath        string `json:"filePath" binding:"required"`
	DurationSeconds int    `json:"durationSeconds"`
	FileSizeBytes   int64  `json:"fileSizeBytes"`
}

type CompleteSessionRequest struct {
	EndedAt time.Time `json:"endedAt"`
}

type ScenarioInstructions struct {
	ScenarioId   uuid.UUID `json:"scenarioId"`
	Instructions string    `json:"instructions"`
	Voice        string    `json:"voice"`
}

type SessionCompletedMessage struct {
	SessionId    uuid.UUID  `json:"sessionId"`
	AssignmentId *uuid.UUID `json:"assignmentId,omitempty"`
	EndedAt      time.Time  `json:"endedAt"`
}
