package entities

import (
	"time"

	"github.com/google/uuid"
	"training-relay/constant"
)

type TranscriptTurn struct {
	ID            uuid.UUID     `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SessionId     uuid.UUID     `json:"session_id" gorm:"type:uuid;not null;index:idx_transcript_turns_session"`
	Role          constant.Role `json:"role" gorm:"type:varchar(20);not null;check:role IN ('user', 'assistant')"`
	Content       string        `json:"content" gorm:"type:text;not null"`
	TurnOrder     int           `json:"turn_order" gorm:"not null"`
	AttemptNumber int           `json:"attempt_number" gorm:"not null;default:1"`
	CapturedAt    time.Time     `json:"captured_at" gorm:"type:timestamptz;not null"`
	CreatedAt     time.Time     `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (TranscriptTurn) TableName() string {
	return "transcript_turns"
}
