package entities

import (
	"time"

	"github.com/google/uuid"
)

type Recording struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SessionId       uuid.UUID `json:"session_id" gorm:"type:uuid;not null;uniqueIndex:ux_recordings_session"`
	FilePath        string    `json:"file_path" gorm:"type:varchar(500);not null"`
	DurationSeconds int       `json:"duration_seconds" gorm:"not null;default:0"`
	FileSizeBytes   int64     `json:"file_size_bytes" gorm:"type:bigint;not null;default:0"`
	CreatedAt       time.Time `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (Recording) TableName() string {
	return "recordings"
}
