package entities

import (
	"time"

	"github.com/google/uuid"
	"training-relay/constant"
)

// Assignment is owned by the assignment management side of the backend.
// The relay only reads it and transitions pending -> in_progress.
type Assignment struct {
	ID          uuid.UUID                 `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CounselorId uuid.UUID                 `json:"counselor_id" gorm:"type:uuid;not null;index:idx_assignments_counselor"`
	ScenarioId  uuid.UUID                 `json:"scenario_id" gorm:"type:uuid;not null"`
	Status      constant.AssignmentStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	StartedAt   *time.Time                `json:"started_at" gorm:"type:timestamptz"`
	CreatedAt   time.Time                 `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time                 `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (Assignment) TableName() string {
	return "assignments"
}
