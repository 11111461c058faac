package entities

import (
	"time"

	"github.com/google/uuid"
	"training-relay/constant"
)

type Session struct {
	ID             uuid.UUID              `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AssignmentId   *uuid.UUID             `json:"assignment_id" gorm:"type:uuid;index:idx_sessions_assignment_id"`
	UserId         *uuid.UUID             `json:"user_id" gorm:"type:uuid;index:idx_sessions_user_id"`
	ScenarioId     *uuid.UUID             `json:"scenario_id" gorm:"type:uuid"`
	Status         constant.SessionStatus `json:"status" gorm:"type:varchar(20);not null;default:'active';index:idx_sessions_status"`
	CurrentAttempt int                    `json:"current_attempt" gorm:"not null;default:1"`
	StartedAt      time.Time              `json:"started_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	EndedAt        *time.Time             `json:"ended_at" gorm:"type:timestamptz"`
	CreatedAt      time.Time              `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time              `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (Session) TableName() string {
	return "training_sessions"
}
