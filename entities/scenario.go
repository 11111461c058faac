package entities

import (
	"time"

	"github.com/google/uuid"
)

// Scenario is owned by the content management side of the backend. The relay
// reads persona instructions and voice from it when configuring the upstream
// caller; evaluation criteria live elsewhere and are never loaded here.
type Scenario struct {
	ID                  uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Title               string    `json:"title" gorm:"type:varchar(255);not null"`
	PersonaInstructions string    `json:"persona_instructions" gorm:"type:text;not null"`
	Voice               string    `json:"voice" gorm:"type:varchar(50)"`
	CreatedAt           time.Time `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (Scenario) TableName() string {
	return "scenarios"
}
