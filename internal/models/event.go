package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is an audience Q&A session that questions belong to.
type Event struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Code         string     `json:"code"`
	AudiencePeak int        `json:"audience_peak"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	ExpiredAt    *time.Time `json:"expired_at,omitempty"`
	InsertedAt   time.Time  `json:"inserted_at"`
}
