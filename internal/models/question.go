package models

import (
	"time"

	"github.com/google/uuid"
)

// Question is an audience question in an event. A question with a nil
// ParentID is top-level; otherwise it is a follow-up to the referenced
// question. Follow-ups never have follow-ups of their own.
type Question struct {
	ID                 uuid.UUID  `json:"id"`
	EventID            uuid.UUID  `json:"event_id"`
	ParentID           *uuid.UUID `json:"parent_id,omitempty"`
	Content            string     `json:"content"`
	UserName           string     `json:"user_name,omitempty"`
	AttendeeIdentifier string     `json:"attendee_identifier,omitempty"`
	LikeCount          int        `json:"like_count"`
	FollowupCount      int        `json:"followup_count"`
	InsertedAt         time.Time  `json:"inserted_at"`
}

// IsFollowUp reports whether the question belongs to a parent thread.
func (q *Question) IsFollowUp() bool {
	return q.ParentID != nil
}
