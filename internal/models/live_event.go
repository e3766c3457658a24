package models

// Live event types pushed to clients watching an event.
const (
	EventNewQuestion     = "new_question"
	EventQuestionUpdated = "question_updated"
	EventQuestionLiked   = "question_liked"
)

// ParentUpdate carries the parent's follow-up count after a follow-up was
// inserted. Sent alongside new_question events for follow-ups.
type ParentUpdate struct {
	FollowupCount int `json:"followup_count"`
}

// LiveEvent is the envelope for every message pushed over the event
// WebSocket. Data holds the question the event is about; for partial
// updates (such as a parent's follow-up count bump) only the fields that
// changed are populated.
type LiveEvent struct {
	Type         string        `json:"type"`
	Data         Question      `json:"data"`
	ParentUpdate *ParentUpdate `json:"parent_update,omitempty"`
}
