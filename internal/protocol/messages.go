package protocol

import "time"

// Caption is the display-ready text broadcast on the bus for overlay clients.
type Caption struct {
	SessionID string    `json:"session_id,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

const SubjectCaptionDisplay = "caption.display"
