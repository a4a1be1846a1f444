package models

import "fmt"

// Realtime event names.
const (
	EventNewRequest      = "new_request"
	EventRequestAccepted = "request_accepted"
	EventMessage         = "message"
)

// UserChannel is the per-user notification channel name.
func UserChannel(userID uint) string {
	return fmt.Sprintf("user_%d", userID)
}

// RealtimeEvent is what the broadcaster fans out on a channel.
type RealtimeEvent struct {
	Channel string      `json:"channel"`
	Event   string      `json:"event"`
	Payload interface{} `json:"data"`
}

// NewRequestPayload is sent to the mentor when a student requests a connection.
type NewRequestPayload struct {
	StudentID uint `json:"studentId"`
}

// RequestAcceptedPayload is sent to the student when the mentor accepts.
type RequestAcceptedPayload struct {
	MentorID uint   `json:"mentorId"`
	RoomID   string `json:"roomId"`
}
