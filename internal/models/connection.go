package models

import "time"

// ConnectionStatus is the state of a mentorship connection.
type ConnectionStatus string

const (
	StatusPending  ConnectionStatus = "pending"
	StatusAccepted ConnectionStatus = "accepted"
	StatusRejected ConnectionStatus = "rejected"
)

// Active reports whether the status blocks a new request for the same pair.
func (s ConnectionStatus) Active() bool {
	return s == StatusPending || s == StatusAccepted
}

// CanTransitionTo reports whether s -> next is allowed. Accepted and rejected are terminal.
func (s ConnectionStatus) CanTransitionTo(next ConnectionStatus) bool {
	return s == StatusPending && (next == StatusAccepted || next == StatusRejected)
}

// Connection is a student -> mentor mentorship request and, once accepted, the chat pairing.
// The partial unique index allows at most one pending or accepted row per pair.
type Connection struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	StudentID uint             `gorm:"not null;uniqueIndex:idx_connection_active_pair,where:status <> 'rejected'" json:"studentId"`
	MentorID  uint             `gorm:"not null;uniqueIndex:idx_connection_active_pair,where:status <> 'rejected';index" json:"mentorId"`
	Status    ConnectionStatus `gorm:"type:text;not null;default:pending;index" json:"status"`
	CreatedAt time.Time        `gorm:"not null;index" json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`

	Student *User `gorm:"foreignKey:StudentID" json:"-"`
	Mentor  *User `gorm:"foreignKey:MentorID" json:"-"`
}

// Involves reports whether userID is the student or the mentor of the connection.
func (c *Connection) Involves(userID uint) bool {
	return c.StudentID == userID || c.MentorID == userID
}

// PendingRequest is a pending connection with the requester's profile summary.
type PendingRequest struct {
	ID            uint      `json:"id"`
	StudentID     uint      `json:"studentId"`
	StudentName   string    `json:"studentName"`
	StudentBranch string    `json:"studentBranch"`
	StudentSkills []string  `json:"studentSkills"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ActiveConnection is an accepted connection seen from one participant.
type ActiveConnection struct {
	ID        uint   `json:"id"`
	OtherID   uint   `json:"otherId"`
	OtherName string `json:"otherName"`
	OtherRole Role   `json:"otherRole"`
	RoomID    string `json:"roomId"`
}
