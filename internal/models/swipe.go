package models

import "time"

// Direction of a swipe.
type Direction string

const (
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// Valid reports whether d is left or right.
func (d Direction) Valid() bool {
	return d == DirectionLeft || d == DirectionRight
}

// Swipe is a student's one-time decision about a mentor. At most one per pair.
type Swipe struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StudentID uint      `gorm:"not null;uniqueIndex:idx_swipe_pair" json:"studentId"`
	MentorID  uint      `gorm:"not null;uniqueIndex:idx_swipe_pair" json:"mentorId"`
	Direction Direction `gorm:"type:text;not null" json:"direction"`
	CreatedAt time.Time `json:"createdAt"`
}
