package connection

import (
	"fmt"
	"strconv"
	"strings"

	"mentorbridge/backend/internal/apperrors"
)

// RoomID is the chat room of a pair: the lower id first, joined by "_". It does not depend on
// which side is the student.
func RoomID(a, b uint) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%d_%d", a, b)
}

// ParseRoomID is the inverse of RoomID. It rejects anything RoomID could not have produced.
func ParseRoomID(roomID string) (uint, uint, error) {
	left, right, ok := strings.Cut(roomID, "_")
	if !ok {
		return 0, 0, apperrors.New(apperrors.ErrValidation, "malformed room id")
	}
	a, errA := strconv.ParseUint(left, 10, 0)
	b, errB := strconv.ParseUint(right, 10, 0)
	if errA != nil || errB != nil || a == 0 || b == 0 || a >= b {
		return 0, 0, apperrors.New(apperrors.ErrValidation, "malformed room id")
	}
	return uint(a), uint(b), nil
}
