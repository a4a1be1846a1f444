package models

import "time"

// OTP is a pending email verification code, one per email.
type OTP struct {
	Email     string    `gorm:"primaryKey"`
	Code      string    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
	// Attempts counts failed verifications of this code.
	Attempts int `gorm:"not null;default:0"`
}

// Expired reports whether the code is no longer valid at now.
func (o *OTP) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}
