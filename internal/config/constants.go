package config

import "time"

const (
	// OTP
	OTPValidity    = 10 * time.Minute
	OTPDigits      = 6
	MaxOTPAttempts = 5

	// Mentor trust score
	BaseSystemRating = 1.0
	MaxSystemRating  = 5.0

	// Realtime
	ClientSendBuffer = 256
	RelayChannel     = "mentorbridge:events"

	// Uploads
	PresignExpiry = 5 * time.Minute
)

// RatingWeights are added to BaseSystemRating for each verified profile link.
var RatingWeights = map[string]float64{
	"linkedin": 1.5,
	"github":   1.5,
	"cv":       1.0,
}

// UploadKinds maps an upload kind to its key prefix in the bucket.
var UploadKinds = map[string]string{
	"profile_pic": "profile-pics/",
	"cv":          "cvs/",
	"voice":       "voice-notes/",
	"video":       "videos/",
}
