package models

import (
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Role is immutable once the user is created.
type Role string

const (
	RoleStudent Role = "student"
	RoleMentor  Role = "mentor"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleMentor
}

// User is a student or mentor account with its profile.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"not null" json:"name"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`
	Role         Role           `gorm:"type:text;not null;index" json:"role"`
	IsVerified   bool           `gorm:"not null;default:false" json:"isVerified"`
	Skills       pq.StringArray `gorm:"type:text[]" json:"skills"`
	Branch       string         `json:"branch"`
	Bio          string         `json:"bio,omitempty"`
	ProfilePic   string         `json:"profilePic,omitempty"`
	LinkedinURL  string         `json:"linkedinUrl,omitempty"`
	GithubURL    string         `json:"githubUrl,omitempty"`
	CvURL        string         `json:"cvUrl,omitempty"`
	// Rating and SystemRating are written only by the rating collaborator.
	Rating       float64   `gorm:"not null;default:0" json:"rating"`
	SystemRating float64   `gorm:"not null;default:0" json:"systemRating"`
	CreatedAt    time.Time `json:"createdAt"`
}

// BeforeSave is a GORM hook that keeps the skill set normalised.
func (u *User) BeforeSave(tx *gorm.DB) (err error) {
	u.Skills = NormalizeSkills(u.Skills)
	return
}

// Score is the discovery ordering key for mentors.
func (u *User) Score() float64 {
	return u.Rating + u.SystemRating
}

// NormalizeSkills trims, de-duplicates (case-insensitively) and sorts a skill set.
func NormalizeSkills(skills []string) pq.StringArray {
	seen := make(map[string]bool, len(skills))
	out := make(pq.StringArray, 0, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// UserSummary is the public slice of a profile shown to the other side of a connection.
type UserSummary struct {
	ID     uint     `json:"id"`
	Name   string   `json:"name"`
	Role   Role     `json:"role"`
	Branch string   `json:"branch"`
	Skills []string `json:"skills"`
}

// Summary returns the public profile summary.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Role: u.Role, Branch: u.Branch, Skills: u.Skills}
}
