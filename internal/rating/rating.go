// Package rating computes the system trust score of a mentor from the profile links they
// submit for verification.
package rating

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"mentorbridge/backend/internal/apperrors"
	"mentorbridge/backend/internal/config"
	"mentorbridge/backend/internal/logger"
	"mentorbridge/backend/internal/models"
	"mentorbridge/backend/internal/storage"
)

// Links are the profile links a mentor submits.
type Links struct {
	LinkedinURL string `json:"linkedinUrl"`
	GithubURL   string `json:"githubUrl"`
	CvURL       string `json:"cvUrl"`
}

// GetWeight returns the score a link kind adds, or 0 for an unknown kind.
func GetWeight(kind string) float64 {
	return config.RatingWeights[kind]
}

// Heuristic scores the links: the base rating plus the weight of every plausible link, capped.
func Heuristic(l Links) float64 {
	score := config.BaseSystemRating
	if strings.Contains(strings.ToLower(l.LinkedinURL), "linkedin.com") {
		score += GetWeight("linkedin")
	}
	if strings.Contains(strings.ToLower(l.GithubURL), "github.com") {
		score += GetWeight("github")
	}
	if strings.TrimSpace(l.CvURL) != "" {
		score += GetWeight("cv")
	}
	return math.Min(score, config.MaxSystemRating)
}

// Service handles mentor verification.
type Service struct {
	Storage storage.Storage
}

func NewService(s storage.Storage) *Service {
	return &Service{Storage: s}
}

// VerifyMentor stores the mentor's links and system rating. A positive supplied score (computed
// by a client-side reviewer) is taken as is, capped; otherwise the heuristic decides.
func (s *Service) VerifyMentor(ctx context.Context, userID uint, links Links, supplied float64) (float64, error) {
	if supplied < 0 || math.IsNaN(supplied) {
		return 0, apperrors.New(apperrors.ErrValidation, "rating must not be negative")
	}

	user, err := s.Storage.GetUserByID(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return 0, apperrors.New(apperrors.ErrInvalidReference, fmt.Sprintf("unknown user %d", userID))
	}
	if err != nil {
		return 0, err
	}
	if user.Role != models.RoleMentor {
		return 0, apperrors.New(apperrors.ErrInvalidReference, "only mentors can be verified")
	}

	score := Heuristic(links)
	if supplied > 0 {
		score = math.Min(supplied, config.MaxSystemRating)
	}

	user.LinkedinURL = links.LinkedinURL
	user.GithubURL = links.GithubURL
	user.CvURL = links.CvURL
	user.SystemRating = score
	if err := s.Storage.UpdateUser(ctx, user); err != nil {
		return 0, err
	}

	log := logger.With("rating")
	log.Info().Uint("user_id", userID).Float64("system_rating", score).Msg("Mentor verification submitted")
	return score, nil
}

// SetRating overrides a mentor's system rating, for the admin CLI.
func (s *Service) SetRating(ctx context.Context, userID uint, score float64) error {
	if score < 0 || score > config.MaxSystemRating {
		return apperrors.New(apperrors.ErrValidation, fmt.Sprintf("rating must be between 0 and %.1f", config.MaxSystemRating))
	}
	user, err := s.Storage.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	user.SystemRating = score
	return s.Storage.UpdateUser(ctx, user)
}
