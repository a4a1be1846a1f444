package swipe

import (
	"context"
	"errors"
	"fmt"

	"mentorbridge/backend/internal/apperrors"
	"mentorbridge/backend/internal/logger"
	"mentorbridge/backend/internal/models"
	"mentorbridge/backend/internal/storage"

	"github.com/rs/zerolog"
)

// Requester opens a connection request for a student/mentor pair.
type Requester interface {
	RequestConnection(ctx context.Context, studentID, mentorID uint) (*models.Connection, bool, error)
}

// Service records swipes. Each pair is decided once; later swipes are ignored.
type Service struct {
	storage   storage.Storage
	requester Requester
	log       zerolog.Logger
}

func NewService(s storage.Storage, r Requester) *Service {
	return &Service{storage: s, requester: r, log: logger.With("swipe")}
}

// RecordSwipe stores the decision if the pair has none yet and reports whether it did. Only a
// newly recorded right swipe opens a connection request; a repeated swipe changes nothing, so
// it cannot reopen a request the mentor already rejected.
func (s *Service) RecordSwipe(ctx context.Context, studentID, mentorID uint, direction models.Direction) (bool, error) {
	if !direction.Valid() {
		return false, apperrors.New(apperrors.ErrValidation, fmt.Sprintf("direction must be left or right, got %q", direction))
	}
	if err := s.checkRole(ctx, studentID, models.RoleStudent); err != nil {
		return false, err
	}
	if err := s.checkRole(ctx, mentorID, models.RoleMentor); err != nil {
		return false, err
	}

	created, err := s.storage.SaveSwipeIfNotExists(ctx, &models.Swipe{
		StudentID: studentID,
		MentorID:  mentorID,
		Direction: direction,
	})
	if err != nil {
		return false, err
	}

	s.log.Debug().Uint("student_id", studentID).Uint("mentor_id", mentorID).
		Str("direction", string(direction)).Bool("created", created).Msg("Swipe recorded")

	if created && direction == models.DirectionRight {
		if _, _, err := s.requester.RequestConnection(ctx, studentID, mentorID); err != nil {
			return created, err
		}
	}
	return created, nil
}

func (s *Service) checkRole(ctx context.Context, id uint, role models.Role) error {
	user, err := s.storage.GetUserByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.New(apperrors.ErrInvalidReference, fmt.Sprintf("unknown user %d", id))
	}
	if err != nil {
		return err
	}
	if user.Role != role {
		return apperrors.New(apperrors.ErrInvalidReference, fmt.Sprintf("user %d is not a %s", id, role))
	}
	return nil
}
