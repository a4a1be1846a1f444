package connection

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

// Publisher fans a realtime event out to the subscribers of a channel. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload interface{})
}

// Decision is a mentor's answer to a pending request.
type Decision string

const (
	Accept Decision = "accepted"
	Reject Decision = "rejected"
)

func (d Decision) status() (models.ConnectionStatus, bool) {
	switch d {
	case Accept:
		return models.StatusAccepted, true
	case Reject:
		return models.StatusRejected, true
	}
	return "", false
}

// Service owns the connection lifecycle: request, respond, and the room ids of accepted pairs.
type Service struct {
	storage   storage.Storage
	publisher Publisher
	locks     *pairLocks
	log       zerolog.Logger
}

func NewService(s storage.Storage, p Publisher) *Service {
	return &Service{
		storage:   s,
		publisher: p,
		locks:     newPairLocks(),
		log:       logger.With("connection"),
	}
}

// RequestConnection creates a pending connection from student to mentor, or returns the pair's
// existing pending or accepted connection unchanged. The mentor is notified only on creation.
func (s *Service) RequestConnection(ctx context.Context, studentID, mentorID uint) (*models.Connection, bool, error) {
	if err := s.checkPair(ctx, studentID, mentorID); err != nil {
		return nil, false, err
	}

	unlock := s.locks.Lock(studentID, mentorID)
	conn, created, err := s.storage.CreateConnectionIfNoActive(ctx, &models.Connection{StudentID: studentID, MentorID: mentorID})
	unlock()
	if err != nil {
		return nil, false, err
	}

	if created {
		s.log.Info().Uint("connection_id", conn.ID).Uint("student_id", studentID).Uint("mentor_id", mentorID).Msg("Connection requested")
		s.publisher.Publish(ctx, models.UserChannel(mentorID), models.EventNewRequest,
			models.NewRequestPayload{StudentID: studentID})
	}
	return conn, created, nil
}

func (s *Service) checkPair(ctx context.Context, studentID, mentorID uint) error {
	student, err := s.userWithRole(ctx, studentID, models.RoleStudent)
	if err != nil {
		return err
	}
	mentor, err := s.userWithRole(ctx, mentorID, models.RoleMentor)
	if err != nil {
		return err
	}
	if student.ID == mentor.ID {
		return apperrors.New(apperrors.ErrInvalidReference, "student and mentor must differ")
	}
	return nil
}

// userWithRole loads a user and checks its role, mapping a missing user to ErrInvalidReference.
func (s *Service) userWithRole(ctx context.Context, id uint, role models.Role) (*models.User, error) {
	user, err := s.storage.GetUserByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.New(apperrors.ErrInvalidReference, fmt.Sprintf("unknown user %d", id))
	}
	if err != nil {
		return nil, err
	}
	if role != "" && user.Role != role {
		return nil, apperrors.New(apperrors.ErrInvalidReference, fmt.Sprintf("user %d is not a %s", id, role))
	}
	return user, nil
}

// ListPending returns the mentor's pending requests with the requesting students' profiles,
// oldest first.
func (s *Service) ListPending(ctx context.Context, mentorID uint) ([]models.PendingRequest, error) {
	conns, err := s.storage.ListPendingConnections(ctx, mentorID)
	if err != nil {
		return nil, err
	}

	requests := make([]models.PendingRequest, 0, len(conns))
	for _, c := range conns {
		req := models.PendingRequest{ID: c.ID, StudentID: c.StudentID, CreatedAt: c.CreatedAt, StudentSkills: []string{}}
		if c.Student != nil {
			req.StudentName = c.Student.Name
			req.StudentBranch = c.Student.Branch
			req.StudentSkills = append(req.StudentSkills, c.Student.Skills...)
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// Respond applies the mentor's decision to a pending connection. Only the connection's mentor
// may respond, and only once: a second response, concurrent or not, gets ErrInvalidTransition.
func (s *Service) Respond(ctx context.Context, actorID, connectionID uint, decision Decision) (*models.Connection, error) {
	next, ok := decision.status()
	if !ok {
		return nil, apperrors.New(apperrors.ErrValidation, fmt.Sprintf("unknown decision %q", decision))
	}

	conn, err := s.storage.GetConnection(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if conn.MentorID != actorID {
		return nil, apperrors.New(apperrors.ErrUnauthorized, "only the requested mentor can respond")
	}
	if !conn.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("connection %d is %s: %w", conn.ID, conn.Status, apperrors.ErrInvalidTransition)
	}

	conn, err = s.storage.TransitionConnection(ctx, connectionID, models.StatusPending, next)
	if err != nil {
		return nil, err
	}

	s.log.Info().Uint("connection_id", conn.ID).Str("status", string(conn.Status)).Msg("Connection answered")
	if next == models.StatusAccepted {
		s.publisher.Publish(ctx, models.UserChannel(conn.StudentID), models.EventRequestAccepted,
			models.RequestAcceptedPayload{MentorID: conn.MentorID, RoomID: RoomID(conn.StudentID, conn.MentorID)})
	}
	return conn, nil
}

// ListActive returns the user's accepted connections, each seen from the user's side.
func (s *Service) ListActive(ctx context.Context, userID uint) ([]models.ActiveConnection, error) {
	if _, err := s.userWithRole(ctx, userID, ""); err != nil {
		return nil, err
	}

	conns, err := s.storage.ListAcceptedConnections(ctx, userID)
	if err != nil {
		return nil, err
	}

	active := make([]models.ActiveConnection, 0, len(conns))
	for _, c := range conns {
		item := models.ActiveConnection{ID: c.ID, RoomID: RoomID(c.StudentID, c.MentorID)}
		other := c.Mentor
		item.OtherID, item.OtherRole = c.MentorID, models.RoleMentor
		if c.MentorID == userID {
			other = c.Student
			item.OtherID, item.OtherRole = c.StudentID, models.RoleStudent
		}
		if other != nil {
			item.OtherName = other.Name
		}
		active = append(active, item)
	}
	return active, nil
}

// Participants resolves a room id to the accepted connection behind it.
func (s *Service) Participants(ctx context.Context, roomID string) (*models.Connection, error) {
	a, b, err := ParseRoomID(roomID)
	if err != nil {
		return nil, fmt.Errorf("room %q: %w", roomID, apperrors.ErrNotFound)
	}
	return s.storage.FindAcceptedConnection(ctx, a, b)
}

// IsParticipant reports whether userID belongs to the accepted connection behind roomID.
func (s *Service) IsParticipant(ctx context.Context, roomID string, userID uint) (bool, error) {
	conn, err := s.Participants(ctx, roomID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return conn.Involves(userID), nil
}
