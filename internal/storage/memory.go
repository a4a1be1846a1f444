package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"mentorbridge/backend/internal/apperrors"
	"mentorbridge/backend/internal/models"
)

// MemoryStorage is an in-process Storage used by tests and by STORAGE_DRIVER=memory. It keeps
// the same uniqueness and ordering guarantees as the database-backed Service.
type MemoryStorage struct {
	mu sync.RWMutex

	users       map[uint]*models.User
	otps        map[string]*models.OTP
	swipes      map[[2]uint]*models.Swipe
	connections map[uint]*models.Connection
	messages    map[string][]models.Message

	nextUser, nextSwipe, nextConn, nextMsg uint

	now func() time.Time
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:       make(map[uint]*models.User),
		otps:        make(map[string]*models.OTP),
		swipes:      make(map[[2]uint]*models.Swipe),
		connections: make(map[uint]*models.Connection),
		messages:    make(map[string][]models.Message),
		now:         time.Now,
	}
}

func (m *MemoryStorage) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(user.Email)
	for _, u := range m.users {
		if strings.ToLower(u.Email) == email {
			return fmt.Errorf("create user %s: %w", user.Email, apperrors.ErrConflict)
		}
	}
	m.nextUser++
	user.ID = m.nextUser
	user.Skills = models.NormalizeSkills(user.Skills)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = m.now()
	}
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *MemoryStorage) GetUserByID(_ context.Context, id uint) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("get user %d: %w", id, apperrors.ErrNotFound)
	}
	clone := *u
	return &clone, nil
}

func (m *MemoryStorage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("get user %s: %w", email, apperrors.ErrNotFound)
}

func (m *MemoryStorage) UpdateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.users[user.ID]
	if !ok {
		return fmt.Errorf("update user %d: %w", user.ID, apperrors.ErrNotFound)
	}
	stored.Name = user.Name
	stored.Skills = models.NormalizeSkills(user.Skills)
	stored.Branch = user.Branch
	stored.Bio = user.Bio
	stored.ProfilePic = user.ProfilePic
	stored.LinkedinURL = user.LinkedinURL
	stored.GithubURL = user.GithubURL
	stored.CvURL = user.CvURL
	stored.Rating = user.Rating
	stored.SystemRating = user.SystemRating
	return nil
}

func (m *MemoryStorage) MarkUserVerified(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			u.IsVerified = true
			return nil
		}
	}
	return fmt.Errorf("verify user %s: %w", email, apperrors.ErrNotFound)
}

func (m *MemoryStorage) ListMentorsForStudent(_ context.Context, studentID uint) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mentors := []models.User{}
	for _, u := range m.users {
		if u.Role != models.RoleMentor || !u.IsVerified {
			continue
		}
		if _, swiped := m.swipes[[2]uint{studentID, u.ID}]; studentID != 0 && swiped {
			continue
		}
		mentors = append(mentors, *u)
	}
	sort.Slice(mentors, func(i, j int) bool {
		si, sj := mentors[i].Score(), mentors[j].Score()
		if si != sj {
			return si > sj
		}
		return mentors[i].ID < mentors[j].ID
	})
	return mentors, nil
}

func (m *MemoryStorage) SaveOTP(_ context.Context, otp *models.OTP) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *otp
	m.otps[strings.ToLower(otp.Email)] = &clone
	return nil
}

func (m *MemoryStorage) GetOTP(_ context.Context, email string) (*models.OTP, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	otp, ok := m.otps[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("get otp %s: %w", email, apperrors.ErrNotFound)
	}
	clone := *otp
	return &clone, nil
}

func (m *MemoryStorage) DeleteOTP(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.otps, strings.ToLower(email))
	return nil
}

func (m *MemoryStorage) RecordFailedOTPAttempt(_ context.Context, email string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	otp, ok := m.otps[strings.ToLower(email)]
	if !ok {
		return 0, fmt.Errorf("record otp attempt %s: %w", email, apperrors.ErrNotFound)
	}
	otp.Attempts++
	return otp.Attempts, nil
}

func (m *MemoryStorage) PurgeExpiredOTPs(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for email, otp := range m.otps {
		if otp.Expired(now) {
			delete(m.otps, email)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStorage) SaveSwipeIfNotExists(_ context.Context, swipe *models.Swipe) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := [2]uint{swipe.StudentID, swipe.MentorID}
	if _, ok := m.swipes[key]; ok {
		return false, nil
	}
	m.nextSwipe++
	swipe.ID = m.nextSwipe
	swipe.CreatedAt = m.now()
	clone := *swipe
	m.swipes[key] = &clone
	return true, nil
}

func (m *MemoryStorage) GetSwipe(_ context.Context, studentID, mentorID uint) (*models.Swipe, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.swipes[[2]uint{studentID, mentorID}]
	if !ok {
		return nil, fmt.Errorf("get swipe %d/%d: %w", studentID, mentorID, apperrors.ErrNotFound)
	}
	clone := *s
	return &clone, nil
}

func (m *MemoryStorage) CreateConnectionIfNoActive(_ context.Context, conn *models.Connection) (*models.Connection, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.connections {
		if c.StudentID == conn.StudentID && c.MentorID == conn.MentorID && c.Status.Active() {
			return m.withUsers(c), false, nil
		}
	}

	m.nextConn++
	now := m.now()
	conn.ID = m.nextConn
	conn.Status = models.StatusPending
	conn.CreatedAt = now
	conn.UpdatedAt = now
	clone := *conn
	clone.Student, clone.Mentor = nil, nil
	m.connections[conn.ID] = &clone
	return m.withUsers(&clone), true, nil
}

// withUsers copies c and attaches the participants. Callers hold m.mu.
func (m *MemoryStorage) withUsers(c *models.Connection) *models.Connection {
	clone := *c
	if u, ok := m.users[c.StudentID]; ok {
		student := *u
		clone.Student = &student
	}
	if u, ok := m.users[c.MentorID]; ok {
		mentor := *u
		clone.Mentor = &mentor
	}
	return &clone
}

func (m *MemoryStorage) GetConnection(_ context.Context, id uint) (*models.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.connections[id]
	if !ok {
		return nil, fmt.Errorf("get connection %d: %w", id, apperrors.ErrNotFound)
	}
	return m.withUsers(c), nil
}

func (m *MemoryStorage) TransitionConnection(_ context.Context, id uint, from, to models.ConnectionStatus) (*models.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.connections[id]
	if !ok {
		return nil, fmt.Errorf("transition connection %d: %w", id, apperrors.ErrNotFound)
	}
	if c.Status != from {
		return m.withUsers(c), fmt.Errorf("connection %d is %s: %w", id, c.Status, apperrors.ErrInvalidTransition)
	}
	c.Status = to
	c.UpdatedAt = m.now()
	return m.withUsers(c), nil
}

func (m *MemoryStorage) ListPendingConnections(_ context.Context, mentorID uint) ([]models.Connection, error) {
	return m.listConnections(func(c *models.Connection) bool {
		return c.MentorID == mentorID && c.Status == models.StatusPending
	}), nil
}

func (m *MemoryStorage) ListAcceptedConnections(_ context.Context, userID uint) ([]models.Connection, error) {
	return m.listConnections(func(c *models.Connection) bool {
		return c.Involves(userID) && c.Status == models.StatusAccepted
	}), nil
}

func (m *MemoryStorage) listConnections(keep func(*models.Connection) bool) []models.Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns := []models.Connection{}
	for _, c := range m.connections {
		if keep(c) {
			conns = append(conns, *m.withUsers(c))
		}
	}
	sort.Slice(conns, func(i, j int) bool {
		if !conns[i].CreatedAt.Equal(conns[j].CreatedAt) {
			return conns[i].CreatedAt.Before(conns[j].CreatedAt)
		}
		return conns[i].ID < conns[j].ID
	})
	return conns
}

func (m *MemoryStorage) FindAcceptedConnection(_ context.Context, userA, userB uint) (*models.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.connections {
		if c.Status == models.StatusAccepted && c.Involves(userA) && c.Involves(userB) && userA != userB {
			clone := *c
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("find accepted connection %d/%d: %w", userA, userB, apperrors.ErrNotFound)
}

func (m *MemoryStorage) SaveMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextMsg++
	msg.ID = m.nextMsg
	if msg.Timestamp == 0 {
		msg.Timestamp = m.now().UnixMilli()
	}
	m.messages[msg.RoomID] = append(m.messages[msg.RoomID], *msg)
	return nil
}

func (m *MemoryStorage) GetChatHistory(_ context.Context, roomID string) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := make([]models.Message, len(m.messages[roomID]))
	copy(history, m.messages[roomID])
	sort.SliceStable(history, func(i, j int) bool {
		if history[i].Timestamp != history[j].Timestamp {
			return history[i].Timestamp < history[j].Timestamp
		}
		return history[i].ID < history[j].ID
	})
	return history, nil
}
