package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mentorbridge/backend/internal/apperrors"
	"mentorbridge/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Storage is the single access path to persistent state. Not-found lookups return an error
// wrapping apperrors.ErrNotFound; driver failures wrap apperrors.ErrTransientStore.
type Storage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	MarkUserVerified(ctx context.Context, email string) error
	ListMentorsForStudent(ctx context.Context, studentID uint) ([]models.User, error)

	SaveOTP(ctx context.Context, otp *models.OTP) error
	GetOTP(ctx context.Context, email string) (*models.OTP, error)
	DeleteOTP(ctx context.Context, email string) error
	RecordFailedOTPAttempt(ctx context.Context, email string) (int, error)
	PurgeExpiredOTPs(ctx context.Context, now time.Time) (int64, error)

	SaveSwipeIfNotExists(ctx context.Context, swipe *models.Swipe) (bool, error)
	GetSwipe(ctx context.Context, studentID, mentorID uint) (*models.Swipe, error)

	CreateConnectionIfNoActive(ctx context.Context, conn *models.Connection) (*models.Connection, bool, error)
	GetConnection(ctx context.Context, id uint) (*models.Connection, error)
	TransitionConnection(ctx context.Context, id uint, from, to models.ConnectionStatus) (*models.Connection, error)
	ListPendingConnections(ctx context.Context, mentorID uint) ([]models.Connection, error)
	ListAcceptedConnections(ctx context.Context, userID uint) ([]models.Connection, error)
	FindAcceptedConnection(ctx context.Context, userA, userB uint) (*models.Connection, error)

	SaveMessage(ctx context.Context, msg *models.Message) error
	GetChatHistory(ctx context.Context, roomID string) ([]models.Message, error)
}

// Service implements Storage on PostgreSQL via GORM. Redis, when set, carries the realtime
// relay (see relay.go).
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// AutoMigrate creates or updates every table the service uses.
func (s *Service) AutoMigrate() error {
	return s.DB.AutoMigrate(
		&models.User{},
		&models.OTP{},
		&models.Swipe{},
		&models.Connection{},
		&models.Message{},
	)
}

// storeErr translates a GORM error into the apperrors taxonomy.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", op, apperrors.ErrConflict)
	}
	return fmt.Errorf("%s: %w: %w", op, apperrors.ErrTransientStore, err)
}

// CreateUser inserts a new user. A duplicate email is reported as ErrConflict.
func (s *Service) CreateUser(ctx context.Context, user *models.User) error {
	return storeErr("create user", s.DB.WithContext(ctx).Create(user).Error)
}

func (s *Service) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, storeErr("get user", err)
	}
	return &user, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, storeErr("get user by email", err)
	}
	return &user, nil
}

// UpdateUser saves the mutable profile fields. Role and email are never written.
func (s *Service) UpdateUser(ctx context.Context, user *models.User) error {
	res := s.DB.WithContext(ctx).Model(user).
		Select("Name", "Skills", "Branch", "Bio", "ProfilePic", "LinkedinURL", "GithubURL", "CvURL", "Rating", "SystemRating").
		Updates(user)
	if res.Error != nil {
		return storeErr("update user", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update user %d: %w", user.ID, apperrors.ErrNotFound)
	}
	return nil
}

func (s *Service) MarkUserVerified(ctx context.Context, email string) error {
	res := s.DB.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Update("is_verified", true)
	if res.Error != nil {
		return storeErr("verify user", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("verify user %s: %w", email, apperrors.ErrNotFound)
	}
	return nil
}

// ListMentorsForStudent returns verified mentors by descending score. With a non-zero
// studentID, mentors the student already swiped on are excluded.
func (s *Service) ListMentorsForStudent(ctx context.Context, studentID uint) ([]models.User, error) {
	q := s.DB.WithContext(ctx).
		Where("role = ? AND is_verified = ?", models.RoleMentor, true)
	if studentID != 0 {
		q = q.Where("id NOT IN (?)", s.DB.Model(&models.Swipe{}).Select("mentor_id").Where("student_id = ?", studentID))
	}

	var mentors []models.User
	if err := q.Order("(rating + system_rating) DESC").Order("id ASC").Find(&mentors).Error; err != nil {
		return nil, storeErr("list mentors", err)
	}
	return mentors, nil
}

// SaveOTP replaces any previous code for the same email.
func (s *Service) SaveOTP(ctx context.Context, otp *models.OTP) error {
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"code", "expires_at", "attempts"}),
	}).Create(otp).Error
	return storeErr("save otp", err)
}

func (s *Service) GetOTP(ctx context.Context, email string) (*models.OTP, error) {
	var otp models.OTP
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&otp).Error; err != nil {
		return nil, storeErr("get otp", err)
	}
	return &otp, nil
}

func (s *Service) DeleteOTP(ctx context.Context, email string) error {
	return storeErr("delete otp", s.DB.WithContext(ctx).Where("email = ?", email).Delete(&models.OTP{}).Error)
}

// RecordFailedOTPAttempt increments the failure count of the email's code and returns it.
func (s *Service) RecordFailedOTPAttempt(ctx context.Context, email string) (int, error) {
	var otp models.OTP
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.OTP{}).Where("email = ?", email).
			UpdateColumn("attempts", gorm.Expr("attempts + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("email = ?", email).First(&otp).Error
	})
	if err != nil {
		return 0, storeErr("record otp attempt", err)
	}
	return otp.Attempts, nil
}

func (s *Service) PurgeExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.OTP{})
	return res.RowsAffected, storeErr("purge otps", res.Error)
}

// SaveSwipeIfNotExists inserts the swipe unless the pair already has one. It reports whether a
// row was created.
func (s *Service) SaveSwipeIfNotExists(ctx context.Context, swipe *models.Swipe) (bool, error) {
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "mentor_id"}},
		DoNothing: true,
	}).Create(swipe)
	if res.Error != nil {
		return false, storeErr("save swipe", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Service) GetSwipe(ctx context.Context, studentID, mentorID uint) (*models.Swipe, error) {
	var swipe models.Swipe
	err := s.DB.WithContext(ctx).Where("student_id = ? AND mentor_id = ?", studentID, mentorID).First(&swipe).Error
	if err != nil {
		return nil, storeErr("get swipe", err)
	}
	return &swipe, nil
}

// CreateConnectionIfNoActive inserts conn as pending unless the pair already has a pending or
// accepted connection, in which case that one is returned with created=false. The partial
// unique index resolves races between processes.
func (s *Service) CreateConnectionIfNoActive(ctx context.Context, conn *models.Connection) (*models.Connection, bool, error) {
	var result models.Connection
	created := false

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := activeConnection(tx, conn.StudentID, conn.MentorID).First(&result).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		conn.Status = models.StatusPending
		if err := tx.Create(conn).Error; err != nil {
			return err
		}
		result = *conn
		created = true
		return nil
	})

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost the race against another process; the winner's row is the active one.
		if err := activeConnection(s.DB.WithContext(ctx), conn.StudentID, conn.MentorID).First(&result).Error; err != nil {
			return nil, false, storeErr("create connection", err)
		}
		return &result, false, nil
	}
	if err != nil {
		return nil, false, storeErr("create connection", err)
	}
	return &result, created, nil
}

func activeConnection(tx *gorm.DB, studentID, mentorID uint) *gorm.DB {
	return tx.Where("student_id = ? AND mentor_id = ? AND status IN ?", studentID, mentorID,
		[]models.ConnectionStatus{models.StatusPending, models.StatusAccepted})
}

func (s *Service) GetConnection(ctx context.Context, id uint) (*models.Connection, error) {
	var conn models.Connection
	if err := s.DB.WithContext(ctx).Preload("Student").Preload("Mentor").First(&conn, id).Error; err != nil {
		return nil, storeErr("get connection", err)
	}
	return &conn, nil
}

// TransitionConnection moves a connection from one status to another with a conditional
// update, so that of two concurrent callers only one can succeed. The loser gets
// ErrInvalidTransition; an unknown id gets ErrNotFound.
func (s *Service) TransitionConnection(ctx context.Context, id uint, from, to models.ConnectionStatus) (*models.Connection, error) {
	res := s.DB.WithContext(ctx).Model(&models.Connection{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return nil, storeErr("transition connection", res.Error)
	}

	conn, err := s.GetConnection(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return conn, fmt.Errorf("connection %d is %s: %w", id, conn.Status, apperrors.ErrInvalidTransition)
	}
	return conn, nil
}

// ListPendingConnections returns the mentor's pending requests, oldest first.
func (s *Service) ListPendingConnections(ctx context.Context, mentorID uint) ([]models.Connection, error) {
	var conns []models.Connection
	err := s.DB.WithContext(ctx).Preload("Student").
		Where("mentor_id = ? AND status = ?", mentorID, models.StatusPending).
		Order("created_at ASC").Order("id ASC").
		Find(&conns).Error
	if err != nil {
		return nil, storeErr("list pending connections", err)
	}
	return conns, nil
}

// ListAcceptedConnections returns accepted connections on either side of userID.
func (s *Service) ListAcceptedConnections(ctx context.Context, userID uint) ([]models.Connection, error) {
	var conns []models.Connection
	err := s.DB.WithContext(ctx).Preload("Student").Preload("Mentor").
		Where("(student_id = ? OR mentor_id = ?) AND status = ?", userID, userID, models.StatusAccepted).
		Order("created_at ASC").Order("id ASC").
		Find(&conns).Error
	if err != nil {
		return nil, storeErr("list accepted connections", err)
	}
	return conns, nil
}

// FindAcceptedConnection finds the accepted connection between two users, whichever of them is
// the student.
func (s *Service) FindAcceptedConnection(ctx context.Context, userA, userB uint) (*models.Connection, error) {
	var conn models.Connection
	err := s.DB.WithContext(ctx).
		Where("((student_id = ? AND mentor_id = ?) OR (student_id = ? AND mentor_id = ?)) AND status = ?",
			userA, userB, userB, userA, models.StatusAccepted).
		First(&conn).Error
	if err != nil {
		return nil, storeErr("find accepted connection", err)
	}
	return &conn, nil
}

// SaveMessage appends a message; msg.ID is filled in by the database.
func (s *Service) SaveMessage(ctx context.Context, msg *models.Message) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	return storeErr("save message", s.DB.WithContext(ctx).Create(msg).Error)
}

// GetChatHistory returns a room's messages by timestamp, ties by insertion order.
func (s *Service) GetChatHistory(ctx context.Context, roomID string) ([]models.Message, error) {
	history := []models.Message{}
	err := s.DB.WithContext(ctx).Where("room_id = ?", roomID).
		Order("timestamp ASC").Order("id ASC").
		Find(&history).Error
	if err != nil {
		return nil, storeErr("get chat history", err)
	}
	return history, nil
}
