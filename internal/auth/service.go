// Package auth handles signup, OTP email verification, login and bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"mentorbridge/backend/internal/apperrors"
	"mentorbridge/backend/internal/config"
	"mentorbridge/backend/internal/logger"
	"mentorbridge/backend/internal/mailer"
	"mentorbridge/backend/internal/models"
	"mentorbridge/backend/internal/storage"

	"github.com/rs/zerolog"
)

// SignupInput is the signup form.
type SignupInput struct {
	Name     string      `json:"name" binding:"required"`
	Email    string      `json:"email" binding:"required"`
	Password string      `json:"password" binding:"required"`
	Role     models.Role `json:"role" binding:"required"`
	Branch   string      `json:"branch"`
	Skills   []string    `json:"skills"`
}

type SignupResult struct {
	UserID uint `json:"userId"`
	// DebugOTP is only set outside production.
	DebugOTP string `json:"debugOtp,omitempty"`
}

type LoginResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Service implements the identity flows.
type Service struct {
	storage   storage.Storage
	jwt       *JWTService
	mailer    mailer.Mailer
	exposeOTP bool
	now       func() time.Time
	log       zerolog.Logger
}

func NewService(s storage.Storage, jwt *JWTService, m mailer.Mailer, exposeOTP bool) *Service {
	return &Service{
		storage:   s,
		jwt:       jwt,
		mailer:    m,
		exposeOTP: exposeOTP,
		now:       time.Now,
		log:       logger.With("auth"),
	}
}

// Signup creates an unverified user and sends it a verification code. A failed email does not
// fail the signup; the code can still be read from the logs or the debug field.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	email := normalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.New(apperrors.ErrValidation, "invalid email address")
	}
	if !in.Role.Valid() {
		return nil, apperrors.New(apperrors.ErrValidation, "role must be student or mentor")
	}
	if len(in.Password) < 6 {
		return nil, apperrors.New(apperrors.ErrValidation, "password must be at least 6 characters")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		Branch:       in.Branch,
		Skills:       models.NormalizeSkills(in.Skills),
	}
	if err := s.storage.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.New(apperrors.ErrConflict, "email already registered")
		}
		return nil, err
	}

	code, err := s.issueOTP(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.mailer.SendOTP(ctx, email, user.Name, code); err != nil {
		s.log.Error().Err(err).Str("email", email).Msg("Failed to send OTP email")
	}

	result := &SignupResult{UserID: user.ID}
	if s.exposeOTP {
		result.DebugOTP = code
	}
	s.log.Info().Uint("user_id", user.ID).Str("role", string(user.Role)).Msg("User signed up")
	return result, nil
}

func (s *Service) issueOTP(ctx context.Context, email string) (string, error) {
	code, err := GenerateOTP()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	otp := &models.OTP{Email: email, Code: code, ExpiresAt: s.now().Add(config.OTPValidity)}
	if err := s.storage.SaveOTP(ctx, otp); err != nil {
		return "", err
	}
	return code, nil
}

// VerifyOTP marks the user verified when code matches the stored, unexpired code. A code is
// discarded after config.MaxOTPAttempts failed tries; ResendOTP issues a new one.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)

	otp, err := s.storage.GetOTP(ctx, email)
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.New(apperrors.ErrInvalidOTP, "invalid or expired OTP")
	}
	if err != nil {
		return err
	}

	if otp.Expired(s.now()) {
		if err := s.storage.DeleteOTP(ctx, email); err != nil {
			s.log.Warn().Err(err).Str("email", email).Msg("Failed to delete expired OTP")
		}
		return apperrors.New(apperrors.ErrInvalidOTP, "invalid or expired OTP")
	}
	if otp.Attempts >= config.MaxOTPAttempts {
		return s.discardOTP(ctx, email)
	}
	if !otpMatches(otp.Code, strings.TrimSpace(code)) {
		attempts, err := s.storage.RecordFailedOTPAttempt(ctx, email)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		if attempts >= config.MaxOTPAttempts {
			return s.discardOTP(ctx, email)
		}
		return apperrors.New(apperrors.ErrInvalidOTP, "invalid or expired OTP")
	}

	if err := s.storage.MarkUserVerified(ctx, email); err != nil {
		return err
	}
	return s.storage.DeleteOTP(ctx, email)
}

func (s *Service) discardOTP(ctx context.Context, email string) error {
	s.log.Warn().Str("email", email).Msg("Too many failed OTP attempts, code discarded")
	if err := s.storage.DeleteOTP(ctx, email); err != nil {
		return err
	}
	return apperrors.New(apperrors.ErrInvalidOTP, "too many failed attempts, request a new code")
}

// ResendOTP replaces the verification code of an unverified account and mails it. Unknown
// emails get no error and no mail, so the endpoint does not reveal which accounts exist. The
// returned code is empty unless codes are exposed for debugging.
func (s *Service) ResendOTP(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)

	user, err := s.storage.GetUserByEmail(ctx, email)
	if errors.Is(err, apperrors.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if user.IsVerified {
		return "", apperrors.New(apperrors.ErrConflict, "email already verified")
	}

	code, err := s.issueOTP(ctx, email)
	if err != nil {
		return "", err
	}
	if err := s.mailer.SendOTP(ctx, email, user.Name, code); err != nil {
		s.log.Error().Err(err).Str("email", email).Msg("Failed to send OTP email")
	}
	if !s.exposeOTP {
		return "", nil
	}
	return code, nil
}

// Login checks the credentials of a verified user and returns a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.storage.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.New(apperrors.ErrInvalidCredentials, "invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, apperrors.New(apperrors.ErrInvalidCredentials, "invalid credentials")
	}
	if !user.IsVerified {
		return nil, apperrors.New(apperrors.ErrEmailNotVerified, "please verify your email first")
	}

	token, err := s.jwt.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: user}, nil
}

// ParseToken validates a bearer token and returns its claims.
func (s *Service) ParseToken(token string) (*Claims, error) {
	return s.jwt.ValidateToken(token)
}

// Authenticate resolves a bearer token to its user id.
func (s *Service) Authenticate(token string) (uint, error) {
	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
