package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quoteajob/quoteajob/internal/apperr"
	"github.com/quoteajob/quoteajob/internal/auth"
	"github.com/quoteajob/quoteajob/internal/models"
)

// VerificationMailer queues the verification email for a new account.
type VerificationMailer interface {
	EnqueueVerificationEmail(ctx context.Context, userID, email, name string) error
}

// Registration is the signup payload.
type Registration struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// Session is a signed-in user and their token.
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// IUserService defines account operations.
type IUserService interface {
	Register(ctx context.Context, in Registration) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*Session, error)
	VerifyEmail(ctx context.Context, token string) (*models.User, error)
}

type userStorage interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	MarkEmailVerified(ctx context.Context, userID string, at time.Time) (*models.User, error)
	UpdateProfileDerivedScores(ctx context.Context, userID string, trustScore, profileCompletion int) error
}

// UserServiceConfig carries the token settings.
type UserServiceConfig struct {
	JwtSecret      string
	JwtTTL         time.Duration
	EmailVerifyTTL time.Duration
}

type userService struct {
	store  userStorage
	policy *auth.PasswordPolicy
	mailer VerificationMailer
	cfg    UserServiceConfig
	logger *zap.Logger
}

// NewUserService creates a new UserService. mailer may be nil.
func NewUserService(s userStorage, policy *auth.PasswordPolicy, mailer VerificationMailer, cfg UserServiceConfig, logger *zap.Logger) IUserService {
	return &userService{store: s, policy: policy, mailer: mailer, cfg: cfg, logger: logger}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *userService) Register(ctx context.Context, in Registration) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, apperr.InvalidInput("Missing required fields")
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return nil, apperr.InvalidInput("Invalid email address")
	}
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	if in.Role != models.RoleUser && in.Role != models.RolePro {
		return nil, apperr.InvalidInput("Role must be USER or PRO")
	}
	if !s.policy.Allows(in.Password) {
		return nil, apperr.InvalidInput("Password does not meet requirements")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &models.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	if u, err = rescore(ctx, s.store, s.logger, u, RescoreSignup); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))

	if s.mailer != nil {
		if err := s.mailer.EnqueueVerificationEmail(ctx, u.ID, u.Email, u.Name); err != nil {
			s.logger.Warn("failed to enqueue verification email", zap.String("user_id", u.ID), zap.Error(err))
		}
	}
	return u, nil
}

func (s *userService) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Unauthenticated("Invalid email or password")
		}
		return nil, err
	}
	if !auth.CheckPasswordHash(password, u.PasswordHash) {
		return nil, apperr.Unauthenticated("Invalid email or password")
	}
	token, err := auth.GenerateJWT(u.ID, u.Role, s.cfg.JwtSecret, s.cfg.JwtTTL)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: u}, nil
}

func (s *userService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	claims, err := auth.ValidateEmailVerificationToken(token, s.cfg.JwtSecret)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidInput, err, "Invalid or expired verification link")
	}
	u, err := s.store.MarkEmailVerified(ctx, claims.UserID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.logger.Info("email verified", zap.String("user_id", u.ID))
	return rescore(ctx, s.store, s.logger, u, RescoreEmailVerified)
}
