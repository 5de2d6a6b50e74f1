package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pride/internal/audit"
	"pride/internal/notify"
	"pride/internal/repository"
	"pride/internal/session"

	"go.uber.org/zap"
)

var ( // Define custom errors
	ErrUserAlreadyExists    = errors.New("user already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrRegistrationDisabled = errors.New("registration is disabled")
)

// LoginResult is a started session and the token that refers to it.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Session   *session.Session
}

type AuthService interface {
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Logout(ctx context.Context, s *session.Session)
}

type authService struct {
	store             repository.CredentialStore
	sessions          *session.Manager
	audit             *audit.Log
	notifier          notify.Notifier
	allowRegistration bool
	logger            *zap.Logger
}

func NewAuthService(store repository.CredentialStore, sessions *session.Manager, auditLog *audit.Log, notifier notify.Notifier, allowRegistration bool, logger *zap.Logger) AuthService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &authService{
		store:             store,
		sessions:          sessions,
		audit:             auditLog,
		notifier:          notifier,
		allowRegistration: allowRegistration,
		logger:            logger,
	}
}

func (s *authService) Register(ctx context.Context, username, password string) error {
	if !s.allowRegistration {
		return ErrRegistrationDisabled
	}

	created, err := s.store.Register(ctx, username, password)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidUsername) || errors.Is(err, repository.ErrEmptyPassword) {
			return err
		}
		s.logger.Error("Failed to register user", zap.String("username", username), zap.Error(err))
		return fmt.Errorf("failed to register user: %w", err)
	}

	s.audit.Record(audit.ActionRegister, username, created, nil)
	if !created {
		return ErrUserAlreadyExists
	}

	s.logger.Info("User registered", zap.String("username", username))
	if err := s.notifier.Notify(ctx, fmt.Sprintf("Akun baru terdaftar: %s", username)); err != nil {
		s.logger.Warn("Registration notification failed", zap.Error(err))
	}
	return nil
}

func (s *authService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	ok, err := s.store.Verify(ctx, username, password)
	if err != nil {
		s.logger.Error("Failed to verify credentials", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("failed to verify credentials: %w", err)
	}

	s.audit.Record(audit.ActionLogin, username, ok, nil)
	if !ok {
		return nil, ErrInvalidCredentials
	}

	sess, token, err := s.sessions.Create(username)
	if err != nil {
		s.logger.Error("Failed to create session", zap.Error(err))
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("User logged in successfully.", zap.String("username", username), zap.String("session_id", sess.ID))

	return &LoginResult{Token: token, ExpiresAt: sess.ExpiresAt, Session: sess}, nil
}

// Logout destroys the session and the dataset it holds.
func (s *authService) Logout(_ context.Context, sess *session.Session) {
	s.sessions.Destroy(sess.ID)
	s.audit.Record(audit.ActionLogout, sess.Username, true, nil)
	s.logger.Info("User logged out successfully.", zap.String("username", sess.Username))
}
