package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pride/internal/config"
	"pride/internal/crypto"
	"pride/internal/models"

	"go.uber.org/zap"
)

var (
	ErrStorageUnavailable = errors.New("credential storage unavailable")
	ErrInvalidUsername    = errors.New("username must be non-empty and contain no comma or newline")
	ErrEmptyPassword      = errors.New("password must not be empty")
	ErrInvalidHash        = errors.New("imported password hash is not usable")
)

// CredentialStore is an append-only username -> password hash mapping.
// Register and Verify report outcomes as booleans; an error means the input
// was invalid or the storage medium failed.
type CredentialStore interface {
	Register(ctx context.Context, username, password string) (bool, error)
	Verify(ctx context.Context, username, password string) (bool, error)
	Close() error
}

// CredentialImporter appends records whose password is already hashed.
type CredentialImporter interface {
	Import(ctx context.Context, cred models.Credential) (bool, error)
}

// ValidateUsername enforces the record constraints on usernames.
func ValidateUsername(username string) error {
	if username == "" || strings.ContainsAny(username, ",\r\n") {
		return ErrInvalidUsername
	}
	return nil
}

// OpenCredentialStore opens the backend selected in the configuration.
func OpenCredentialStore(cfg *config.Config, hasher crypto.PasswordHasher, logger *zap.Logger) (CredentialStore, error) {
	switch cfg.Credentials.Backend {
	case "file":
		return NewFileCredentialStore(cfg.Credentials.Path, hasher, logger)
	case "sqlite":
		db, err := NewSQLiteDB(cfg.Credentials.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		if err := MigrateDB(db, logger); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return NewSQLCredentialStore(db, hasher, logger), nil
	case "postgres":
		db, err := NewPostgresDB(cfg.Credentials.URL, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		if err := MigrateDB(db, logger); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return NewSQLCredentialStore(db, hasher, logger), nil
	default:
		return nil, fmt.Errorf("unknown credentials backend %q", cfg.Credentials.Backend)
	}
}
