package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pride/internal/crypto"
	"pride/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// SQLCredentialStore is the indexed credential backend (SQLite or
// PostgreSQL). Uniqueness is enforced by the primary key.
type SQLCredentialStore struct {
	db     *sqlx.DB
	hasher crypto.PasswordHasher
	logger *zap.Logger
}

func NewSQLCredentialStore(db *sqlx.DB, hasher crypto.PasswordHasher, logger *zap.Logger) *SQLCredentialStore {
	return &SQLCredentialStore{db: db, hasher: hasher, logger: logger}
}

func (r *SQLCredentialStore) Register(ctx context.Context, username, password string) (bool, error) {
	if err := ValidateUsername(username); err != nil {
		return false, err
	}
	if password == "" {
		return false, ErrEmptyPassword
	}

	exists, err := r.exists(ctx, username)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	hash, err := r.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}

	return r.insert(ctx, username, hash)
}

func (r *SQLCredentialStore) Import(ctx context.Context, cred models.Credential) (bool, error) {
	if err := ValidateUsername(cred.Username); err != nil {
		return false, err
	}
	if cred.PasswordHash == "" {
		return false, ErrEmptyPassword
	}
	if err := crypto.ValidateHash(cred.PasswordHash); err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidHash, err)
	}
	return r.insert(ctx, cred.Username, cred.PasswordHash)
}

func (r *SQLCredentialStore) insert(ctx context.Context, username, hash string) (bool, error) {
	query := r.db.Rebind(`INSERT INTO credentials (username, password_hash) VALUES (?, ?) ON CONFLICT (username) DO NOTHING`)

	result, err := r.db.ExecContext(ctx, query, username, hash)
	if err != nil {
		r.logger.Error("Failed to insert credential", zap.String("username", username), zap.Error(err))
		return false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return rowsAffected == 1, nil
}

func (r *SQLCredentialStore) exists(ctx context.Context, username string) (bool, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM credentials WHERE username = ?`)
	if err := r.db.GetContext(ctx, &count, query, username); err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return count > 0, nil
}

func (r *SQLCredentialStore) Verify(ctx context.Context, username, password string) (bool, error) {
	var cred models.Credential
	query := r.db.Rebind(`SELECT username, password_hash FROM credentials WHERE username = ?`)

	err := r.db.GetContext(ctx, &cred, query, username)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		r.logger.Error("Failed to get credential by username", zap.String("username", username), zap.Error(err))
		return false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	ok, err := r.hasher.Compare(cred.PasswordHash, password)
	if err != nil {
		r.logger.Error("Stored password hash is unreadable", zap.String("username", username), zap.Error(err))
		return false, nil
	}
	return ok, nil
}

func (r *SQLCredentialStore) Close() error {
	return r.db.Close()
}
