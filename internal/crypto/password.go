package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidHashFormat = errors.New("invalid password hash format")
	ErrUnsupportedHash   = errors.New("unsupported password hash algorithm")
)

// Argon2 parameters for newly created hashes.
const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
	saltLen             = 16

	// stored hashes asking for more memory than this (KiB) are refused
	maxArgonMemory uint32 = 256 * 1024
)

// PasswordHasher turns plaintext passwords into salted one-way hashes and
// checks plaintext against a stored hash.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(encodedHash, password string) (bool, error)
}

// Argon2Hasher produces $argon2id$v=19$m=65536,t=1,p=4$SALT$HASH strings.
// Compare also accepts bcrypt hashes so accounts imported from the legacy
// flat file keep working.
type Argon2Hasher struct{}

// NewPasswordHasher returns the default hasher.
func NewPasswordHasher() PasswordHasher {
	return Argon2Hasher{}
}

// Hash uses Argon2id with a fresh random salt.
func (Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads, encodedSalt, encodedHash), nil
}

// Compare re-hashes password with the parameters and salt stored in
// encodedHash. A mismatch is (false, nil); a hash that cannot be parsed is an
// error.
func (Argon2Hasher) Compare(encodedHash, password string) (bool, error) {
	switch {
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return compareArgon2(encodedHash, password)
	case IsBcryptHash(encodedHash):
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrInvalidHashFormat, err)
		}
		return true, nil
	default:
		return false, ErrUnsupportedHash
	}
}

// ValidateHash checks that h is a hash Compare can verify: a well-formed
// $argon2id$ string or a bcrypt hash.
func ValidateHash(h string) error {
	switch {
	case strings.HasPrefix(h, "$argon2id$"):
		_, err := parseArgon2(h)
		return err
	case IsBcryptHash(h):
		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidHashFormat, err)
		}
		return nil
	default:
		return ErrUnsupportedHash
	}
}

// IsBcryptHash reports whether h looks like a bcrypt hash ($2a$, $2b$, $2y$).
func IsBcryptHash(h string) bool {
	return strings.HasPrefix(h, "$2a$") || strings.HasPrefix(h, "$2b$") || strings.HasPrefix(h, "$2y$")
}

type argon2Params struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	hash    []byte
}

func compareArgon2(encodedHash, password string) (bool, error) {
	p, err := parseArgon2(encodedHash)
	if err != nil {
		return false, err
	}

	comparison := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.hash)))

	return subtle.ConstantTimeCompare(comparison, p.hash) == 1, nil
}

func parseArgon2(encodedHash string) (*argon2Params, error) {
	// ["", "argon2id", "v=19", "m=65536,t=1,p=4", salt, hash]
	sections := strings.Split(encodedHash, "$")
	if len(sections) != 6 {
		return nil, ErrInvalidHashFormat
	}

	var version int
	if _, err := fmt.Sscanf(sections[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHashFormat, err)
	}
	if version != argon2.Version {
		return nil, ErrUnsupportedHash
	}

	var p argon2Params
	if _, err := fmt.Sscanf(sections[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHashFormat, err)
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(sections[4]); err != nil {
		return nil, fmt.Errorf("%w: salt: %v", ErrInvalidHashFormat, err)
	}
	if p.hash, err = base64.RawStdEncoding.DecodeString(sections[5]); err != nil {
		return nil, fmt.Errorf("%w: hash: %v", ErrInvalidHashFormat, err)
	}

	if p.time == 0 || p.threads == 0 || p.memory == 0 || len(p.salt) == 0 || len(p.hash) == 0 {
		return nil, fmt.Errorf("%w: empty argon2 parameter, salt or digest", ErrInvalidHashFormat)
	}
	if p.memory > maxArgonMemory {
		return nil, fmt.Errorf("%w: argon2 memory %d KiB exceeds %d", ErrInvalidHashFormat, p.memory, maxArgonMemory)
	}
	return &p, nil
}
