package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential is one record of the credential store.
type Credential struct {
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"password_hash"`
	CreatedAt    time.Time `db:"created_at" json:"created_at,omitempty"`
}

// Claims defines the structure of the JWT claims. The registered ID claim
// carries the session id.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}
