package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInviteInvalid = errors.New("invite token is invalid")
	ErrInviteExpired = errors.New("invite token has expired")
)

const inviteTokenBytes = 24

// NewInviteToken returns a random URL-safe token and its bcrypt hash.
// Only the hash is stored; the token is shown once to the inviter.
func NewInviteToken() (token, hash string, err error) {
	buf := make([]byte, inviteTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate invite token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(buf)

	hashed, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash invite token: %w", err)
	}
	return token, string(hashed), nil
}

// CheckInviteToken verifies token against the stored hash and expiry (Unix seconds).
func CheckInviteToken(hash string, expiresAt int64, token string, now time.Time) error {
	if hash == "" || token == "" {
		return ErrInviteInvalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
		return ErrInviteInvalid
	}
	if expiresAt != 0 && now.Unix() > expiresAt {
		return ErrInviteExpired
	}
	return nil
}
