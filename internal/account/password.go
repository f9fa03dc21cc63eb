// Package account implements signup, login, and profile lookup, and the
// identity linker that ties anonymous device fingerprints to durable
// email-addressed accounts.
package account

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	// Higher values are more secure but slower
	BcryptCost = 12

	// MinPasswordLength is the minimum required password length
	MinPasswordLength = 6

	// legacySalt is the fixed salt of the pre-bcrypt hash scheme. Hashes in
	// this scheme are verified once on login and rewritten as bcrypt.
	legacySalt = "cr_salt_2026"
)

// HashPassword generates a bcrypt hash from a plain text password
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckPasswordHash compares a plain text password with a bcrypt hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// IsLegacyHash reports whether a stored hash predates the bcrypt scheme.
func IsLegacyHash(hash string) bool {
	return !strings.HasPrefix(hash, "$2")
}

// CheckLegacyHash compares a plain text password with a salted SHA-256 hash
// from the legacy scheme.
func CheckLegacyHash(password, hash string) bool {
	sum := sha256.Sum256([]byte(password + legacySalt))
	computed := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// ValidatePassword checks if a password meets the minimum requirements
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}
	return nil
}
