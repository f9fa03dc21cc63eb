package account

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func legacyHash(password string) string {
	sum := sha256.Sum256([]byte(password + legacySalt))
	return hex.EncodeToString(sum[:])
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Fatalf("hash=%q, want bcrypt prefix", hash)
	}
	if !CheckPasswordHash("correct horse battery", hash) {
		t.Fatalf("correct password rejected")
	}
	if CheckPasswordHash("wrong", hash) {
		t.Fatalf("wrong password accepted")
	}
}

func TestLegacyHashDetectionAndVerify(t *testing.T) {
	lh := legacyHash("oldpassword")
	if !IsLegacyHash(lh) {
		t.Fatalf("sha256 hash not detected as legacy")
	}
	bh, _ := HashPassword("x-long-enough")
	if IsLegacyHash(bh) {
		t.Fatalf("bcrypt hash detected as legacy")
	}

	if !CheckLegacyHash("oldpassword", lh) {
		t.Fatalf("correct legacy password rejected")
	}
	if CheckLegacyHash("other", lh) {
		t.Fatalf("wrong legacy password accepted")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); err == nil {
		t.Fatalf("5-char password accepted")
	}
	if err := ValidatePassword("longenough"); err != nil {
		t.Fatalf("valid password rejected: %v", err)
	}
}
