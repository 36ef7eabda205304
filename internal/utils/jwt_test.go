package utils

import (
	"errors"
	"testing"
	"time"
)

func newTestManager() *TokenManager {
	return NewTokenManager("test-secret-key-for-testing", 24*time.Hour, time.Hour)
}

func TestGenerateAccessToken(t *testing.T) {
	m := newTestManager()
	token, expiresAt, err := m.GenerateAccessToken("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	if token == "" {
		t.Error("GenerateAccessToken() returned empty token")
	}
	if len(token) < 50 {
		t.Errorf("token seems too short: %d chars", len(token))
	}

	diff := time.Until(expiresAt) - 24*time.Hour
	if diff < -time.Minute || diff > time.Minute {
		t.Errorf("expiration time is off by more than 1 minute: %v", diff)
	}
}

func TestParse(t *testing.T) {
	m := newTestManager()
	token, _, _ := m.GenerateAccessToken("user-42", "dev@example.com")

	claims, err := m.Parse(token, PurposeAccess)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if claims.UserID != "user-42" {
		t.Errorf("UserID = %q, expected %q", claims.UserID, "user-42")
	}
	if claims.Email != "dev@example.com" {
		t.Errorf("Email = %q, expected %q", claims.Email, "dev@example.com")
	}
}

func TestParse_InvalidToken(t *testing.T) {
	m := newTestManager()
	invalidTokens := []string{
		"",
		"invalid",
		"not.a.token",
		"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature",
	}

	for _, token := range invalidTokens {
		if _, err := m.Parse(token, PurposeAccess); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("Parse(%q) error = %v, expected ErrTokenInvalid", token, err)
		}
	}
}

func TestParse_WrongSecret(t *testing.T) {
	token, _, _ := NewTokenManager("original-secret", time.Hour, time.Hour).GenerateAccessToken("u", "u@example.com")

	if _, err := NewTokenManager("different-secret", time.Hour, time.Hour).Parse(token, PurposeAccess); err == nil {
		t.Error("Parse should fail with wrong secret")
	}
}

func TestParse_Expired(t *testing.T) {
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := newTestManager().WithClock(func() time.Time { return issued })
	token, _, _ := m.GenerateAccessToken("u", "u@example.com")

	later := m.WithClock(func() time.Time { return issued.Add(25 * time.Hour) })
	if _, err := later.Parse(token, PurposeAccess); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParse_WrongPurpose(t *testing.T) {
	m := newTestManager()
	reset, err := m.GenerateResetToken("u", "u@example.com", "$2a$hash")
	if err != nil {
		t.Fatalf("GenerateResetToken() error = %v", err)
	}

	if _, err := m.Parse(reset, PurposeAccess); err == nil {
		t.Error("reset token must not authenticate requests")
	}
	claims, err := m.Parse(reset, PurposeReset)
	if err != nil {
		t.Fatalf("Parse(reset) error = %v", err)
	}
	if claims.Fingerprint != PasswordFingerprint("$2a$hash") {
		t.Error("fingerprint should match the password hash")
	}
}
