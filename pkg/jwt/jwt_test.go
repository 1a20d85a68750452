package jwt

import (
	"testing"
	"time"
)

func newTestManager() *Manager {
	return NewManager("test-secret-key-for-unit-testing-2026", 15*time.Minute)
}

func TestGenerateAndParseToken(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateToken("account-1")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := m.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}

	if claims.Subject != "account-1" {
		t.Errorf("Subject = %q, want account-1", claims.Subject)
	}
	if claims.TokenType != "access" {
		t.Errorf("TokenType = %q, want access", claims.TokenType)
	}
	if claims.Issuer != "shiftscheduler" {
		t.Errorf("Issuer = %q, want shiftscheduler", claims.Issuer)
	}
	if claims.ID == "" {
		t.Error("JTI must not be empty")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := newTestManager().GenerateToken("account-1")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	other := NewManager("a-completely-different-secret-value", 15*time.Minute)
	if _, err := other.ParseToken(token); err != ErrTokenInvalid {
		t.Fatalf("ParseToken error = %v, want ErrTokenInvalid", err)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	m := NewManager("test-secret-key-for-unit-testing-2026", -1*time.Minute)
	token, err := m.GenerateToken("account-1")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := m.ParseToken(token); err != ErrTokenExpired {
		t.Fatalf("ParseToken error = %v, want ErrTokenExpired", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := newTestManager().ParseToken("not-a-token"); err != ErrTokenInvalid {
		t.Fatalf("ParseToken error = %v, want ErrTokenInvalid", err)
	}
}
