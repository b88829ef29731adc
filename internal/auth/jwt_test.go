package auth

import (
	"testing"
	"time"
)

func TestJWTManager_GenerateAndVerify(t *testing.T) {
	m := NewJWTManager("test-secret", 5*time.Minute)

	token, expiresAt, err := m.GenerateToken("665f1f77bcf86cd799439011", "doctor")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}

	claims, err := m.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if claims.UserID != "665f1f77bcf86cd799439011" {
		t.Fatalf("claims.UserID mismatch: got %s", claims.UserID)
	}
	if claims.Role != "doctor" {
		t.Fatalf("claims.Role mismatch: got %s", claims.Role)
	}
}

func TestJWTManager_RejectsWrongSecret(t *testing.T) {
	issuer := NewJWTManager("secret-one", 5*time.Minute)
	verifier := NewJWTManager("secret-two", 5*time.Minute)

	token, _, err := issuer.GenerateToken("665f1f77bcf86cd799439011", "")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := verifier.VerifyToken(token); err == nil {
		t.Fatal("VerifyToken succeeded with the wrong secret")
	}
}

func TestJWTManager_RejectsExpiredToken(t *testing.T) {
	m := NewJWTManager("test-secret", -time.Minute)

	token, _, err := m.GenerateToken("665f1f77bcf86cd799439011", "")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := m.VerifyToken(token); err == nil {
		t.Fatal("VerifyToken accepted an expired token")
	}
}

func TestJWTManager_RejectsGarbage(t *testing.T) {
	m := NewJWTManager("test-secret", 5*time.Minute)

	if _, err := m.VerifyToken("not.a.token"); err == nil {
		t.Fatal("VerifyToken accepted a malformed token")
	}
}
