package share

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var secret = []byte("test-secret")

func TestIssueAndParseToken(t *testing.T) {
	token, err := IssueToken(secret, "doc_1", "user_1", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	claims, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.DocumentID != "doc_1" {
		t.Fatalf("document id = %q", claims.DocumentID)
	}
	if claims.IssuedBy != "user_1" {
		t.Fatalf("issued by = %q", claims.IssuedBy)
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	token, err := IssueToken(secret, "doc_1", "user_1", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	tampered := strings.Replace(token, ".", "x.", 1)
	if _, err := ParseToken(secret, tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	if _, err := ParseToken([]byte("other-secret"), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, err := IssueToken(secret, "doc_1", "user_1", -time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := ParseToken(secret, token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, token := range []string{"", "abc", "a.b.c", "!!!.???"} {
		if _, err := ParseToken(secret, token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if err := CheckPassword(hash, "s3cret"); err != nil {
		t.Fatalf("check password: %v", err)
	}
	if err := CheckPassword(hash, "wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
}

func TestCheckPasswordUnprotectedLink(t *testing.T) {
	if err := CheckPassword("", "anything"); err != nil {
		t.Fatalf("unprotected link should accept any password, got %v", err)
	}
}

func TestHashPasswordRejectsShort(t *testing.T) {
	if _, err := HashPassword("ab"); err == nil {
		t.Fatal("expected error for short password")
	}
}
