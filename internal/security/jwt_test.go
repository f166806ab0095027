package security_test

import (
	"errors"
	"testing"
	"time"

	"github.com/savitara/auth-service/internal/security"
)

const testSecret = "test-secret"

func TestAccessRoundTrip(t *testing.T) {
	tok, err := security.MakeAccess(testSecret, "u1", "grihasta", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	c, err := security.Parse(testSecret, tok, security.KindAccess)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Subject != "u1" || c.Role != "grihasta" || c.Kind != security.KindAccess {
		t.Fatalf("claims mismatch: %#v", c)
	}
}

func TestRefreshCarriesNoRole(t *testing.T) {
	tok, err := security.MakeRefresh(testSecret, "u1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	c, err := security.Parse(testSecret, tok, security.KindRefresh)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Role != "" {
		t.Fatalf("refresh token must not embed a role, got %q", c.Role)
	}
	if c.Subject != "u1" {
		t.Fatalf("subject mismatch: %q", c.Subject)
	}
}

func TestKindMismatchRejected(t *testing.T) {
	access, _ := security.MakeAccess(testSecret, "u1", "acharya", time.Minute)
	refresh, _ := security.MakeRefresh(testSecret, "u1", time.Minute)

	if _, err := security.Parse(testSecret, access, security.KindRefresh); !errors.Is(err, security.ErrWrongKind) {
		t.Fatalf("access-as-refresh: want ErrWrongKind, got %v", err)
	}
	if _, err := security.Parse(testSecret, refresh, security.KindAccess); !errors.Is(err, security.ErrWrongKind) {
		t.Fatalf("refresh-as-access: want ErrWrongKind, got %v", err)
	}
}

func TestExpiredRejected(t *testing.T) {
	tok, _ := security.MakeAccess(testSecret, "u1", "grihasta", -time.Minute)
	if _, err := security.Parse(testSecret, tok, security.KindAccess); !errors.Is(err, security.ErrExpired) {
		t.Fatalf("want ErrExpired, got %v", err)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	tok, _ := security.MakeAccess(testSecret, "u1", "grihasta", time.Minute)
	if _, err := security.Parse("other-secret", tok, security.KindAccess); !errors.Is(err, security.ErrInvalid) {
		t.Fatalf("want ErrInvalid, got %v", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	h, err := security.HashPassword("Secure123!")
	if err != nil {
		t.Fatal(err)
	}
	if !security.CheckPassword(h, "Secure123!") {
		t.Fatal("correct password rejected")
	}
	if security.CheckPassword(h, "wrong") {
		t.Fatal("wrong password accepted")
	}
}
