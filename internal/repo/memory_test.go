package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/savitara/auth-service/internal/domain"
	"github.com/savitara/auth-service/internal/repo"
)

func TestMemory_UniqueEmail(t *testing.T) {
	m := repo.NewMemory()
	ctx := context.Background()

	u1 := &domain.User{Email: "a@x.com", Role: domain.RoleGrihasta, Status: domain.StatusPending}
	if err := m.CreateUser(ctx, u1); err != nil {
		t.Fatal(err)
	}
	if u1.ID.IsZero() {
		t.Fatal("insert did not assign an id")
	}

	u2 := &domain.User{Email: "a@x.com", Role: domain.RoleAcharya}
	if err := m.CreateUser(ctx, u2); err != repo.ErrDuplicateEmail {
		t.Fatalf("want ErrDuplicateEmail, got %v", err)
	}
	if n, _ := m.CountUsers(ctx); n != 1 {
		t.Fatalf("want 1 user, have %d", n)
	}
}

func TestMemory_FindSemantics(t *testing.T) {
	m := repo.NewMemory()
	ctx := context.Background()

	// absence is (nil, nil), not an error
	if u, err := m.FindUserByEmail(ctx, "ghost@x.com"); u != nil || err != nil {
		t.Fatalf("want nil,nil got %v,%v", u, err)
	}
	if u, err := m.FindUserByID(ctx, "64f000000000000000000000"); u != nil || err != nil {
		t.Fatalf("want nil,nil got %v,%v", u, err)
	}

	u := &domain.User{Email: "a@x.com", Role: domain.RoleGrihasta}
	_ = m.CreateUser(ctx, u)

	got, err := m.FindUserByID(ctx, u.ID.Hex())
	if err != nil || got == nil || got.Email != "a@x.com" {
		t.Fatalf("find by id: %v, %v", got, err)
	}

	// returned value is a copy, mutating it must not leak into the store
	got.Email = "mutated@x.com"
	again, _ := m.FindUserByEmail(ctx, "a@x.com")
	if again == nil || again.Email != "a@x.com" {
		t.Fatal("store leaked internal state")
	}
}

func TestMemory_ProfileFlag(t *testing.T) {
	m := repo.NewMemory()
	ctx := context.Background()

	u := &domain.User{Email: "a@x.com", Role: domain.RoleAcharya}
	_ = m.CreateUser(ctx, u)

	if has, _ := m.HasProfile(ctx, u.ID.Hex(), domain.RoleAcharya); has {
		t.Fatal("profile reported before creation")
	}
	if err := m.CreateProfile(ctx, u.ID.Hex(), domain.RoleAcharya); err != nil {
		t.Fatal(err)
	}
	if has, _ := m.HasProfile(ctx, u.ID.Hex(), domain.RoleAcharya); !has {
		t.Fatal("profile not reported after creation")
	}
	// the other role's collection stays empty
	if has, _ := m.HasProfile(ctx, u.ID.Hex(), domain.RoleGrihasta); has {
		t.Fatal("profile leaked across role collections")
	}
}

func TestMemory_LastLogin(t *testing.T) {
	m := repo.NewMemory()
	ctx := context.Background()

	u := &domain.User{Email: "a@x.com", Role: domain.RoleGrihasta}
	_ = m.CreateUser(ctx, u)

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := m.UpdateLastLogin(ctx, u.ID.Hex(), at); err != nil {
		t.Fatal(err)
	}
	got, _ := m.FindUserByID(ctx, u.ID.Hex())
	if got.LastLogin == nil || !got.LastLogin.Equal(at) {
		t.Fatalf("last_login not recorded: %v", got.LastLogin)
	}
}
