package user

import (
	"context"
	"testing"

	"russet/internal/domain/entity"
	"russet/internal/infra/persistence/memory"
)

func testParams() HashParams {
	// real parameters are far too slow for a test suite; this keeps the
	// Argon2id code path exercised without the cost.
	return HashParams{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}
}

func TestCreateAndVerifyPassword(t *testing.T) {
	store := memory.New()
	svc := New(store.Users(), []byte("test-pepper"), testParams())
	ctx := context.Background()

	u, err := svc.Create(ctx, "alice", "correct horse battery staple", entity.UserTypeMember)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := svc.VerifyPassword("correct horse battery staple", u.PasswordHash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Error("expected password to verify")
	}

	ok, err = svc.VerifyPassword("wrong password", u.PasswordHash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if ok {
		t.Error("expected wrong password to fail verification")
	}
}

func TestVerifyPassword_DifferentPepperFails(t *testing.T) {
	store := memory.New()
	svc := New(store.Users(), []byte("pepper-a"), testParams())
	ctx := context.Background()

	u, err := svc.Create(ctx, "bob", "hunter2", entity.UserTypeMember)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	other := New(store.Users(), []byte("pepper-b"), testParams())
	ok, err := other.VerifyPassword("hunter2", u.PasswordHash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if ok {
		t.Error("expected verification to fail under a different pepper")
	}
}

func TestAuthenticate(t *testing.T) {
	store := memory.New()
	svc := New(store.Users(), []byte("test-pepper"), testParams())
	ctx := context.Background()

	if _, err := svc.Create(ctx, "carol", "correct horse battery staple", entity.UserTypeMember); err != nil {
		t.Fatalf("Create: %v", err)
	}

	u, ok, err := svc.Authenticate(ctx, "carol", "correct horse battery staple")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !ok {
		t.Error("expected correct password to authenticate")
	}
	if u.Name != "carol" {
		t.Errorf("expected carol, got %q", u.Name)
	}

	_, ok, err = svc.Authenticate(ctx, "carol", "wrong password")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if ok {
		t.Error("expected wrong password to fail authentication")
	}
}

func TestAuthenticate_UnknownUserTakesDummyPath(t *testing.T) {
	store := memory.New()
	svc := New(store.Users(), []byte("test-pepper"), testParams())
	ctx := context.Background()

	u, ok, err := svc.Authenticate(ctx, "nobody", "whatever")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if ok {
		t.Error("expected authentication to fail for an unknown user")
	}
	if u != (entity.User{}) {
		t.Errorf("expected zero User for unknown name, got %+v", u)
	}
}

func TestHasSysop(t *testing.T) {
	store := memory.New()
	svc := New(store.Users(), []byte("pepper"), testParams())
	ctx := context.Background()

	has, err := svc.HasSysop(ctx)
	if err != nil {
		t.Fatalf("HasSysop: %v", err)
	}
	if has {
		t.Error("expected no sysop initially")
	}

	if _, err := svc.Create(ctx, "root", "p4ssw0rd!!", entity.UserTypeSysop); err != nil {
		t.Fatalf("Create: %v", err)
	}

	has, err = svc.HasSysop(ctx)
	if err != nil {
		t.Fatalf("HasSysop: %v", err)
	}
	if !has {
		t.Error("expected a sysop to exist after creating one")
	}
}
