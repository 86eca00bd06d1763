package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parleychat/parley-server/internal/store/sqlite"
)

func newTestAuthService(t *testing.T) *Service {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	return NewService(st, jwtConfig)
}

func TestSignup_RejectsInvalidUsername(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "ab", "Alice", "Smith", "password123"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}

	// Validated after trimming whitespace.
	if _, _, err := svc.Signup(ctx, " ab ", "Alice", "Smith", "password123"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
}

func TestSignup_RejectsInvalidPassword(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "alice", "Alice", "Smith", "12345"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestSignup_RejectsMissingNames(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "alice", "", "Smith", "password123"); !errors.Is(err, ErrMissingName) {
		t.Fatalf("expected ErrMissingName, got %v", err)
	}
	if _, _, err := svc.Signup(ctx, "alice", "Alice", "   ", "password123"); !errors.Is(err, ErrMissingName) {
		t.Fatalf("expected ErrMissingName, got %v", err)
	}
}

func TestSignup_TrimsUsernameAndCreatesUser(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	token, user, err := svc.Signup(ctx, " alice ", "Alice", "Smith", "password123")
	if err != nil {
		t.Fatalf("expected signup success, got %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("username = %q, want trimmed", user.Username)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Username != "alice" || claims.UserID != user.ID {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestSignup_RejectsDuplicateUsername(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "alice", "Alice", "Smith", "password123"); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	if _, _, err := svc.Signup(ctx, "alice", "Other", "Person", "password456"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestLogin_RoundTrip(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "alice", "Alice", "Smith", "password123"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	token, user, err := svc.Login(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.Firstname != "Alice" || user.Lastname != "Smith" {
		t.Fatalf("unexpected profile: %+v", user)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Username != "alice" {
		t.Fatalf("claims.Username = %q", claims.Username)
	}
}

func TestLogin_RejectsBadCredentials(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "alice", "Alice", "Smith", "password123"); err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, _, err := svc.Login(ctx, "alice", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestValidateToken_RejectsTampered(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	token, _, err := svc.Signup(ctx, "alice", "Alice", "Smith", "password123")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, err := svc.ValidateToken(token + "x"); err == nil {
		t.Fatal("expected tampered token to be rejected")
	}

	other := &JWTConfig{Secret: []byte("different-secret"), Issuer: "test", Audience: "test", TTL: time.Hour}
	foreign, err := GenerateToken(other, 1, "alice")
	if err != nil {
		t.Fatalf("generate foreign token: %v", err)
	}
	if _, err := svc.ValidateToken(foreign); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}
