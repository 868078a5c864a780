package authcore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateStrictSuccess(t *testing.T) {
	store := newMockAccountStore()
	engine, _ := newEngineWith(t, testConfig(), store)
	access, _ := loginForTokens(t, engine, store)

	res, err := engine.Validate(context.Background(), access, RouteStrict)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if res.UserID != "u1" || res.SessionID == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestValidateExpiredTokenIsUnauthorized(t *testing.T) {
	store := newMockAccountStore()
	engine, _ := newEngineWith(t, testConfig(), store)
	loginForTokens(t, engine, store)

	sess, err := engine.sessionStore.Get(context.Background(), firstSessionID(t, engine))
	if err != nil {
		t.Fatalf("session read failed: %v", err)
	}

	expired, err := engine.jwtManager.CreateAccessWithTTL(sess.UserID, sess.SessionID, sess.Role, nil, -time.Minute)
	if err != nil {
		t.Fatalf("token creation failed: %v", err)
	}

	// Expiry is an authentication failure, never a permission refusal.
	_, err = engine.Validate(context.Background(), expired, RouteStrict)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for expired token, got %v", err)
	}
	if errors.Is(err, ErrAccountDisabled) || errors.Is(err, ErrPermissionDenied) {
		t.Fatal("expired token must not map to a 403-class error")
	}
}

func TestValidateTamperedToken(t *testing.T) {
	store := newMockAccountStore()
	engine, _ := newEngineWith(t, testConfig(), store)
	access, _ := loginForTokens(t, engine, store)

	parts := strings.Split(access, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", access)
	}
	tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]

	if _, err := engine.Validate(context.Background(), tampered, RouteStrict); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestValidateStrictAfterLogout(t *testing.T) {
	store := newMockAccountStore()
	engine, _ := newEngineWith(t, testConfig(), store)
	access, _ := loginForTokens(t, engine, store)

	if err := engine.LogoutByAccessToken(context.Background(), access); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	if _, err := engine.Validate(context.Background(), access, RouteStrict); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestValidateJWTOnlyIgnoresSessionState(t *testing.T) {
	store := newMockAccountStore()
	engine, _ := newEngineWith(t, testConfig(), store)
	access, _ := loginForTokens(t, engine, store)

	if err := engine.LogoutByAccessToken(context.Background(), access); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	// Stateless mode trades revocation latency for zero Redis reads.
	res, err := engine.Validate(context.Background(), access, RouteJWTOnly)
	if err != nil {
		t.Fatalf("JWT-only validate failed: %v", err)
	}
	if res.UserID != "u1" {
		t.Fatalf("expected user u1, got %s", res.UserID)
	}
}

func TestValidateLiveStatusCheckDisabledAccount(t *testing.T) {
	cfg := testConfig()
	cfg.Security.LiveStatusCheck = true
	store := newMockAccountStore()
	engine, _ := newEngineWith(t, cfg, store)
	access, _ := loginForTokens(t, engine, store)

	if err := engine.DisableAccount(context.Background(), "u1"); err != nil {
		t.Fatalf("DisableAccount failed: %v", err)
	}

	// The token is still well-signed and unexpired; the account state is
	// what refuses it.
	_, err := engine.Validate(context.Background(), access, RouteStrict)
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestValidateLiveStatusCheckDeletedAccount(t *testing.T) {
	cfg := testConfig()
	cfg.Security.LiveStatusCheck = true
	store := newMockAccountStore()
	engine, _ := newEngineWith(t, cfg, store)
	access, _ := loginForTokens(t, engine, store)

	store.mu.Lock()
	delete(store.accounts, "u1")
	store.mu.Unlock()

	if _, err := engine.Validate(context.Background(), access, RouteStrict); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestValidateLiveStatusCheckBackendFailureFailsClosed(t *testing.T) {
	cfg := testConfig()
	cfg.Security.LiveStatusCheck = true
	store := newMockAccountStore()
	engine, _ := newEngineWith(t, cfg, store)
	access, _ := loginForTokens(t, engine, store)

	store.mu.Lock()
	store.idErr = errTestBackend
	store.mu.Unlock()

	if _, err := engine.Validate(context.Background(), access, RouteStrict); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected fail-closed ErrUnauthorized, got %v", err)
	}
}

func TestValidateIncludePermissionNames(t *testing.T) {
	cfg := testConfig()
	cfg.Result.IncludePermissionNames = true
	store := newMockAccountStore()
	engine, _ := newEngineWith(t, cfg, store)
	seedAccount(t, engine, store, "u1", "alice", "correct-horse-battery", "admin")

	access, _, err := engine.Login(context.Background(), "alice", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	res, err := engine.ValidateAccess(context.Background(), access)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(res.Permissions) != 3 {
		t.Fatalf("expected 3 permission names, got %v", res.Permissions)
	}
}

func TestValidateInvalidRouteMode(t *testing.T) {
	store := newMockAccountStore()
	engine, _ := newEngineWith(t, testConfig(), store)
	access, _ := loginForTokens(t, engine, store)

	if _, err := engine.Validate(context.Background(), access, RouteMode(99)); !errors.Is(err, ErrInvalidRouteMode) {
		t.Fatalf("expected ErrInvalidRouteMode, got %v", err)
	}
}

func firstSessionID(t *testing.T, engine *Engine) string {
	t.Helper()

	ids, err := engine.sessionStore.ActiveSessionIDs(context.Background(), "u1")
	if err != nil || len(ids) == 0 {
		t.Fatalf("no active sessions: ids=%v err=%v", ids, err)
	}
	return ids[0]
}
