package authcore

import "errors"

var (
	// ErrUnauthorized is the generic rejection for any request that could not be
	// authenticated. Decode failures, missing sessions, and clock-skew rejections
	// all collapse into it at the public boundary; the specific cause is available
	// to audit sinks only.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials is returned for every login failure that must not
	// reveal whether the identifier exists: unknown identifier, wrong password,
	// and empty password all map here.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountNotFound is returned by AccountStore implementations when no
	// account matches. It never escapes Login — the engine maps it to
	// ErrInvalidCredentials.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned by AccountStore.CreateAccount on a duplicate
	// identifier.
	ErrAccountExists = errors.New("account already exists")

	// ErrAccountDisabled rejects operations on a disabled account. Validate
	// surfaces it so callers can answer 403 rather than 401.
	ErrAccountDisabled = errors.New("account disabled")

	// ErrAccountLocked rejects operations on a locked account.
	ErrAccountLocked = errors.New("account locked")

	// ErrAccountUnverified rejects login for accounts still pending verification
	// when Security.RequireVerified is set.
	ErrAccountUnverified = errors.New("account unverified")

	// ErrLoginRateLimited is returned when the identifier or IP exceeded the
	// failed-login budget.
	ErrLoginRateLimited = errors.New("login rate limited")

	// ErrRefreshRateLimited is returned when a session exceeded the refresh
	// attempt budget.
	ErrRefreshRateLimited = errors.New("refresh rate limited")

	// ErrRefreshInvalid is returned for refresh tokens that fail structural
	// decoding.
	ErrRefreshInvalid = errors.New("invalid refresh token")

	// ErrRefreshExpired is returned when the refresh target session has passed
	// its absolute lifetime.
	ErrRefreshExpired = errors.New("refresh token expired")

	// ErrRefreshReuse is returned to the loser of a concurrent rotation race and
	// to any caller presenting a superseded refresh token. The session is
	// destroyed when this is observed: reuse means the token leaked.
	ErrRefreshReuse = errors.New("refresh token reuse detected")

	// ErrSessionNotFound is returned when the referenced session does not exist
	// or was revoked.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTokenInvalid is the codec-level rejection re-exported for callers that
	// inspect Validate causes.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrPermissionDenied is returned when the authenticated identity lacks a
	// required permission bit.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrPasswordPolicy rejects secrets that fail the minimum-length policy.
	ErrPasswordPolicy = errors.New("password policy violation")

	// ErrPasswordReuse rejects a password change to the current password.
	ErrPasswordReuse = errors.New("new password must be different from current password")

	// ErrResetInvalid is returned for unknown, expired, or already-consumed
	// password reset tokens.
	ErrResetInvalid = errors.New("password reset token invalid")

	// ErrResetDisabled is returned when the password reset subsystem is not
	// enabled in the configuration.
	ErrResetDisabled = errors.New("password reset disabled")

	// ErrAccountCreationDisabled is returned by CreateAccount when
	// Account.Enabled is false.
	ErrAccountCreationDisabled = errors.New("account creation disabled")

	// ErrRoleInvalid rejects account operations naming a role the role manager
	// does not know.
	ErrRoleInvalid = errors.New("role not registered")

	// ErrBackendUnavailable is the non-auth failure class: the account store or
	// Redis could not be reached. Distinct from every auth-specific error so
	// callers can answer 503 instead of 401.
	ErrBackendUnavailable = errors.New("auth backend unavailable")

	// ErrInvalidRouteMode is returned when a middleware route mode cannot be
	// resolved against the engine configuration.
	ErrInvalidRouteMode = errors.New("invalid route validation mode")

	// ErrEngineNotReady guards Engine methods called on a partially constructed
	// engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
