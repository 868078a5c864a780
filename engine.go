package authcore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Afolstee/authcore/internal"
	"github.com/Afolstee/authcore/internal/audit"
	"github.com/Afolstee/authcore/internal/rate"
	"github.com/Afolstee/authcore/jwt"
	"github.com/Afolstee/authcore/password"
	"github.com/Afolstee/authcore/permission"
	"github.com/Afolstee/authcore/session"
)

// Engine is the authentication core. Construct it with [Builder]; once
// built it is immutable and safe for concurrent use.
type Engine struct {
	config       Config
	registry     *permission.Registry
	roleManager  *permission.RoleManager
	sessionStore *session.Store
	rateLimiter  *rate.Limiter
	resetStore   *passwordResetStore
	audit        *audit.Dispatcher
	metrics      *Metrics
	hasher       *password.Hasher
	jwtManager   *jwt.Manager
	accounts     AccountStore

	// decoyHash is verified against when the account lookup misses, so a
	// login attempt costs one argon2id verification whether or not the
	// identifier exists.
	decoyHash string
}

// Close flushes and stops the audit dispatcher. The engine must not be
// used after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

/*
====================================
ACCOUNT STORE ACCESS
*/

// getAccountByIdentifier wraps the store lookup with a single retry. The
// lookup is idempotent, so one transient failure is retried before the
// whole call fails as backend unavailability.
func (e *Engine) getAccountByIdentifier(ctx context.Context, identifier string) (AccountRecord, error) {
	rec, err := e.accounts.GetAccountByIdentifier(ctx, identifier)
	if err == nil || errors.Is(err, ErrAccountNotFound) || ctx.Err() != nil {
		return rec, err
	}

	e.metricInc(MetricBackendRetry)
	rec, err = e.accounts.GetAccountByIdentifier(ctx, identifier)
	if err == nil || errors.Is(err, ErrAccountNotFound) {
		return rec, err
	}
	return AccountRecord{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

func (e *Engine) getAccountByID(ctx context.Context, userID string) (AccountRecord, error) {
	rec, err := e.accounts.GetAccountByID(ctx, userID)
	if err == nil || errors.Is(err, ErrAccountNotFound) || ctx.Err() != nil {
		return rec, err
	}

	e.metricInc(MetricBackendRetry)
	rec, err = e.accounts.GetAccountByID(ctx, userID)
	if err == nil || errors.Is(err, ErrAccountNotFound) {
		return rec, err
	}
	return AccountRecord{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}

func accountStatusToError(status AccountStatus) error {
	switch status {
	case AccountDisabled:
		return ErrAccountDisabled
	case AccountLocked:
		return ErrAccountLocked
	default:
		return nil
	}
}

/*
====================================
LOGIN
*/

// Login verifies credentials and, on success, creates a session and
// returns an access+refresh token pair. Unknown identifiers and wrong
// passwords are indistinguishable to the caller: both cost one password
// verification and both return [ErrInvalidCredentials].
func (e *Engine) Login(ctx context.Context, identifier, secret string) (string, string, error) {
	if e == nil || e.accounts == nil || e.hasher == nil {
		return "", "", ErrEngineNotReady
	}

	ip := clientIPFromContext(ctx)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckLogin(ctx, identifier, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricLoginRateLimited)
				e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", ErrLoginRateLimited, func() map[string]string {
					return map[string]string{"identifier": identifier}
				})
				e.emitRateLimit(ctx, "login", func() map[string]string {
					return map[string]string{"identifier": identifier}
				})
				return "", "", ErrLoginRateLimited
			}
			return "", "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	if identifier == "" || secret == "" {
		return "", "", e.failLogin(ctx, identifier, ip, "", "empty_input")
	}

	rec, err := e.getAccountByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// Burn a verification against the decoy hash so a miss takes
			// as long as a mismatch.
			_, _ = e.hasher.Verify(secret, e.decoyHash)
			return "", "", e.failLogin(ctx, identifier, ip, "", "account_not_found")
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", err, func() map[string]string {
			return map[string]string{"identifier": identifier, "reason": "store_unavailable"}
		})
		return "", "", err
	}

	ok, err := e.hasher.Verify(secret, rec.PasswordHash)
	if err != nil || !ok {
		return "", "", e.failLogin(ctx, identifier, ip, rec.UserID, "password_mismatch")
	}

	if statusErr := accountStatusToError(rec.Status); statusErr != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, rec.UserID, "", statusErr, func() map[string]string {
			return map[string]string{"identifier": identifier, "reason": "account_status"}
		})
		return "", "", statusErr
	}
	if e.config.Security.RequireVerified && rec.Status == AccountPendingVerification {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, rec.UserID, "", ErrAccountUnverified, func() map[string]string {
			return map[string]string{"identifier": identifier, "reason": "pending_verification"}
		})
		return "", "", ErrAccountUnverified
	}

	if e.config.Password.UpgradeOnLogin {
		if needsUpgrade, err := e.hasher.NeedsUpgrade(rec.PasswordHash); err == nil && needsUpgrade {
			if upgradedHash, err := e.hasher.Hash(secret); err == nil {
				if err := e.accounts.UpdatePasswordHash(ctx, rec.UserID, upgradedHash); err != nil {
					log.Print("authcore: password hash upgrade update failed")
				}
			} else {
				log.Print("authcore: password hash upgrade generation failed")
			}
		}
	}
	secret = ""

	if e.rateLimiter != nil {
		// Limiter reset is best-effort; a failure must not block login.
		if err := e.rateLimiter.ResetLogin(ctx, identifier, ip); err != nil {
			log.Print("authcore: login limiter reset failed")
		}
	}

	access, refresh, sessionID, err := e.issueSessionTokens(ctx, rec)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, rec.UserID, "", err, func() map[string]string {
			return map[string]string{"identifier": identifier, "reason": "session_creation"}
		})
		return "", "", err
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventLoginSuccess, true, rec.UserID, sessionID, nil, nil)

	return access, refresh, nil
}

// failLogin records a failed attempt, applies the auto-lockout threshold,
// and returns the unified credentials error (or the rate-limit error when
// this attempt crossed the budget).
func (e *Engine) failLogin(ctx context.Context, identifier, ip, userID, reason string) error {
	if e.rateLimiter != nil {
		count, err := e.rateLimiter.IncrementLogin(ctx, identifier, ip)

		threshold := e.config.Security.AutoLockoutThreshold
		if threshold > 0 && userID != "" && count >= int64(threshold) {
			e.autoLockAccount(ctx, userID, identifier)
		}

		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, userID, "", ErrLoginRateLimited, func() map[string]string {
				return map[string]string{"identifier": identifier}
			})
			e.emitRateLimit(ctx, "login", func() map[string]string {
				return map[string]string{"identifier": identifier}
			})
			return ErrLoginRateLimited
		}
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"identifier": identifier, "reason": reason}
	})
	return ErrInvalidCredentials
}

func (e *Engine) autoLockAccount(ctx context.Context, userID, identifier string) {
	if err := e.accounts.UpdateAccountStatus(ctx, userID, AccountLocked); err != nil {
		log.Print("authcore: auto-lockout status update failed")
		return
	}
	if err := e.sessionStore.DeleteAllForUser(ctx, userID); err != nil {
		log.Print("authcore: auto-lockout session invalidation failed")
	}
	e.metricInc(MetricAutoLockout)
	e.metricInc(MetricAccountLocked)
	e.emitAudit(ctx, auditEventAccountAutoLocked, true, userID, "", nil, func() map[string]string {
		return map[string]string{"identifier": identifier}
	})
}

/*
====================================
REFRESH
*/

// Refresh rotates a refresh token and returns a fresh access+refresh pair.
// Presenting an already-rotated token destroys the session and returns
// [ErrRefreshReuse]; under concurrent calls exactly one caller wins.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	if e == nil || e.sessionStore == nil {
		return "", "", ErrEngineNotReady
	}

	sessionID, providedSecret, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrRefreshInvalid, func() map[string]string {
			return map[string]string{"reason": "decode_failed"}
		})
		return "", "", ErrRefreshInvalid
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckRefresh(ctx, sessionID); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricRefreshRateLimited)
				e.emitAudit(ctx, auditEventRefreshRateLimited, false, "", sessionID, ErrRefreshRateLimited, nil)
				e.emitRateLimit(ctx, "refresh", func() map[string]string {
					return map[string]string{"session_id": sessionID}
				})
				return "", "", ErrRefreshRateLimited
			}
			return "", "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	nextSecret, err := internal.NewRefreshSecret()
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return "", "", err
	}

	sess, err := e.sessionStore.RotateRefreshHash(
		ctx,
		sessionID,
		internal.HashRefreshSecret(providedSecret),
		internal.HashRefreshSecret(nextSecret),
	)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrRefreshHashMismatch):
			e.metricInc(MetricRefreshReuseDetected)
			e.metricInc(MetricSessionInvalidated)
			e.emitAudit(ctx, auditEventRefreshReuseDetected, false, "", sessionID, ErrRefreshReuse, nil)
			return "", "", ErrRefreshReuse
		case errors.Is(err, session.ErrRefreshSessionNotFound):
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", sessionID, ErrSessionNotFound, func() map[string]string {
				return map[string]string{"reason": "session_not_found"}
			})
			return "", "", ErrSessionNotFound
		case errors.Is(err, session.ErrRefreshSessionExpired):
			e.metricInc(MetricRefreshFailure)
			e.metricInc(MetricSessionInvalidated)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", sessionID, ErrRefreshExpired, func() map[string]string {
				return map[string]string{"reason": "session_expired"}
			})
			return "", "", ErrRefreshExpired
		case errors.Is(err, session.ErrRedisUnavailable):
			e.metricInc(MetricRefreshFailure)
			return "", "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		default:
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", sessionID, err, func() map[string]string {
				return map[string]string{"reason": "rotate_failed"}
			})
			return "", "", err
		}
	}

	if statusErr := accountStatusToError(AccountStatus(sess.Status)); statusErr != nil {
		_ = e.sessionStore.Delete(ctx, sess.SessionID)
		e.metricInc(MetricSessionInvalidated)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, sess.UserID, sess.SessionID, statusErr, func() map[string]string {
			return map[string]string{"reason": "account_status"}
		})
		return "", "", statusErr
	}

	access, err := e.issueAccessToken(sess)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return "", "", err
	}

	refresh, err := internal.EncodeRefreshToken(sess.SessionID, nextSecret)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return "", "", err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, sess.UserID, sess.SessionID, nil, nil)

	return access, refresh, nil
}

/*
====================================
VALIDATE
*/

// ValidateAccess validates an access token under the engine's configured
// validation mode.
func (e *Engine) ValidateAccess(ctx context.Context, tokenStr string) (*AuthResult, error) {
	return e.Validate(ctx, tokenStr, ModeInherit)
}

// Validate validates an access token under the given route mode and
// returns the authenticated identity. Every token failure, including
// expiry, maps to [ErrUnauthorized]; account-state errors such as
// [ErrAccountDisabled] are returned only for tokens that passed
// verification. Backend failures fail closed.
func (e *Engine) Validate(ctx context.Context, tokenStr string, routeMode RouteMode) (*AuthResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	claims, err := e.jwtManager.ParseAccess(tokenStr)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		return nil, ErrUnauthorized
	}

	effectiveMode, err := e.resolveRouteMode(routeMode)
	if err != nil {
		return nil, err
	}

	// JWT-only path: no Redis round-trips.
	if effectiveMode == ModeJWTOnly {
		e.metricInc(MetricValidateSuccess)
		return e.buildResultFromClaims(claims), nil
	}

	// Strict path: the session must still exist, fail-closed on backend
	// trouble.
	sess, err := e.sessionStore.Get(ctx, claims.SID)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, ErrUnauthorized
	}

	if statusErr := accountStatusToError(AccountStatus(sess.Status)); statusErr != nil {
		_ = e.sessionStore.Delete(ctx, sess.SessionID)
		e.metricInc(MetricValidateFailure)
		return nil, statusErr
	}

	if e.config.Security.LiveStatusCheck && e.accounts != nil {
		rec, err := e.getAccountByID(ctx, sess.UserID)
		if err != nil {
			e.metricInc(MetricValidateFailure)
			if errors.Is(err, ErrAccountNotFound) {
				_ = e.sessionStore.Delete(ctx, sess.SessionID)
				return nil, ErrSessionNotFound
			}
			return nil, ErrUnauthorized
		}
		if statusErr := accountStatusToError(rec.Status); statusErr != nil {
			_ = e.sessionStore.DeleteAllForUser(ctx, sess.UserID)
			e.metricInc(MetricSessionInvalidated)
			e.metricInc(MetricValidateFailure)
			return nil, statusErr
		}
	}

	e.metricInc(MetricValidateSuccess)
	return e.buildResult(sess), nil
}

func (e *Engine) buildResult(s *session.Session) *AuthResult {
	res := &AuthResult{
		UserID:    s.UserID,
		SessionID: s.SessionID,
		Role:      s.Role,
		Mask:      s.Mask,
	}

	if e.config.Result.IncludePermissionNames {
		res.Permissions = e.registry.Names(s.Mask)
	}

	return res
}

func (e *Engine) buildResultFromClaims(claims *jwt.AccessClaims) *AuthResult {
	mask, err := permission.DecodeMask(claims.Mask)
	if err != nil {
		mask = 0
	}

	res := &AuthResult{
		UserID:    claims.UID,
		SessionID: claims.SID,
		Role:      claims.Role,
		Mask:      mask,
	}

	if e.config.Result.IncludePermissionNames {
		res.Permissions = e.registry.Names(mask)
	}

	return res
}

// HasPermission reports whether the mask grants the named permission.
// Unregistered names never match.
func (e *Engine) HasPermission(mask permission.Mask64, perm string) bool {
	bit, ok := e.registry.Bit(perm)
	if !ok {
		return false
	}
	return mask.Has(bit, e.registry.RootReserved())
}

/*
====================================
TOKEN ISSUANCE
*/

func (e *Engine) issueSessionTokens(ctx context.Context, rec AccountRecord) (access, refresh, sessionID string, err error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return "", "", "", err
	}

	secret, err := internal.NewRefreshSecret()
	if err != nil {
		return "", "", "", err
	}

	mask, _ := e.roleManager.GetMask(rec.Role)

	now := time.Now()
	lifetime := e.sessionLifetime()

	sess := &session.Session{
		SessionID:   sid.String(),
		UserID:      rec.UserID,
		Role:        rec.Role,
		Mask:        mask,
		Status:      uint8(rec.Status),
		RefreshHash: internal.HashRefreshSecret(secret),
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(lifetime).Unix(),
	}

	if err := e.sessionStore.Save(ctx, sess, lifetime); err != nil {
		if errors.Is(err, session.ErrRedisUnavailable) {
			return "", "", "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return "", "", "", err
	}

	access, err = e.issueAccessToken(sess)
	if err != nil {
		return "", "", "", err
	}

	refresh, err = internal.EncodeRefreshToken(sess.SessionID, secret)
	if err != nil {
		return "", "", "", err
	}

	return access, refresh, sess.SessionID, nil
}

func (e *Engine) issueAccessToken(sess *session.Session) (string, error) {
	return e.jwtManager.CreateAccess(
		sess.UserID,
		sess.SessionID,
		sess.Role,
		permission.EncodeMask(sess.Mask),
	)
}

/*
====================================
LOGOUT
*/

// Logout revokes a single session. Revoking an already-revoked or unknown
// session succeeds.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	err := e.sessionStore.Delete(ctx, sessionID)
	if err == nil {
		e.metricInc(MetricLogout)
		e.metricInc(MetricSessionInvalidated)
	} else if errors.Is(err, session.ErrRedisUnavailable) {
		err = fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	e.emitAudit(ctx, auditEventLogoutSession, err == nil, "", sessionID, err, nil)
	return err
}

// LogoutByAccessToken revokes the session named by a valid access token.
func (e *Engine) LogoutByAccessToken(ctx context.Context, tokenStr string) error {
	claims, err := e.jwtManager.ParseAccess(tokenStr)
	if err != nil {
		e.emitAudit(ctx, auditEventLogoutSession, false, "", "", ErrTokenInvalid, func() map[string]string {
			return map[string]string{"reason": "invalid_access_token"}
		})
		return ErrTokenInvalid
	}

	return e.Logout(ctx, claims.SID)
}

// LogoutByRefreshToken revokes the session a refresh token points at.
// Malformed tokens are rejected; a token whose session is already gone
// succeeds, so revocation is idempotent.
func (e *Engine) LogoutByRefreshToken(ctx context.Context, refreshToken string) error {
	sessionID, _, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		e.emitAudit(ctx, auditEventLogoutSession, false, "", "", ErrRefreshInvalid, func() map[string]string {
			return map[string]string{"reason": "decode_failed"}
		})
		return ErrRefreshInvalid
	}

	return e.Logout(ctx, sessionID)
}

// LogoutAll revokes every session for a user.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	err := e.sessionStore.DeleteAllForUser(ctx, userID)
	if err == nil {
		e.metricInc(MetricLogoutAll)
		e.metricInc(MetricSessionInvalidated)
	} else if errors.Is(err, session.ErrRedisUnavailable) {
		err = fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	e.emitAudit(ctx, auditEventLogoutAll, err == nil, userID, "", err, nil)
	return err
}

/*
====================================
INTERNAL HELPERS
*/

func (e *Engine) sessionLifetime() time.Duration {
	return e.config.JWT.RefreshTTL
}

func (e *Engine) resolveRouteMode(routeMode RouteMode) (ValidationMode, error) {
	switch routeMode {
	case ModeInherit:
		switch e.config.ValidationMode {
		case ModeJWTOnly:
			return ModeJWTOnly, nil
		case ModeStrict:
			return ModeStrict, nil
		default:
			return 0, ErrInvalidRouteMode
		}
	case RouteJWTOnly:
		return ModeJWTOnly, nil
	case RouteStrict:
		return ModeStrict, nil
	default:
		return 0, ErrInvalidRouteMode
	}
}
