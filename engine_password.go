package authcore

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Afolstee/authcore/internal"
)

// ChangePassword verifies the current password, stores a hash of the new
// one, and revokes every session for the user.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if e == nil || e.hasher == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	if userID == "" || oldPassword == "" {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "invalid_input"}
		})
		return ErrInvalidCredentials
	}
	if len(newPassword) < e.config.Security.MinPasswordLength {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{"reason": "password_policy"}
		})
		return ErrPasswordPolicy
	}

	rec, err := e.getAccountByID(ctx, userID)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", err, func() map[string]string {
			return map[string]string{"reason": "account_lookup"}
		})
		return err
	}
	if statusErr := accountStatusToError(rec.Status); statusErr != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", statusErr, func() map[string]string {
			return map[string]string{"reason": "account_status"}
		})
		return statusErr
	}

	oldOK, err := e.hasher.Verify(oldPassword, rec.PasswordHash)
	if err != nil || !oldOK {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeInvalidOld, false, userID, "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	samePassword, err := e.hasher.Verify(newPassword, rec.PasswordHash)
	if err == nil && samePassword {
		e.metricInc(MetricPasswordChangeReuseRejected)
		e.emitAudit(ctx, auditEventPasswordChangeReuse, false, userID, "", ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{"reason": "hash_failed"}
		})
		return ErrPasswordPolicy
	}

	if err := e.accounts.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", err, func() map[string]string {
			return map[string]string{"reason": "update_hash_failed"}
		})
		return err
	}

	if err := e.sessionStore.DeleteAllForUser(ctx, userID); err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, "", err, func() map[string]string {
			return map[string]string{"reason": "session_invalidation_failed"}
		})
		return fmt.Errorf("%w: session invalidation: %v", ErrBackendUnavailable, err)
	}
	e.metricInc(MetricSessionInvalidated)

	if e.rateLimiter != nil {
		// Limiter reset is best-effort and must not block the change.
		if err := e.rateLimiter.ResetLogin(ctx, rec.Identifier, clientIPFromContext(ctx)); err != nil {
			log.Print("authcore: login limiter reset failed after password change")
		}
	}

	oldPassword = ""
	newPassword = ""
	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, userID, "", nil, nil)

	return nil
}

/*
====================================
PASSWORD RESET
*/

// RequestPasswordReset mints a single-use opaque reset token for the
// identifier. Delivery is the caller's concern. Unknown or non-active
// identifiers receive a structurally valid token that is never persisted,
// so the response does not reveal account existence.
func (e *Engine) RequestPasswordReset(ctx context.Context, identifier string) (string, error) {
	if e == nil || e.resetStore == nil || e.accounts == nil {
		return "", ErrEngineNotReady
	}
	if !e.config.PasswordReset.Enabled {
		return "", ErrResetDisabled
	}
	if identifier == "" {
		return "", ErrResetInvalid
	}

	rid, err := internal.NewSessionID()
	if err != nil {
		return "", err
	}
	secret, err := internal.NewResetSecret()
	if err != nil {
		return "", err
	}
	token, err := internal.EncodeResetToken(rid.String(), secret)
	if err != nil {
		return "", err
	}

	rec, err := e.getAccountByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// Decoy token: same shape, never stored, never redeemable.
			e.emitAudit(ctx, auditEventPasswordResetRequest, false, "", "", nil, func() map[string]string {
				return map[string]string{"identifier": identifier, "reason": "account_not_found"}
			})
			return token, nil
		}
		return "", err
	}
	if accountStatusToError(rec.Status) != nil {
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, rec.UserID, "", nil, func() map[string]string {
			return map[string]string{"reason": "account_status"}
		})
		return token, nil
	}

	ttl := e.config.PasswordReset.ResetTTL
	record := &passwordResetRecord{
		UserID:     rec.UserID,
		SecretHash: internal.HashResetSecret(secret),
		ExpiresAt:  time.Now().Add(ttl).Unix(),
	}
	if err := e.resetStore.Save(ctx, rid.String(), record, ttl); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, rec.UserID, "", nil, nil)

	return token, nil
}

// ConfirmPasswordReset redeems a reset token and installs the new
// password. The token is burned on first redemption attempt; every open
// session for the account is revoked on success.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if e == nil || e.resetStore == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	if !e.config.PasswordReset.Enabled {
		return ErrResetDisabled
	}
	if len(newPassword) < e.config.Security.MinPasswordLength {
		return ErrPasswordPolicy
	}

	resetID, secret, err := internal.DecodeResetToken(token)
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", ErrResetInvalid, func() map[string]string {
			return map[string]string{"reason": "decode_failed"}
		})
		return ErrResetInvalid
	}

	record, err := e.resetStore.Consume(ctx, resetID)
	if err != nil {
		if errors.Is(err, errResetRedisUnavailable) {
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", ErrResetInvalid, func() map[string]string {
			return map[string]string{"reason": "not_found"}
		})
		return ErrResetInvalid
	}

	providedHash := internal.HashResetSecret(secret)
	if subtle.ConstantTimeCompare(record.SecretHash[:], providedHash[:]) != 1 {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, record.UserID, "", ErrResetInvalid, func() map[string]string {
			return map[string]string{"reason": "secret_mismatch"}
		})
		return ErrResetInvalid
	}

	rec, err := e.getAccountByID(ctx, record.UserID)
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		if errors.Is(err, ErrAccountNotFound) {
			return ErrResetInvalid
		}
		return err
	}
	if statusErr := accountStatusToError(rec.Status); statusErr != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, rec.UserID, "", statusErr, func() map[string]string {
			return map[string]string{"reason": "account_status"}
		})
		return statusErr
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return ErrPasswordPolicy
	}
	if err := e.accounts.UpdatePasswordHash(ctx, rec.UserID, newHash); err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, rec.UserID, "", err, func() map[string]string {
			return map[string]string{"reason": "update_hash_failed"}
		})
		return err
	}

	if err := e.sessionStore.DeleteAllForUser(ctx, rec.UserID); err != nil {
		return fmt.Errorf("%w: session invalidation: %v", ErrBackendUnavailable, err)
	}
	e.metricInc(MetricSessionInvalidated)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.ResetLogin(ctx, rec.Identifier, clientIPFromContext(ctx)); err != nil {
			log.Print("authcore: login limiter reset failed after password reset")
		}
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, rec.UserID, "", nil, nil)

	return nil
}
