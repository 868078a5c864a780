package authcore

import (
	"context"
	"fmt"
)

// DisableAccount transitions an account to AccountDisabled and revokes all
// of its sessions.
func (e *Engine) DisableAccount(ctx context.Context, userID string) error {
	err := e.updateAccountStatusAndInvalidate(ctx, userID, AccountDisabled)
	if err == nil {
		e.metricInc(MetricAccountDisabled)
	}
	e.emitAudit(ctx, auditEventAccountStatusChange, err == nil, userID, "", err, func() map[string]string {
		return map[string]string{"action": "disable"}
	})
	return err
}

// EnableAccount transitions an account back to AccountActive. Existing
// sessions are not restored; the user logs in again.
func (e *Engine) EnableAccount(ctx context.Context, userID string) error {
	err := e.updateAccountStatusAndInvalidate(ctx, userID, AccountActive)
	e.emitAudit(ctx, auditEventAccountStatusChange, err == nil, userID, "", err, func() map[string]string {
		return map[string]string{"action": "enable"}
	})
	return err
}

// LockAccount transitions an account to AccountLocked and revokes all of
// its sessions.
func (e *Engine) LockAccount(ctx context.Context, userID string) error {
	err := e.updateAccountStatusAndInvalidate(ctx, userID, AccountLocked)
	if err == nil {
		e.metricInc(MetricAccountLocked)
	}
	e.emitAudit(ctx, auditEventAccountStatusChange, err == nil, userID, "", err, func() map[string]string {
		return map[string]string{"action": "lock"}
	})
	return err
}

// VerifyAccount transitions a pending account to AccountActive.
func (e *Engine) VerifyAccount(ctx context.Context, userID string) error {
	err := e.updateAccountStatusAndInvalidate(ctx, userID, AccountActive)
	e.emitAudit(ctx, auditEventAccountStatusChange, err == nil, userID, "", err, func() map[string]string {
		return map[string]string{"action": "verify"}
	})
	return err
}

func (e *Engine) updateAccountStatusAndInvalidate(ctx context.Context, userID string, status AccountStatus) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return ErrAccountNotFound
	}

	current, err := e.getAccountByID(ctx, userID)
	if err != nil {
		return err
	}

	if current.Status == status {
		return nil
	}

	if err := e.accounts.UpdateAccountStatus(ctx, userID, status); err != nil {
		return err
	}

	// Transitions out of AccountActive revoke every open session so the
	// status change is immediate, not deferred to token expiry.
	if status != AccountActive {
		if err := e.sessionStore.DeleteAllForUser(ctx, userID); err != nil {
			return fmt.Errorf("%w: session invalidation: %v", ErrBackendUnavailable, err)
		}
		e.metricInc(MetricSessionInvalidated)
	}

	return nil
}
