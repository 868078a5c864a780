package authcore

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// CreateAccount hashes the password, writes the account through the
// AccountStore, and optionally logs the new account in. Disabled unless
// Config.Account.Enabled is set.
func (e *Engine) CreateAccount(ctx context.Context, req CreateAccountRequest) (*CreateAccountResult, error) {
	if e == nil || e.hasher == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.Account.Enabled {
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", "", ErrAccountCreationDisabled, func() map[string]string {
			return map[string]string{"reason": "feature_disabled"}
		})
		return nil, ErrAccountCreationDisabled
	}

	if req.Identifier == "" {
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "empty_identifier"}
		})
		return nil, ErrInvalidCredentials
	}
	if len(req.Password) < e.config.Security.MinPasswordLength {
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{"identifier": req.Identifier, "reason": "password_policy"}
		})
		return nil, ErrPasswordPolicy
	}

	role := req.Role
	if role == "" {
		role = e.config.Account.DefaultRole
	}
	if _, ok := e.roleManager.GetMask(role); !ok {
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", "", ErrRoleInvalid, func() map[string]string {
			return map[string]string{"identifier": req.Identifier, "role": role}
		})
		return nil, ErrRoleInvalid
	}

	passwordHash, err := e.hasher.Hash(req.Password)
	if err != nil {
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{"identifier": req.Identifier, "reason": "hash_failed"}
		})
		return nil, ErrPasswordPolicy
	}

	initialStatus := AccountActive
	if e.config.Security.RequireVerified {
		initialStatus = AccountPendingVerification
	}

	created, err := e.accounts.CreateAccount(ctx, CreateAccountInput{
		UserID:       uuid.NewString(),
		Identifier:   req.Identifier,
		PasswordHash: passwordHash,
		Role:         role,
		Status:       initialStatus,
	})
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricAccountCreationDuplicate)
			e.emitAudit(ctx, auditEventAccountCreationDuplicate, false, "", "", ErrAccountExists, func() map[string]string {
				return map[string]string{"identifier": req.Identifier}
			})
			return nil, ErrAccountExists
		}
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", "", err, func() map[string]string {
			return map[string]string{"identifier": req.Identifier, "reason": "store_create_failed"}
		})
		return nil, err
	}

	result := &CreateAccountResult{
		UserID: created.UserID,
		Role:   created.Role,
	}

	if e.config.Account.AutoLogin && initialStatus == AccountActive {
		access, refresh, _, err := e.issueSessionTokens(ctx, created)
		if err != nil {
			// Account exists; the caller can log in normally.
			e.metricInc(MetricAccountCreationSuccess)
			e.emitAudit(ctx, auditEventAccountCreationSuccess, true, created.UserID, "", nil, func() map[string]string {
				return map[string]string{"auto_login": "failed"}
			})
			return result, nil
		}
		result.AccessToken = access
		result.RefreshToken = refresh
		e.metricInc(MetricSessionCreated)
	}

	e.metricInc(MetricAccountCreationSuccess)
	e.emitAudit(ctx, auditEventAccountCreationSuccess, true, created.UserID, "", nil, nil)

	return result, nil
}
