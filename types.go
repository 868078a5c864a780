package authcore

import (
	"context"
	"io"

	internalaudit "github.com/Afolstee/authcore/internal/audit"
	"github.com/Afolstee/authcore/permission"
)

// AccountStatus is the lifecycle state of an account as seen by the engine.
type AccountStatus uint8

const (
	AccountActive AccountStatus = iota
	AccountPendingVerification
	AccountDisabled
	AccountLocked
)

// AccountRecord is the account row the engine reads through [AccountStore].
// PasswordHash is an opaque, algorithm-tagged string (PHC format when produced
// by this engine). The engine never mutates records beyond status transitions
// and password-hash updates it is explicitly configured for.
type AccountRecord struct {
	UserID       string
	Identifier   string
	PasswordHash string
	Status       AccountStatus
	Role         string
	CreatedAt    int64
	UpdatedAt    int64
}

// CreateAccountInput is passed to [AccountStore.CreateAccount]. UserID is
// pre-generated by the engine; stores that mint their own IDs may override it
// in the returned record.
type CreateAccountInput struct {
	UserID       string
	Identifier   string
	PasswordHash string
	Role         string
	Status       AccountStatus
}

// AccountStore is the credential-store adapter callers must implement to
// integrate authcore with their user database. Lookup misses are reported as
// [ErrAccountNotFound] and duplicates as [ErrAccountExists]; any other error is
// treated as a backend failure.
//
// All methods must honor ctx cancellation. The engine retries
// GetAccountByIdentifier once on non-sentinel errors (the lookup is idempotent);
// no other method is retried.
type AccountStore interface {
	GetAccountByIdentifier(ctx context.Context, identifier string) (AccountRecord, error)
	GetAccountByID(ctx context.Context, userID string) (AccountRecord, error)
	CreateAccount(ctx context.Context, input CreateAccountInput) (AccountRecord, error)
	UpdateAccountStatus(ctx context.Context, userID string, status AccountStatus) error
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error
}

// AuthResult is the authenticated identity produced by [Engine.Validate] and
// attached to request contexts by the middleware package. Mask is the decoded
// permission mask; Permissions is populated only when
// Config.Result.IncludePermissionNames is set.
type AuthResult struct {
	UserID    string
	SessionID string
	Role      string

	Mask permission.Mask64

	Permissions []string
}

// TokenPair is an access+refresh issuance result.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// CreateAccountRequest is the input for [Engine.CreateAccount]. Identifier and
// Password are required; Role defaults to Config.Account.DefaultRole.
type CreateAccountRequest struct {
	Identifier string
	Password   string
	Role       string
}

// CreateAccountResult is returned by [Engine.CreateAccount]. Tokens are set
// only when Config.Account.AutoLogin is enabled.
type CreateAccountResult struct {
	UserID       string
	Role         string
	AccessToken  string
	RefreshToken string
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's async dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
