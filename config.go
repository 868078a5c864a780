package authcore

import (
	"errors"
	"time"
)

// ValidationMode selects how access tokens are checked by [Engine.Validate].
type ValidationMode int

const (
	// ModeJWTOnly validates signature and claims only. Stateless, no Redis.
	ModeJWTOnly ValidationMode = iota
	// ModeStrict additionally requires a live session record, making logout and
	// revocation take effect before the access token expires.
	ModeStrict
)

// RouteMode is a per-route override for the engine's validation mode.
type RouteMode int

const (
	// ModeInherit uses the engine's configured ValidationMode.
	ModeInherit RouteMode = iota
	// RouteJWTOnly forces stateless validation for the route.
	RouteJWTOnly
	// RouteStrict forces session-backed validation for the route.
	RouteStrict
)

// Config is the engine configuration. It is cloned on intake by the [Builder]
// and immutable after Build; mutating the original after Build has no effect.
type Config struct {
	JWT           JWTConfig
	Session       SessionConfig
	Password      PasswordConfig
	PasswordReset PasswordResetConfig
	Account       AccountConfig
	Security      SecurityConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
	Permission    PermissionConfig
	Result        ResultConfig

	ValidationMode ValidationMode
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access-token issuance and verification. Key material is
// loaded once at Build and never mutated; rotation requires a rebuild.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls refresh-session persistence.
type SessionConfig struct {
	RedisPrefix       string
	SlidingExpiration bool
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig carries argon2id cost parameters. Memory is in KB. When
// UpgradeOnLogin is set, hashes stored with weaker parameters are transparently
// re-hashed on the next successful login.
type PasswordConfig struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

// PasswordResetConfig controls the opaque reset-token subsystem. Token delivery
// (email, SMS) is the caller's concern — the engine only mints and consumes.
type PasswordResetConfig struct {
	Enabled  bool
	ResetTTL time.Duration
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig controls engine-driven account creation.
type AccountConfig struct {
	Enabled     bool
	DefaultRole string
	AutoLogin   bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig tunes throttling and account-state enforcement.
type SecurityConfig struct {
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	EnableIPThrottle      bool

	EnableRefreshThrottle   bool
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration

	// AutoLockoutThreshold, when > 0, transitions an account to AccountLocked
	// through the AccountStore after that many consecutive failed logins. Zero
	// keeps the engine read-only on accounts.
	AutoLockoutThreshold int

	// LiveStatusCheck makes strict validation re-read the account through the
	// AccountStore so disable/lock takes effect against already-issued tokens.
	LiveStatusCheck bool

	RequireVerified bool

	MinPasswordLength int
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
PERMISSION / RESULT CONFIG
====================================
*/

// PermissionConfig bounds the permission registry.
type PermissionConfig struct {
	MaxBits int
}

// ResultConfig controls what [AuthResult] carries.
type ResultConfig struct {
	IncludePermissionNames bool
}

// DefaultConfig returns the configuration [New] starts from. Callers adjust
// fields and pass the result to [Builder.WithConfig].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     10 * time.Minute,
			RefreshTTL:    30 * 24 * time.Hour,
			SigningMethod: "ed25519",
			Leeway:        0,
		},
		Session: SessionConfig{
			RedisPrefix: "ac",
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		PasswordReset: PasswordResetConfig{
			ResetTTL: 15 * time.Minute,
		},
		Account: AccountConfig{
			DefaultRole: "member",
		},
		Security: SecurityConfig{
			MaxLoginAttempts:        10,
			LoginCooldownDuration:   15 * time.Minute,
			EnableRefreshThrottle:   true,
			MaxRefreshAttempts:      30,
			RefreshCooldownDuration: time.Minute,
			LiveStatusCheck:         true,
			MinPasswordLength:       10,
		},
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
		Permission: PermissionConfig{
			MaxBits: 64,
		},
		ValidationMode: ModeStrict,
	}
}

// Validate checks the configuration for internal consistency. Called by
// [Builder.Build]; exported so hosts can lint configs at startup.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT.AccessTTL must be positive")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT.RefreshTTL must be positive")
	}
	if c.JWT.AccessTTL > c.JWT.RefreshTTL {
		return errors.New("JWT.AccessTTL must not exceed JWT.RefreshTTL")
	}
	switch c.JWT.SigningMethod {
	case "ed25519", "hs256":
	default:
		return errors.New("JWT.SigningMethod must be ed25519 or hs256")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT.Leeway out of range")
	}
	if c.Session.RedisPrefix == "" {
		return errors.New("Session.RedisPrefix must be set")
	}
	if c.Security.MaxLoginAttempts <= 0 {
		return errors.New("Security.MaxLoginAttempts must be positive")
	}
	if c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security.LoginCooldownDuration must be positive")
	}
	if c.Security.EnableRefreshThrottle {
		if c.Security.MaxRefreshAttempts <= 0 {
			return errors.New("Security.MaxRefreshAttempts must be positive")
		}
		if c.Security.RefreshCooldownDuration <= 0 {
			return errors.New("Security.RefreshCooldownDuration must be positive")
		}
	}
	if c.Security.AutoLockoutThreshold < 0 {
		return errors.New("Security.AutoLockoutThreshold must not be negative")
	}
	if c.Security.MinPasswordLength < 10 {
		return errors.New("Security.MinPasswordLength must be >= 10")
	}
	if c.PasswordReset.Enabled && c.PasswordReset.ResetTTL <= 0 {
		return errors.New("PasswordReset.ResetTTL must be positive")
	}
	if c.Permission.MaxBits <= 0 || c.Permission.MaxBits > 64 {
		return errors.New("Permission.MaxBits must be in 1..64")
	}
	switch c.ValidationMode {
	case ModeJWTOnly, ModeStrict:
	default:
		return errors.New("invalid ValidationMode")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
