package goIdentity

import (
	"bytes"
	"errors"
	"time"
)

// Config holds every tunable of the Engine. Start from [DefaultConfig] and override.
type Config struct {
	JWT          JWTConfig
	ActionTokens ActionTokenConfig
	SSO          SSOConfig
	TwoFactor    TwoFactorConfig
	Password     PasswordConfig
	Account      AccountConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures access and refresh token signing. The two secrets must differ.
type JWTConfig struct {
	AccessSecret  []byte
	AccessTTL     time.Duration
	RefreshSecret []byte
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
	// RefreshTokenPepper keys the ledger HMAC. Defaults to RefreshSecret.
	RefreshTokenPepper []byte
	// AcceptLegacyPlaintextRefresh also matches ledger rows written before hashing.
	AcceptLegacyPlaintextRefresh bool
}

/*
====================================
ACTION TOKEN CONFIG
====================================
*/

// ActionTokenConfig holds per-action lifetimes. Action types without a TTL here never
// expire lazily.
type ActionTokenConfig struct {
	EmailVerificationTTL time.Duration
	PasswordResetTTL     time.Duration
	EmailChangeTTL       time.Duration
	ProjectShareTTL      time.Duration
}

// TTLFor returns the lifetime of action, or 0 when it has none.
func (c ActionTokenConfig) TTLFor(action ActionType) time.Duration {
	switch action {
	case ActionEmailVerification:
		return c.EmailVerificationTTL
	case ActionPasswordReset:
		return c.PasswordResetTTL
	case ActionEmailChange:
		return c.EmailChangeTTL
	case ActionProjectShare:
		return c.ProjectShareTTL
	default:
		return 0
	}
}

/*
====================================
SSO CONFIG
====================================
*/

type SSOConfig struct {
	StateTTL    time.Duration
	RedisPrefix string
	// KeepTTLOnFill keeps the original expiry when the exchange writes the identity.
	// The default resets the entry to StateTTL.
	KeepTTLOnFill   bool
	ProviderTimeout time.Duration
}

type TwoFactorConfig struct {
	Issuer string
	Digits int
	Period uint
	Skew   uint
	// EnforceReplayProtection refuses a TOTP step at or below the last accepted one.
	EnforceReplayProtection bool
}

type PasswordConfig struct {
	Memory        uint32 // in KB
	Time          uint32
	Parallelism   uint8
	SaltLength    uint32
	KeyLength     uint32
	MaxConcurrent int
}

type AccountConfig struct {
	TrialPeriod time.Duration
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns production defaults. Secrets are left empty and must be set.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 30 * 24 * time.Hour,
			Leeway:     5 * time.Second,
		},
		ActionTokens: ActionTokenConfig{
			EmailVerificationTTL: 1440 * time.Minute,
			PasswordResetTTL:     60 * time.Minute,
			EmailChangeTTL:       1440 * time.Minute,
			ProjectShareTTL:      10080 * time.Minute,
		},
		SSO: SSOConfig{
			StateTTL:        300 * time.Second,
			RedisPrefix:     "sso",
			KeepTTLOnFill:   false,
			ProviderTimeout: 10 * time.Second,
		},
		TwoFactor: TwoFactorConfig{
			Issuer: "Analytics",
			Digits: 6,
			Period:                  30,
			Skew:                    1,
			EnforceReplayProtection: true,
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Account: AccountConfig{
			TrialPeriod: 14 * 24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	out.JWT.RefreshTokenPepper = cloneBytes(cfg.JWT.RefreshTokenPepper)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

const minSecretBytes = 32

/*
====================================
VALIDATION
====================================
*/

// Validate checks cfg for unusable or unsafe values.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.AccessSecret) == 0 {
		return errors.New("JWT AccessSecret is required")
	}
	if len(c.JWT.RefreshSecret) == 0 {
		return errors.New("JWT RefreshSecret is required")
	}
	if len(c.JWT.AccessSecret) < minSecretBytes || len(c.JWT.RefreshSecret) < minSecretBytes {
		return errors.New("JWT secrets must be at least 32 bytes")
	}
	if bytes.Equal(c.JWT.AccessSecret, c.JWT.RefreshSecret) {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.AccessTTL > time.Hour {
		return errors.New("JWT AccessTTL must be <= 1h")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be greater than AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Action tokens
	if c.ActionTokens.EmailVerificationTTL <= 0 ||
		c.ActionTokens.PasswordResetTTL <= 0 ||
		c.ActionTokens.EmailChangeTTL <= 0 {
		return errors.New("ActionTokens TTLs must be > 0")
	}
	if c.ActionTokens.ProjectShareTTL < 0 {
		return errors.New("ActionTokens ProjectShareTTL must be >= 0")
	}

	// SSO
	if c.SSO.StateTTL <= 0 {
		return errors.New("SSO StateTTL must be > 0")
	}
	if c.SSO.RedisPrefix == "" {
		return errors.New("SSO RedisPrefix must not be empty")
	}
	if c.SSO.ProviderTimeout <= 0 {
		return errors.New("SSO ProviderTimeout must be > 0")
	}

	// Two-factor
	if c.TwoFactor.Issuer == "" {
		return errors.New("TwoFactor Issuer must not be empty")
	}
	if c.TwoFactor.Digits != 6 && c.TwoFactor.Digits != 8 {
		return errors.New("TwoFactor Digits must be 6 or 8")
	}
	if c.TwoFactor.Period == 0 {
		return errors.New("TwoFactor Period must be > 0")
	}
	if c.TwoFactor.Skew > 2 {
		return errors.New("TwoFactor Skew must be <= 2")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxConcurrent < 0 {
		return errors.New("Password MaxConcurrent must be >= 0")
	}

	// Account
	if c.Account.TrialPeriod < 0 {
		return errors.New("Account TrialPeriod must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
