package goIdentity

import (
	"strings"
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = []byte("access-secret-access-secret-0123456789")
	cfg.JWT.RefreshSecret = []byte("refresh-secret-refresh-secret-012345678")
	return cfg
}

func TestDefaultConfigWithSecretsValidates(t *testing.T) {
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config with secrets to validate, got %v", err)
	}
}

func TestDefaultConfigMatchesDocumentedLifetimes(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.JWT.AccessTTL != 15*time.Minute {
		t.Fatalf("expected 15m access TTL, got %v", cfg.JWT.AccessTTL)
	}
	if cfg.JWT.RefreshTTL != 30*24*time.Hour {
		t.Fatalf("expected 30d refresh TTL, got %v", cfg.JWT.RefreshTTL)
	}
	if cfg.SSO.StateTTL != 300*time.Second {
		t.Fatalf("expected 300s SSO state TTL, got %v", cfg.SSO.StateTTL)
	}
	if got := cfg.ActionTokens.TTLFor(ActionPasswordReset); got != time.Hour {
		t.Fatalf("expected 60m password reset TTL, got %v", got)
	}
	if got := cfg.ActionTokens.TTLFor(ActionEmailVerification); got != 24*time.Hour {
		t.Fatalf("expected 1440m email verification TTL, got %v", got)
	}
	if got := cfg.ActionTokens.TTLFor(ActionProjectShare); got != 7*24*time.Hour {
		t.Fatalf("expected 10080m project share TTL, got %v", got)
	}
	if got := cfg.ActionTokens.TTLFor(ActionOrganisationInvite); got != 0 {
		t.Fatalf("expected no TTL for organisation invites, got %v", got)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing access secret", func(c *Config) { c.JWT.AccessSecret = nil }, "AccessSecret is required"},
		{"short secret", func(c *Config) { c.JWT.RefreshSecret = []byte("short") }, "at least 32 bytes"},
		{"same secrets", func(c *Config) { c.JWT.RefreshSecret = c.JWT.AccessSecret }, "must differ"},
		{"access ttl too long", func(c *Config) { c.JWT.AccessTTL = 2 * time.Hour }, "AccessTTL must be <= 1h"},
		{"refresh shorter than access", func(c *Config) { c.JWT.RefreshTTL = time.Minute }, "RefreshTTL must be greater"},
		{"leeway", func(c *Config) { c.JWT.Leeway = 5 * time.Minute }, "Leeway"},
		{"reset ttl", func(c *Config) { c.ActionTokens.PasswordResetTTL = 0 }, "ActionTokens TTLs"},
		{"sso ttl", func(c *Config) { c.SSO.StateTTL = 0 }, "StateTTL"},
		{"sso prefix", func(c *Config) { c.SSO.RedisPrefix = "" }, "RedisPrefix"},
		{"provider timeout", func(c *Config) { c.SSO.ProviderTimeout = 0 }, "ProviderTimeout"},
		{"totp digits", func(c *Config) { c.TwoFactor.Digits = 7 }, "Digits"},
		{"totp skew", func(c *Config) { c.TwoFactor.Skew = 5 }, "Skew"},
		{"weak argon2", func(c *Config) { c.Password.Memory = 1024 }, "Memory"},
		{"negative trial", func(c *Config) { c.Account.TrialPeriod = -time.Hour }, "TrialPeriod"},
		{"audit buffer", func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }, "BufferSize"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCloneConfigCopiesSecrets(t *testing.T) {
	cfg := validTestConfig()
	clone := cloneConfig(cfg)

	cfg.JWT.AccessSecret[0] = 'X'
	if clone.JWT.AccessSecret[0] == 'X' {
		t.Fatal("expected clone to own its secret bytes")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	_, err := New().WithConfig(DefaultConfig()).Build()
	if err == nil {
		t.Fatal("expected build without secrets to fail")
	}
}

func TestBuilderRequiresCollaborators(t *testing.T) {
	_, err := New().WithConfig(validTestConfig()).Build()
	if err == nil || !strings.Contains(err.Error(), "redis") {
		t.Fatalf("expected missing redis error, got %v", err)
	}
}
