package goIdentity

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/internal/stores"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/provider"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder collects the Engine's collaborators. A Builder builds exactly once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users         CredentialStore
	refreshTokens RefreshTokenRepository
	actionTokens  ActionTokenRepository
	providers     []provider.Adapter
	mailer        Mailer

	auditSink AuditSink
	logger    zerolog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: zerolog.Nop(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing SSO correlation.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.users = store
	return b
}

func (b *Builder) WithRefreshTokenRepository(repo RefreshTokenRepository) *Builder {
	b.refreshTokens = repo
	return b
}

func (b *Builder) WithActionTokenRepository(repo ActionTokenRepository) *Builder {
	b.actionTokens = repo
	return b
}

// WithProvider registers an SSO adapter under its Name. Registering a name twice fails Build.
func (b *Builder) WithProvider(adapter provider.Adapter) *Builder {
	b.providers = append(b.providers, adapter)
	return b
}

func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(log zerolog.Logger) *Builder {
	b.logger = log
	return b
}

// WithClock overrides time.Now for token issuance, action-token TTLs and TOTP. Tests use it.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("credential store required")
	}
	if b.refreshTokens == nil {
		return nil, errors.New("refresh token repository required")
	}
	if b.actionTokens == nil {
		return nil, errors.New("action token repository required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	providers := make(map[provider.Name]provider.Adapter, len(b.providers))
	for _, p := range b.providers {
		if p == nil {
			return nil, errors.New("nil provider adapter")
		}
		if _, dup := providers[p.Name()]; dup {
			return nil, fmt.Errorf("provider %q registered twice", p.Name())
		}
		providers[p.Name()] = p
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:        cfg.Password.Memory,
		Time:          cfg.Password.Time,
		Parallelism:   cfg.Password.Parallelism,
		SaltLength:    cfg.Password.SaltLength,
		KeyLength:     cfg.Password.KeyLength,
		MaxConcurrent: cfg.Password.MaxConcurrent,
	})
	if err != nil {
		return nil, err
	}

	accessJWT, err := jwt.NewManager(jwt.Config{
		Type:   jwt.TypeAccess,
		Secret: cfg.JWT.AccessSecret,
		TTL:    cfg.JWT.AccessTTL,
		Issuer: cfg.JWT.Issuer,
		Leeway: cfg.JWT.Leeway,
		Now:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("access token manager: %w", err)
	}
	refreshJWT, err := jwt.NewManager(jwt.Config{
		Type:   jwt.TypeRefresh,
		Secret: cfg.JWT.RefreshSecret,
		TTL:    cfg.JWT.RefreshTTL,
		Issuer: cfg.JWT.Issuer,
		Leeway: cfg.JWT.Leeway,
		Now:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("refresh token manager: %w", err)
	}

	pepper := cfg.JWT.RefreshTokenPepper
	if len(pepper) == 0 {
		pepper = cfg.JWT.RefreshSecret
	}

	log := b.logger.With().Str("component", "identity").Logger()

	engine := &Engine{
		config:       cloneConfig(cfg),
		users:        b.users,
		refresh:      newRefreshLedger(b.refreshTokens, pepper, cfg.JWT.AcceptLegacyPlaintextRefresh, now),
		actionTokens: newActionTokenStore(b.actionTokens, cfg.ActionTokens, now),
		sso:          stores.NewSSOCorrelationStore(b.redis, cfg.SSO.RedisPrefix, cfg.SSO.StateTTL, cfg.SSO.KeepTTLOnFill),
		providers:    providers,
		mailer:       b.mailer,
		hasher:       hasher,
		accessJWT:    accessJWT,
		refreshJWT:   refreshJWT,
		totp:         newTOTPManager(cfg.TwoFactor),
		audit:        newAuditDispatcher(cfg.Audit, b.auditSink, now),
		metrics:      NewMetrics(cfg.Metrics),
		log:          log,
		now:          now,
	}

	b.built = true

	return engine, nil
}
