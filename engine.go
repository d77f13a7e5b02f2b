package goIdentity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/internal/stores"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/provider"
	"github.com/rs/zerolog"
)

// Engine is the identity core. Build one with [New].
type Engine struct {
	config       Config
	users        CredentialStore
	refresh      *refreshLedger
	actionTokens *ActionTokenStore
	sso          *stores.SSOCorrelationStore
	providers    map[provider.Name]provider.Adapter
	mailer       Mailer
	hasher       *password.Hasher
	accessJWT    *jwt.Manager
	refreshJWT   *jwt.Manager
	totp         *totpManager
	audit        *auditDispatcher
	metrics      *Metrics
	log          zerolog.Logger
	now          func() time.Time
}

// Shutdown flushes the audit queue, giving up when ctx ends. Events still queued at that
// point are counted in [Engine.AuditDropped]. The Engine must not be used afterwards.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e == nil {
		return nil
	}
	return e.audit.Close(ctx)
}

// Close is Shutdown without a deadline.
func (e *Engine) Close() {
	_ = e.Shutdown(context.Background())
}

// AuditDropped returns how many audit events were dropped because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of every counter.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// ActionTokens exposes the store to flows outside this core (project sharing, invites)
// that reuse the same token table.
func (e *Engine) ActionTokens() *ActionTokenStore {
	return e.actionTokens
}

// PurgeExpiredActionTokens runs one best-effort cleanup pass.
func (e *Engine) PurgeExpiredActionTokens(ctx context.Context) (int64, error) {
	n, err := e.actionTokens.PurgeExpired(ctx, e.now())
	if n > 0 && e.metrics != nil {
		e.metrics.Add(MetricActionTokensPurged, uint64(n))
	}
	if err != nil {
		return n, err
	}
	e.log.Debug().Int64("deleted", n).Msg("expired action tokens purged")
	return n, nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) sendMail(ctx context.Context, mail Mail) {
	if e.mailer == nil {
		e.log.Warn().Str("template", mail.Template).Msg("no mailer configured; mail skipped")
		return
	}
	if err := e.mailer.Send(ctx, mail); err != nil {
		e.log.Error().Err(err).Str("template", mail.Template).Msg("mail dispatch failed")
	}
}

func (e *Engine) getUser(ctx context.Context, userID string) (UserRecord, error) {
	if userID == "" {
		return UserRecord{}, ErrUserNotFound
	}
	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return UserRecord{}, backendErr(err)
	}
	return user, nil
}

// hashPassword maps hasher input errors to ErrPasswordPolicy.
func (e *Engine) hashPassword(ctx context.Context, plain string) (string, error) {
	hash, err := e.hasher.Hash(ctx, plain)
	switch {
	case err == nil:
		return hash, nil
	case errors.Is(err, password.ErrEmptyPassword), errors.Is(err, password.ErrPasswordTooLong):
		return "", fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	default:
		return "", err
	}
}

// checkPassword returns ErrInvalidCredentials for any mismatch, including SSO-only users.
func (e *Engine) checkPassword(ctx context.Context, user UserRecord, plain string) error {
	if user.PasswordHash == "" || plain == "" {
		return ErrInvalidCredentials
	}
	ok, err := e.hasher.Verify(ctx, plain, user.PasswordHash)
	if err != nil {
		if errors.Is(err, password.ErrMalformedHash) {
			e.log.Error().Str("user_id", user.ID).Msg("stored password hash is malformed")
			return ErrInvalidCredentials
		}
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var taxonomy = []error{
	ErrInvalidCredentials, ErrUserNotFound, ErrTokenInvalid, ErrRefreshTokenInvalid,
	ErrSecondFactorRequired, ErrEngineNotReady, ErrBackendUnavailable, ErrPasswordPolicy, ErrInvalidEmail,
	ErrActionTokenInvalid, ErrActionTokenMismatch,
	ErrSSONoSession, ErrSSOSessionNotReady, ErrSSOCorruptedSession, ErrSSOSessionAlreadyFilled,
	ErrProviderMismatch, ErrUnsupportedProvider, ErrUpstreamProviderFailure, ErrUnexpectedProviderResponse,
	ErrEmailAlreadyExists, ErrAlreadyLinkedToAnotherUser, ErrCannotUnlinkRegistrationProvider,
	ErrTwoFactorCodeInvalid, ErrTwoFactorAlreadyEnabled, ErrTwoFactorNotEnabled, ErrTwoFactorSecretNotIssued,
}

// backendErr passes taxonomy errors and context errors through and wraps anything else
// in ErrBackendUnavailable.
func backendErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	for _, known := range taxonomy {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}
