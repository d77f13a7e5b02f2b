package goIdentity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MrEthical07/goIdentity/internal/stores"
	"github.com/MrEthical07/goIdentity/provider"
	"github.com/google/uuid"
)

// ssoIdentity is the normalized result of a consumed correlation entry.
type ssoIdentity struct {
	provider provider.Name
	googleID string
	githubID int64
	email    string
}

func (id ssoIdentity) subject() string {
	if id.provider == provider.GitHub {
		return strconv.FormatInt(id.githubID, 10)
	}
	return id.googleID
}

func (e *Engine) adapter(name provider.Name) (provider.Adapter, error) {
	a, ok := e.providers[name]
	if !ok {
		return nil, ErrUnsupportedProvider
	}
	return a, nil
}

// checkState verifies that state carries the claimed provider's tag.
func checkState(claimed provider.Name, state string) error {
	tag, rest, ok := strings.Cut(state, ":")
	if !ok || rest == "" {
		return ErrSSONoSession
	}
	if provider.Name(tag) != claimed {
		return ErrProviderMismatch
	}
	return nil
}

// GenerateSSOAuthURL reserves a correlation entry "{provider}:{uuid}" and returns the
// provider URL the popup should open.
func (e *Engine) GenerateSSOAuthURL(ctx context.Context, name provider.Name) (SSOAuthURL, error) {
	a, err := e.adapter(name)
	if err != nil {
		return SSOAuthURL{}, err
	}

	state := string(name) + ":" + uuid.NewString()
	if err := e.sso.Reserve(ctx, state); err != nil {
		return SSOAuthURL{}, mapSSOStoreErr(err)
	}

	e.metricInc(MetricSSOAuthURLIssued)
	return SSOAuthURL{
		State:     state,
		AuthURL:   a.AuthURL(state),
		ExpiresIn: e.sso.TTL(),
	}, nil
}

// ProcessSSOToken runs the provider exchange for a reserved state and stores the identity.
// The provider tag and the pending state are checked before any upstream call. The upstream call is bounded by
// SSO.ProviderTimeout and is not retried.
func (e *Engine) ProcessSSOToken(ctx context.Context, name provider.Name, tokenOrCode, state string) error {
	a, err := e.adapter(name)
	if err != nil {
		return err
	}
	if err := checkState(name, state); err != nil {
		if errors.Is(err, ErrProviderMismatch) {
			e.metricInc(MetricSSOProviderMismatch)
		}
		e.emitAudit(ctx, auditEventSSOExchange, false, "", string(name), err, nil)
		return err
	}
	// GitHub codes are single-use, so an unknown or spent state must not reach the provider.
	if err := e.sso.Pending(ctx, state); err != nil {
		err = mapSSOStoreErr(err)
		e.metricInc(MetricSSOExchangeFailure)
		e.emitAudit(ctx, auditEventSSOExchange, false, "", string(name), err, nil)
		return err
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, e.config.SSO.ProviderTimeout)
	identity, err := a.Exchange(exchangeCtx, tokenOrCode)
	cancel()
	if err != nil {
		err = e.mapProviderErr(name, err)
		e.metricInc(MetricSSOExchangeFailure)
		e.emitAudit(ctx, auditEventSSOExchange, false, "", string(name), err, nil)
		return err
	}

	payload := stores.SSOIdentity{Email: normalizeEmail(identity.Email)}
	switch name {
	case provider.GitHub:
		id, perr := strconv.ParseInt(identity.Subject, 10, 64)
		if perr != nil || id <= 0 {
			err := fmt.Errorf("%w: github id %q is not numeric", ErrUnexpectedProviderResponse, identity.Subject)
			e.log.Error().Err(err).Str("provider", string(name)).Msg("provider returned unexpected subject")
			e.metricInc(MetricSSOExchangeFailure)
			return err
		}
		payload.ID = id
	default:
		payload.Sub = identity.Subject
	}

	if err := e.sso.Fill(ctx, state, payload); err != nil {
		err = mapSSOStoreErr(err)
		e.metricInc(MetricSSOExchangeFailure)
		e.emitAudit(ctx, auditEventSSOExchange, false, "", string(name), err, nil)
		return err
	}

	e.metricInc(MetricSSOExchangeSuccess)
	e.emitAudit(ctx, auditEventSSOExchange, true, "", string(name), nil, nil)
	return nil
}

func (e *Engine) mapProviderErr(name provider.Name, err error) error {
	switch {
	case errors.Is(err, provider.ErrUnexpectedResponse):
		e.log.Error().Err(err).Str("provider", string(name)).Msg("provider returned an unexpected response")
		return fmt.Errorf("%w: %v", ErrUnexpectedProviderResponse, err)
	case errors.Is(err, provider.ErrNoPrimaryEmail):
		return fmt.Errorf("%w: %v", ErrProviderEmailMissing, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		e.log.Debug().Err(err).Str("provider", string(name)).Msg("provider exchange failed")
		return fmt.Errorf("%w: %v", ErrUpstreamProviderFailure, err)
	}
}

func mapSSOStoreErr(err error) error {
	switch {
	case errors.Is(err, stores.ErrSSONotFound):
		return ErrSSONoSession
	case errors.Is(err, stores.ErrSSONotReady):
		return ErrSSOSessionNotReady
	case errors.Is(err, stores.ErrSSOCorrupted):
		return fmt.Errorf("%w: %v", ErrSSOCorruptedSession, err)
	case errors.Is(err, stores.ErrSSOAlreadyFilled):
		return ErrSSOSessionAlreadyFilled
	default:
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
}

// consumeSSO reads and deletes the correlation entry in one step.
func (e *Engine) consumeSSO(ctx context.Context, name provider.Name, state string) (ssoIdentity, error) {
	if _, err := e.adapter(name); err != nil {
		return ssoIdentity{}, err
	}
	if err := checkState(name, state); err != nil {
		if errors.Is(err, ErrProviderMismatch) {
			e.metricInc(MetricSSOProviderMismatch)
		}
		return ssoIdentity{}, err
	}

	payload, err := e.sso.Consume(ctx, state)
	if err != nil {
		err = mapSSOStoreErr(err)
		if errors.Is(err, ErrSSOCorruptedSession) {
			e.metricInc(MetricSSOCorruptedSession)
			e.log.Error().Err(err).Str("provider", string(name)).Msg("sso correlation payload could not be decoded")
		} else {
			e.metricInc(MetricSSOConsumeFailure)
		}
		return ssoIdentity{}, err
	}

	identity := ssoIdentity{provider: name, email: payload.Email}
	switch name {
	case provider.GitHub:
		identity.githubID = payload.ID
	default:
		identity.googleID = payload.Sub
	}
	if identity.subject() == "" || identity.subject() == "0" {
		e.metricInc(MetricSSOCorruptedSession)
		err := fmt.Errorf("%w: payload has no %s subject", ErrSSOCorruptedSession, name)
		e.log.Error().Err(err).Msg("sso correlation payload does not match its provider")
		return ssoIdentity{}, err
	}
	return identity, nil
}

func (e *Engine) findByProvider(ctx context.Context, id ssoIdentity) (UserRecord, error) {
	if id.provider == provider.GitHub {
		return e.users.GetUserByGitHubID(ctx, id.githubID)
	}
	return e.users.GetUserByGoogleID(ctx, id.googleID)
}

// AuthenticateSSO consumes a filled state and signs the user in, registering a new account
// when no user holds the provider id. The state is single use: a second call fails with
// ErrSSONoSession.
func (e *Engine) AuthenticateSSO(ctx context.Context, name provider.Name, state string) (AuthResult, error) {
	identity, err := e.consumeSSO(ctx, name, state)
	if err != nil {
		e.emitAudit(ctx, auditEventSSOLogin, false, "", string(name), err, nil)
		return AuthResult{}, err
	}

	user, err := e.findByProvider(ctx, identity)
	if errors.Is(err, ErrUserNotFound) {
		return e.registerSSO(ctx, identity)
	}
	if err != nil {
		return AuthResult{}, backendErr(err)
	}

	result, err := e.sessionFor(ctx, user)
	if err != nil {
		return AuthResult{}, err
	}

	e.metricInc(MetricSSOLoginSuccess)
	e.emitAudit(ctx, auditEventSSOLogin, true, user.ID, string(name), nil, func() map[string]string {
		return map[string]string{"partial": strconv.FormatBool(result.Tokens.Partial())}
	})
	return result, nil
}

// LinkSSO consumes a filled state and attaches the provider account to userID.
func (e *Engine) LinkSSO(ctx context.Context, userID string, name provider.Name, state string) (UserRecord, error) {
	identity, err := e.consumeSSO(ctx, name, state)
	if err != nil {
		e.emitAudit(ctx, auditEventSSOLink, false, userID, string(name), err, nil)
		return UserRecord{}, err
	}
	return e.link(ctx, userID, identity)
}

// UnlinkSSO detaches the provider account from userID.
func (e *Engine) UnlinkSSO(ctx context.Context, userID string, name provider.Name) (UserRecord, error) {
	if _, err := e.adapter(name); err != nil {
		return UserRecord{}, err
	}
	return e.unlink(ctx, userID, name)
}
