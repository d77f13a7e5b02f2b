package goIdentity

import (
	"context"
	"time"

	"github.com/MrEthical07/goIdentity/jwt"
)

// IssueAccessToken signs an access token for userID.
func (e *Engine) IssueAccessToken(userID string, secondFactorSatisfied bool) (string, error) {
	return e.accessJWT.Issue(userID, secondFactorSatisfied)
}

// IssueRefreshToken signs a refresh token and records its hash in the ledger.
func (e *Engine) IssueRefreshToken(ctx context.Context, userID string, secondFactorSatisfied bool) (string, error) {
	token, err := e.refreshJWT.Issue(userID, secondFactorSatisfied)
	if err != nil {
		return "", err
	}
	if err := e.refresh.Save(ctx, userID, token); err != nil {
		return "", err
	}
	return token, nil
}

// IssueSessionPair is the 2FA gate. When secondFactorSatisfied is false the pair carries
// only a pre-2FA access token and RefreshToken is [RefreshTokenNotIssued]: no durable
// session exists until the second factor is verified.
func (e *Engine) IssueSessionPair(ctx context.Context, userID string, secondFactorSatisfied bool) (SessionTokens, error) {
	access, err := e.IssueAccessToken(userID, secondFactorSatisfied)
	if err != nil {
		return SessionTokens{}, err
	}
	if !secondFactorSatisfied {
		return SessionTokens{AccessToken: access, RefreshToken: RefreshTokenNotIssued}, nil
	}

	refresh, err := e.IssueRefreshToken(ctx, userID, true)
	if err != nil {
		return SessionTokens{}, err
	}
	return SessionTokens{AccessToken: access, RefreshToken: refresh}, nil
}

// sessionFor applies the 2FA gate to a user that just proved the first factor.
func (e *Engine) sessionFor(ctx context.Context, user UserRecord) (AuthResult, error) {
	tokens, err := e.IssueSessionPair(ctx, user.ID, !user.IsTwoFactorEnabled)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Tokens: tokens, User: user}, nil
}

// VerifyAccessToken checks signature, expiry and type. It does not require the second
// factor; callers decide what a partial session may do.
func (e *Engine) VerifyAccessToken(ctx context.Context, token string) (AccessClaims, error) {
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricVerifyLatency, time.Since(start)) }()
	}

	claims, err := e.accessJWT.Parse(token)
	if err != nil {
		return AccessClaims{}, ErrTokenInvalid
	}

	out := AccessClaims{
		UserID:                    claims.UserID(),
		SecondFactorAuthenticated: claims.SecondFactorAuthenticated,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// parseRefresh verifies the refresh JWT and its ledger record.
func (e *Engine) parseRefresh(ctx context.Context, refresh string) (*jwt.Claims, error) {
	if refresh == RefreshTokenNotIssued {
		return nil, ErrRefreshTokenInvalid
	}
	claims, err := e.refreshJWT.Parse(refresh)
	if err != nil {
		return nil, ErrRefreshTokenInvalid
	}
	if !claims.SecondFactorAuthenticated {
		return nil, ErrRefreshTokenInvalid
	}
	ok, err := e.refresh.Verify(ctx, claims.UserID(), refresh)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRefreshTokenInvalid
	}
	return claims, nil
}

// RefreshAccessToken returns a new access token for a live refresh token. The refresh
// token is not rotated and stays valid until it expires or is revoked.
func (e *Engine) RefreshAccessToken(ctx context.Context, refresh string) (string, error) {
	claims, err := e.parseRefresh(ctx, refresh)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", err, nil)
		return "", err
	}

	access, err := e.IssueAccessToken(claims.UserID(), claims.SecondFactorAuthenticated)
	if err != nil {
		return "", err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, claims.UserID(), "", nil, nil)
	return access, nil
}

// Logout revokes one refresh token.
func (e *Engine) Logout(ctx context.Context, refresh string) error {
	claims, err := e.parseRefresh(ctx, refresh)
	if err != nil {
		e.emitAudit(ctx, auditEventLogout, false, "", "", err, nil)
		return err
	}

	deleted, err := e.refresh.Revoke(ctx, claims.UserID(), refresh)
	if err != nil {
		return err
	}
	if !deleted {
		// a concurrent logout got there first
		return ErrRefreshTokenInvalid
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, claims.UserID(), "", nil, nil)
	return nil
}

// LogoutAll revokes every refresh token of the token's owner.
func (e *Engine) LogoutAll(ctx context.Context, refresh string) error {
	claims, err := e.parseRefresh(ctx, refresh)
	if err != nil {
		e.emitAudit(ctx, auditEventLogoutAll, false, "", "", err, nil)
		return err
	}

	if _, err := e.refresh.RevokeAll(ctx, claims.UserID()); err != nil {
		return err
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, claims.UserID(), "", nil, nil)
	return nil
}

func (e *Engine) revokeAllSessions(ctx context.Context, userID string) error {
	n, err := e.refresh.RevokeAll(ctx, userID)
	if err != nil {
		return err
	}
	e.log.Debug().Str("user_id", userID).Int64("revoked", n).Msg("refresh tokens revoked")
	return nil
}
