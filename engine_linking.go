package goIdentity

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdentity/provider"
)

// registerSSO creates a user vouched for by the provider. An email already held by any
// account is refused so SSO signup cannot take over an existing account.
func (e *Engine) registerSSO(ctx context.Context, id ssoIdentity) (AuthResult, error) {
	if err := e.ensureEmailFree(ctx, id.email); err != nil {
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, auditEventSSOSignup, false, "", string(id.provider), err, nil)
		return AuthResult{}, err
	}

	input := NewUser{
		Email:       id.email,
		IsActive:    true,
		TrialEndsAt: e.now().UTC().Add(e.config.Account.TrialPeriod),
	}
	switch id.provider {
	case provider.GitHub:
		input.GitHubID = id.githubID
		input.RegisteredWithGitHub = true
	default:
		input.GoogleID = id.googleID
		input.RegisteredWithGoogle = true
	}

	user, err := e.users.CreateUser(ctx, input)
	if err != nil {
		e.emitAudit(ctx, auditEventSSOSignup, false, "", string(id.provider), err, nil)
		return AuthResult{}, backendErr(err)
	}

	tokens, err := e.IssueSessionPair(ctx, user.ID, true)
	if err != nil {
		return AuthResult{}, err
	}

	e.metricInc(MetricSSOSignup)
	e.emitAudit(ctx, auditEventSSOSignup, true, user.ID, string(id.provider), nil, nil)
	return AuthResult{Tokens: tokens, User: user, IsNewUser: true}, nil
}

// link sets the provider id on userID. A provider id held by another user is refused.
// Replacing the provider account an SSO-registered user signed up with is refused too,
// since it would strand their only credential.
func (e *Engine) link(ctx context.Context, userID string, id ssoIdentity) (UserRecord, error) {
	name := string(id.provider)

	owner, err := e.findByProvider(ctx, id)
	switch {
	case err == nil && owner.ID != userID:
		e.emitAudit(ctx, auditEventSSOLink, false, userID, name, ErrAlreadyLinkedToAnotherUser, nil)
		return UserRecord{}, ErrAlreadyLinkedToAnotherUser
	case err == nil:
		return owner, nil
	case !errors.Is(err, ErrUserNotFound):
		return UserRecord{}, backendErr(err)
	}

	user, err := e.getUser(ctx, userID)
	if err != nil {
		return UserRecord{}, err
	}

	switch id.provider {
	case provider.GitHub:
		if user.RegisteredWithGitHub && user.GitHubID != 0 {
			err = ErrCannotUnlinkRegistrationProvider
			break
		}
		err = e.users.SetGitHubID(ctx, userID, id.githubID)
		user.GitHubID = id.githubID
	default:
		if user.RegisteredWithGoogle && user.GoogleID != "" {
			err = ErrCannotUnlinkRegistrationProvider
			break
		}
		err = e.users.SetGoogleID(ctx, userID, id.googleID)
		user.GoogleID = id.googleID
	}
	if err != nil {
		e.emitAudit(ctx, auditEventSSOLink, false, userID, name, err, nil)
		return UserRecord{}, backendErr(err)
	}

	e.metricInc(MetricAccountLinked)
	e.emitAudit(ctx, auditEventSSOLink, true, userID, name, nil, nil)
	return user, nil
}

// unlink clears the provider id unless the account was registered with that provider.
func (e *Engine) unlink(ctx context.Context, userID string, name provider.Name) (UserRecord, error) {
	user, err := e.getUser(ctx, userID)
	if err != nil {
		return UserRecord{}, err
	}

	switch name {
	case provider.GitHub:
		if user.RegisteredWithGitHub {
			err = ErrCannotUnlinkRegistrationProvider
			break
		}
		err = e.users.SetGitHubID(ctx, userID, 0)
		user.GitHubID = 0
	default:
		if user.RegisteredWithGoogle {
			err = ErrCannotUnlinkRegistrationProvider
			break
		}
		err = e.users.SetGoogleID(ctx, userID, "")
		user.GoogleID = ""
	}
	if err != nil {
		e.emitAudit(ctx, auditEventSSOUnlink, false, userID, string(name), err, nil)
		return UserRecord{}, backendErr(err)
	}

	e.metricInc(MetricAccountUnlinked)
	e.emitAudit(ctx, auditEventSSOUnlink, true, userID, string(name), nil, nil)
	return user, nil
}
