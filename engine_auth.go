package goIdentity

import (
	"context"
	"errors"
)

// Register creates an unverified password account, mails a verification link and
// returns a full session. A new account has no second factor yet.
func (e *Engine) Register(ctx context.Context, email, plainPassword string) (AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return AuthResult{}, ErrInvalidEmail
	}

	if _, err := e.users.GetUserByEmail(ctx, email); err == nil {
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, auditEventRegister, false, "", "", ErrEmailAlreadyExists, nil)
		return AuthResult{}, ErrEmailAlreadyExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return AuthResult{}, backendErr(err)
	}

	hash, err := e.hashPassword(ctx, plainPassword)
	if err != nil {
		return AuthResult{}, err
	}

	user, err := e.users.CreateUser(ctx, NewUser{
		Email:        email,
		PasswordHash: hash,
		IsActive:     false,
		TrialEndsAt:  e.now().UTC().Add(e.config.Account.TrialPeriod),
	})
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			e.metricInc(MetricRegisterDuplicate)
		}
		e.emitAudit(ctx, auditEventRegister, false, "", "", err, nil)
		return AuthResult{}, backendErr(err)
	}

	e.sendVerificationMail(ctx, user)

	result, err := e.sessionFor(ctx, user)
	if err != nil {
		return AuthResult{}, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegister, true, user.ID, "", nil, nil)
	return result, nil
}

// Login checks email and password. Users with 2FA enabled receive a partial pair.
// Every mismatch, including SSO-only accounts without a password, is ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, email, plainPassword string) (AuthResult, error) {
	user, err := e.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			err = ErrInvalidCredentials
		}
		e.loginFailed(ctx, "", err)
		return AuthResult{}, backendErr(err)
	}

	if err := e.checkPassword(ctx, user, plainPassword); err != nil {
		e.loginFailed(ctx, user.ID, err)
		return AuthResult{}, err
	}

	e.upgradePasswordHash(ctx, user, plainPassword)

	result, err := e.sessionFor(ctx, user)
	if err != nil {
		return AuthResult{}, err
	}

	if result.Tokens.Partial() {
		e.metricInc(MetricLoginSecondFactorRequired)
		e.emitAudit(ctx, auditEventLoginPartial, true, user.ID, "", nil, nil)
	} else {
		e.metricInc(MetricLoginSuccess)
		e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, "", nil, nil)
	}
	return result, nil
}

func (e *Engine) loginFailed(ctx context.Context, userID string, err error) {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, "", err, nil)
}

// upgradePasswordHash rewrites legacy bcrypt or weaker argon2 hashes after a successful
// login. Failures only log.
func (e *Engine) upgradePasswordHash(ctx context.Context, user UserRecord, plainPassword string) {
	if !e.hasher.NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := e.hasher.Hash(ctx, plainPassword)
	if err != nil {
		e.log.Warn().Err(err).Str("user_id", user.ID).Msg("password rehash failed")
		return
	}
	if err := e.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		e.log.Warn().Err(err).Str("user_id", user.ID).Msg("password rehash not persisted")
	}
}

// ChangePassword replaces the password after checking the old one and ends every session.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := e.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := e.checkPassword(ctx, user, oldPassword); err != nil {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChange, false, userID, "", err, nil)
		return err
	}

	hash, err := e.hashPassword(ctx, newPassword)
	if err != nil {
		return err
	}
	if err := e.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return backendErr(err)
	}
	if err := e.revokeAllSessions(ctx, userID); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChange, true, userID, "", nil, nil)
	return nil
}

// DeleteAccount removes the user after revoking every refresh token. SSO-only users have
// no password to confirm.
func (e *Engine) DeleteAccount(ctx context.Context, userID, plainPassword string) error {
	user, err := e.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.PasswordHash != "" {
		if err := e.checkPassword(ctx, user, plainPassword); err != nil {
			e.emitAudit(ctx, auditEventAccountDeleted, false, userID, "", err, nil)
			return err
		}
	}

	if err := e.revokeAllSessions(ctx, userID); err != nil {
		return err
	}
	if err := e.users.DeleteUser(ctx, userID); err != nil {
		return backendErr(err)
	}

	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, auditEventAccountDeleted, true, userID, "", nil, nil)
	return nil
}

// CurrentUser returns the account behind a verified access token.
func (e *Engine) CurrentUser(ctx context.Context, userID string) (UserRecord, error) {
	return e.getUser(ctx, userID)
}
