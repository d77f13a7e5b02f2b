package goIdentity

import (
	"context"

	"github.com/MrEthical07/goIdentity/internal"
)

type secondFactorMethod int

const (
	methodNone secondFactorMethod = iota
	methodTOTP
	methodRecoveryCode
)

// GenerateTwoFactorSecret issues a new TOTP secret for userID without enabling 2FA.
// Calling it again replaces the pending secret.
func (e *Engine) GenerateTwoFactorSecret(ctx context.Context, userID string) (TwoFactorSetup, error) {
	user, err := e.getUser(ctx, userID)
	if err != nil {
		return TwoFactorSetup{}, err
	}
	if user.IsTwoFactorEnabled {
		return TwoFactorSetup{}, ErrTwoFactorAlreadyEnabled
	}

	secret, otpURL, err := e.totp.Generate(user.Email)
	if err != nil {
		return TwoFactorSetup{}, err
	}
	if err := e.users.UpdateTwoFactor(ctx, userID, TwoFactorState{Enabled: false, Secret: secret}); err != nil {
		return TwoFactorSetup{}, backendErr(err)
	}

	e.emitAudit(ctx, auditEventTwoFactorSetupRequested, true, userID, "", nil, nil)
	return TwoFactorSetup{Secret: secret, OTPAuthURL: otpURL}, nil
}

// EnableTwoFactor verifies a TOTP code against the pending secret, switches 2FA on and
// returns a one-time recovery code. Every existing session is revoked and a fresh full
// pair is issued for the caller.
func (e *Engine) EnableTwoFactor(ctx context.Context, userID, code string) (TwoFactorEnabled, error) {
	user, err := e.getUser(ctx, userID)
	if err != nil {
		return TwoFactorEnabled{}, err
	}
	if user.IsTwoFactorEnabled {
		return TwoFactorEnabled{}, ErrTwoFactorAlreadyEnabled
	}
	if user.TwoFactorSecret == "" {
		return TwoFactorEnabled{}, ErrTwoFactorSecretNotIssued
	}
	counter, ok := e.totp.Verify(code, user.TwoFactorSecret, e.now())
	if !ok {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorEnabled, false, userID, "", ErrTwoFactorCodeInvalid, nil)
		return TwoFactorEnabled{}, ErrTwoFactorCodeInvalid
	}

	recovery, err := internal.NewRecoveryCode()
	if err != nil {
		return TwoFactorEnabled{}, err
	}
	err = e.users.UpdateTwoFactor(ctx, userID, TwoFactorState{
		Enabled:          true,
		Secret:           user.TwoFactorSecret,
		RecoveryCodeHash: internal.HashRecoveryCode(recovery),
		LastCounter:      counter,
	})
	if err != nil {
		return TwoFactorEnabled{}, backendErr(err)
	}
	if err := e.revokeAllSessions(ctx, userID); err != nil {
		return TwoFactorEnabled{}, err
	}

	tokens, err := e.IssueSessionPair(ctx, userID, true)
	if err != nil {
		return TwoFactorEnabled{}, err
	}

	e.metricInc(MetricTwoFactorEnabled)
	e.emitAudit(ctx, auditEventTwoFactorEnabled, true, userID, "", nil, nil)
	return TwoFactorEnabled{RecoveryCode: recovery, Tokens: tokens}, nil
}

// DisableTwoFactor accepts a TOTP code or the recovery code and clears the secret, the
// recovery code and the flag.
func (e *Engine) DisableTwoFactor(ctx context.Context, userID, code string) error {
	user, err := e.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.IsTwoFactorEnabled {
		return ErrTwoFactorNotEnabled
	}
	method, counter := e.checkSecondFactor(user, code)
	if method == methodNone {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorDisabled, false, userID, "", ErrTwoFactorCodeInvalid, nil)
		return ErrTwoFactorCodeInvalid
	}
	if method == methodTOTP {
		if err := e.acceptTOTPStep(ctx, auditEventTwoFactorDisabled, userID, counter); err != nil {
			return err
		}
	}

	if err := e.users.UpdateTwoFactor(ctx, userID, TwoFactorState{}); err != nil {
		return backendErr(err)
	}

	e.metricInc(MetricTwoFactorDisabled)
	e.emitAudit(ctx, auditEventTwoFactorDisabled, true, userID, "", nil, nil)
	return nil
}

// AuthenticateTwoFactor completes a partial login. A TOTP code or the recovery code
// yields a full pair. A spent recovery code is replaced and the new one is returned in
// AuthResult.RecoveryCode.
func (e *Engine) AuthenticateTwoFactor(ctx context.Context, userID, code string) (AuthResult, error) {
	user, err := e.getUser(ctx, userID)
	if err != nil {
		return AuthResult{}, err
	}
	if !user.IsTwoFactorEnabled {
		return AuthResult{}, ErrTwoFactorNotEnabled
	}

	method, counter := e.checkSecondFactor(user, code)
	if method == methodNone {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorAuthenticate, false, userID, "", ErrTwoFactorCodeInvalid, nil)
		return AuthResult{}, ErrTwoFactorCodeInvalid
	}

	var nextRecovery string
	switch method {
	case methodTOTP:
		if err := e.acceptTOTPStep(ctx, auditEventTwoFactorAuthenticate, userID, counter); err != nil {
			return AuthResult{}, err
		}
	case methodRecoveryCode:
		nextRecovery, err = e.rotateRecoveryCode(ctx, user)
		if err != nil {
			return AuthResult{}, err
		}
		e.metricInc(MetricRecoveryCodeUsed)
		e.emitAudit(ctx, auditEventTwoFactorRecoveryCodeUsed, true, userID, "", nil, nil)
	}

	tokens, err := e.IssueSessionPair(ctx, userID, true)
	if err != nil {
		return AuthResult{}, err
	}

	e.metricInc(MetricTwoFactorSuccess)
	e.emitAudit(ctx, auditEventTwoFactorAuthenticate, true, userID, "", nil, nil)
	return AuthResult{Tokens: tokens, User: user, RecoveryCode: nextRecovery}, nil
}

// checkSecondFactor returns the method code satisfies and, for TOTP, the matched step.
func (e *Engine) checkSecondFactor(user UserRecord, code string) (secondFactorMethod, int64) {
	if code == "" {
		return methodNone, 0
	}
	if counter, ok := e.totp.Verify(code, user.TwoFactorSecret, e.now()); ok {
		return methodTOTP, counter
	}
	if internal.EqualHash(internal.HashRecoveryCode(code), user.TwoFactorRecoveryCodeHash) {
		return methodRecoveryCode, 0
	}
	return methodNone, 0
}

// acceptTOTPStep advances the stored step. A step at or below the last accepted one is a
// replay of an already used code.
func (e *Engine) acceptTOTPStep(ctx context.Context, eventType, userID string, counter int64) error {
	if !e.config.TwoFactor.EnforceReplayProtection {
		return nil
	}
	advanced, err := e.users.AdvanceTOTPCounter(ctx, userID, counter)
	if err != nil {
		return backendErr(err)
	}
	if !advanced {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, eventType, false, userID, "", ErrTwoFactorCodeInvalid, func() map[string]string {
			return map[string]string{"reason": "totp_replay"}
		})
		return ErrTwoFactorCodeInvalid
	}
	return nil
}

// rotateRecoveryCode swaps the spent hash for a new one. Losing the swap means a concurrent
// request spent the same code first.
func (e *Engine) rotateRecoveryCode(ctx context.Context, user UserRecord) (string, error) {
	next, err := internal.NewRecoveryCode()
	if err != nil {
		return "", err
	}
	swapped, err := e.users.SwapRecoveryCodeHash(ctx, user.ID, user.TwoFactorRecoveryCodeHash, internal.HashRecoveryCode(next))
	if err != nil {
		return "", backendErr(err)
	}
	if !swapped {
		e.metricInc(MetricTwoFactorFailure)
		return "", ErrTwoFactorCodeInvalid
	}
	return next, nil
}
