package goIdentity

import (
	"context"
	"errors"
)

func (e *Engine) sendVerificationMail(ctx context.Context, user UserRecord) {
	token, err := e.actionTokens.Create(ctx, user.ID, ActionEmailVerification, "")
	if err != nil {
		e.log.Error().Err(err).Str("user_id", user.ID).Msg("email verification token not created")
		return
	}
	e.sendMail(ctx, Mail{To: user.Email, Template: MailTemplateEmailVerification, ActionTokenID: token.ID})
}

// RequestEmailVerification resends the verification link. Already active accounts are a no-op.
func (e *Engine) RequestEmailVerification(ctx context.Context, userID string) error {
	user, err := e.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsActive {
		return nil
	}

	e.sendVerificationMail(ctx, user)
	e.metricInc(MetricEmailVerificationRequest)
	e.emitAudit(ctx, auditEventEmailVerificationRequest, true, userID, "", nil, nil)
	return nil
}

// VerifyEmail consumes an EMAIL_VERIFICATION token and marks the account active.
func (e *Engine) VerifyEmail(ctx context.Context, tokenID string) error {
	token, err := e.actionTokens.consume(ctx, tokenID, ActionEmailVerification)
	if err != nil {
		e.metricInc(MetricEmailVerificationFailure)
		e.emitAudit(ctx, auditEventEmailVerificationConfirm, false, "", "", err, nil)
		return err
	}

	if err := e.users.MarkActive(ctx, token.UserID); err != nil {
		return backendErr(err)
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerificationConfirm, true, token.UserID, "", nil, nil)
	return nil
}

// RequestPasswordReset mails a reset link. Unknown emails return nil so the endpoint
// cannot be used to enumerate accounts.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := e.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return backendErr(err)
	}

	token, err := e.actionTokens.Create(ctx, user.ID, ActionPasswordReset, "")
	if err != nil {
		return err
	}
	e.sendMail(ctx, Mail{To: user.Email, Template: MailTemplatePasswordReset, ActionTokenID: token.ID})

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.ID, "", nil, nil)
	return nil
}

// ConfirmPasswordReset consumes a PASSWORD_RESET token, sets the new password and revokes
// every refresh token of the user.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, tokenID, newPassword string) error {
	// hash first so a policy failure does not burn the token
	hash, err := e.hashPassword(ctx, newPassword)
	if err != nil {
		return err
	}

	token, err := e.actionTokens.consume(ctx, tokenID, ActionPasswordReset)
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", err, nil)
		return err
	}

	if err := e.users.UpdatePasswordHash(ctx, token.UserID, hash); err != nil {
		return backendErr(err)
	}
	if err := e.revokeAllSessions(ctx, token.UserID); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, token.UserID, "", nil, nil)
	return nil
}

// RequestEmailChange checks the password and mails a confirmation link to newEmail.
func (e *Engine) RequestEmailChange(ctx context.Context, userID, newEmail, plainPassword string) error {
	newEmail = normalizeEmail(newEmail)
	user, err := e.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := e.checkPassword(ctx, user, plainPassword); err != nil {
		e.emitAudit(ctx, auditEventEmailChangeRequest, false, userID, "", err, nil)
		return err
	}
	if err := e.ensureEmailFree(ctx, newEmail); err != nil {
		e.emitAudit(ctx, auditEventEmailChangeRequest, false, userID, "", err, nil)
		return err
	}

	token, err := e.actionTokens.Create(ctx, userID, ActionEmailChange, newEmail)
	if err != nil {
		return err
	}
	e.sendMail(ctx, Mail{To: newEmail, Template: MailTemplateEmailChange, ActionTokenID: token.ID})

	e.metricInc(MetricEmailChangeRequest)
	e.emitAudit(ctx, auditEventEmailChangeRequest, true, userID, "", nil, nil)
	return nil
}

// ConfirmEmailChange consumes an EMAIL_CHANGE token and applies its new address. The
// address is checked again since another account may have taken it meanwhile.
func (e *Engine) ConfirmEmailChange(ctx context.Context, tokenID string) error {
	token, err := e.actionTokens.consume(ctx, tokenID, ActionEmailChange)
	if err != nil {
		e.metricInc(MetricEmailChangeConfirmFailure)
		e.emitAudit(ctx, auditEventEmailChangeConfirm, false, "", "", err, nil)
		return err
	}

	if err := e.ensureEmailFree(ctx, token.NewValue); err != nil {
		e.metricInc(MetricEmailChangeConfirmFailure)
		e.emitAudit(ctx, auditEventEmailChangeConfirm, false, token.UserID, "", err, nil)
		return err
	}
	if err := e.users.UpdateEmail(ctx, token.UserID, token.NewValue); err != nil {
		return backendErr(err)
	}

	e.metricInc(MetricEmailChangeConfirmSuccess)
	e.emitAudit(ctx, auditEventEmailChangeConfirm, true, token.UserID, "", nil, nil)
	return nil
}

func (e *Engine) ensureEmailFree(ctx context.Context, email string) error {
	if email == "" {
		return ErrInvalidEmail
	}
	_, err := e.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return ErrEmailAlreadyExists
	case errors.Is(err, ErrUserNotFound):
		return nil
	default:
		return backendErr(err)
	}
}
