package goIdentity

import (
	"context"
	"errors"
)

const (
	auditEventRegister                  = "register"
	auditEventLoginSuccess              = "login_success"
	auditEventLoginFailure              = "login_failure"
	auditEventLoginPartial              = "login_second_factor_required"
	auditEventRefreshSuccess            = "refresh_success"
	auditEventRefreshInvalid            = "refresh_invalid"
	auditEventLogout                    = "logout"
	auditEventLogoutAll                 = "logout_all"
	auditEventEmailVerificationRequest  = "email_verification_request"
	auditEventEmailVerificationConfirm  = "email_verification_confirm"
	auditEventPasswordResetRequest      = "password_reset_request"
	auditEventPasswordResetConfirm      = "password_reset_confirm"
	auditEventEmailChangeRequest        = "email_change_request"
	auditEventEmailChangeConfirm        = "email_change_confirm"
	auditEventPasswordChange            = "password_change"
	auditEventAccountDeleted            = "account_deleted"
	auditEventSSOExchange               = "sso_exchange"
	auditEventSSOLogin                  = "sso_login"
	auditEventSSOSignup                 = "sso_signup"
	auditEventSSOLink                   = "sso_link"
	auditEventSSOUnlink                 = "sso_unlink"
	auditEventTwoFactorSetupRequested   = "2fa_setup_requested"
	auditEventTwoFactorEnabled          = "2fa_enabled"
	auditEventTwoFactorDisabled         = "2fa_disabled"
	auditEventTwoFactorAuthenticate     = "2fa_authenticate"
	auditEventTwoFactorRecoveryCodeUsed = "2fa_recovery_code_used"
)

// AuditErrorCode is the stable failure label stored in [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrInvalidCredentials   AuditErrorCode = "invalid_credentials"
	auditErrInvalidToken         AuditErrorCode = "invalid_token"
	auditErrSecondFactorRequired AuditErrorCode = "second_factor_required"
	auditErrUserNotFound         AuditErrorCode = "user_not_found"
	auditErrPasswordPolicy       AuditErrorCode = "password_policy"
	auditErrActionTokenInvalid   AuditErrorCode = "action_token_invalid"
	auditErrSSOSession           AuditErrorCode = "sso_session"
	auditErrSSOCorrupted         AuditErrorCode = "sso_corrupted"
	auditErrProviderMismatch     AuditErrorCode = "provider_mismatch"
	auditErrUnsupportedProvider  AuditErrorCode = "unsupported_provider"
	auditErrUpstream             AuditErrorCode = "upstream_failure"
	auditErrUpstreamShape        AuditErrorCode = "upstream_unexpected_response"
	auditErrProviderEmail        AuditErrorCode = "provider_email_missing"
	auditErrDuplicate            AuditErrorCode = "duplicate"
	auditErrLinkConflict         AuditErrorCode = "link_conflict"
	auditErrUnlinkForbidden      AuditErrorCode = "unlink_forbidden"
	auditErrTwoFactorInvalid     AuditErrorCode = "2fa_invalid"
	auditErrTwoFactorState       AuditErrorCode = "2fa_state"
	auditErrUnavailable          AuditErrorCode = "backend_unavailable"
	auditErrInternal             AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	provider string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil {
		return
	}
	e.audit.Record(ctx, auditRecord{
		eventType: eventType,
		success:   success,
		userID:    userID,
		provider:  provider,
		err:       err,
		metadata:  metadataBuilder,
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrRefreshTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrSecondFactorRequired):
		return auditErrSecondFactorRequired
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrPasswordPolicy), errors.Is(err, ErrInvalidEmail):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrActionTokenInvalid),
		errors.Is(err, ErrActionTokenMismatch):
		return auditErrActionTokenInvalid
	case errors.Is(err, ErrSSOCorruptedSession):
		return auditErrSSOCorrupted
	case errors.Is(err, ErrSSONoSession),
		errors.Is(err, ErrSSOSessionNotReady),
		errors.Is(err, ErrSSOSessionAlreadyFilled):
		return auditErrSSOSession
	case errors.Is(err, ErrProviderMismatch):
		return auditErrProviderMismatch
	case errors.Is(err, ErrUnsupportedProvider):
		return auditErrUnsupportedProvider
	case errors.Is(err, ErrUnexpectedProviderResponse):
		return auditErrUpstreamShape
	case errors.Is(err, ErrUpstreamProviderFailure):
		return auditErrUpstream
	case errors.Is(err, ErrProviderEmailMissing):
		return auditErrProviderEmail
	case errors.Is(err, ErrEmailAlreadyExists):
		return auditErrDuplicate
	case errors.Is(err, ErrAlreadyLinkedToAnotherUser):
		return auditErrLinkConflict
	case errors.Is(err, ErrCannotUnlinkRegistrationProvider):
		return auditErrUnlinkForbidden
	case errors.Is(err, ErrTwoFactorCodeInvalid):
		return auditErrTwoFactorInvalid
	case errors.Is(err, ErrTwoFactorAlreadyEnabled),
		errors.Is(err, ErrTwoFactorNotEnabled),
		errors.Is(err, ErrTwoFactorSecretNotIssued):
		return auditErrTwoFactorState
	case errors.Is(err, ErrBackendUnavailable),
		errors.Is(err, ErrEngineNotReady):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
