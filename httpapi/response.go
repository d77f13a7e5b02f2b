package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/rs/zerolog"
)

// API error codes returned in JSON { "error": "...", "code": "..." } for stable client handling.
const (
	ErrCodeInvalidRequest        = "invalid_request"
	ErrCodeInvalidCredentials    = "invalid_credentials"
	ErrCodeInvalidToken          = "invalid_token"
	ErrCodeInvalidRefreshToken   = "invalid_refresh_token"
	ErrCodeSecondFactorRequired  = "second_factor_required"
	ErrCodeUserNotFound          = "user_not_found"
	ErrCodeEmailExists           = "email_already_exists"
	ErrCodePasswordPolicy        = "password_policy"
	ErrCodeInvalidActionToken    = "invalid_action_token"
	ErrCodeSSOSessionInvalid     = "sso_session_invalid"
	ErrCodeSSOSessionNotReady    = "sso_session_not_ready"
	ErrCodeProviderMismatch      = "provider_mismatch"
	ErrCodeUnsupportedProvider   = "unsupported_provider"
	ErrCodeUpstreamFailure       = "upstream_provider_failure"
	ErrCodeProviderEmailMissing  = "provider_email_missing"
	ErrCodeAlreadyLinked         = "already_linked_to_another_user"
	ErrCodeCannotUnlink          = "cannot_unlink_registration_provider"
	ErrCodeTwoFactorCodeInvalid  = "invalid_two_factor_code"
	ErrCodeTwoFactorEnabled      = "two_factor_already_enabled"
	ErrCodeTwoFactorNotEnabled   = "two_factor_not_enabled"
	ErrCodeTwoFactorNotGenerated = "two_factor_secret_not_generated"
	ErrCodeUnavailable           = "service_unavailable"
	ErrCodeInternal              = "internal_error"
)

type errorMapping struct {
	err    error
	status int
	code   string
	// message replaces err.Error() in the response when set.
	message string
}

// errorMappings is checked in order with errors.Is. Action token mismatch answers like an
// unknown token, and the SSO session states a client cannot act on collapse into one code.
var errorMappings = []errorMapping{
	{err: goIdentity.ErrInvalidCredentials, status: http.StatusConflict, code: ErrCodeInvalidCredentials},
	{err: goIdentity.ErrInvalidEmail, status: http.StatusBadRequest, code: ErrCodeInvalidRequest},
	{err: goIdentity.ErrPasswordPolicy, status: http.StatusBadRequest, code: ErrCodePasswordPolicy},
	{err: goIdentity.ErrEmailAlreadyExists, status: http.StatusConflict, code: ErrCodeEmailExists},
	{err: goIdentity.ErrAlreadyLinkedToAnotherUser, status: http.StatusConflict, code: ErrCodeAlreadyLinked},
	{err: goIdentity.ErrCannotUnlinkRegistrationProvider, status: http.StatusConflict, code: ErrCodeCannotUnlink},
	{err: goIdentity.ErrActionTokenInvalid, status: http.StatusNotFound, code: ErrCodeInvalidActionToken},
	{err: goIdentity.ErrActionTokenMismatch, status: http.StatusNotFound, code: ErrCodeInvalidActionToken,
		message: goIdentity.ErrActionTokenInvalid.Error()},
	{err: goIdentity.ErrRefreshTokenInvalid, status: http.StatusUnauthorized, code: ErrCodeInvalidRefreshToken},
	{err: goIdentity.ErrTokenInvalid, status: http.StatusUnauthorized, code: ErrCodeInvalidToken},
	{err: goIdentity.ErrSecondFactorRequired, status: http.StatusForbidden, code: ErrCodeSecondFactorRequired},
	{err: goIdentity.ErrUserNotFound, status: http.StatusNotFound, code: ErrCodeUserNotFound},
	{err: goIdentity.ErrSSONoSession, status: http.StatusBadRequest, code: ErrCodeSSOSessionInvalid},
	{err: goIdentity.ErrSSOSessionAlreadyFilled, status: http.StatusBadRequest, code: ErrCodeSSOSessionInvalid,
		message: goIdentity.ErrSSONoSession.Error()},
	{err: goIdentity.ErrSSOSessionNotReady, status: http.StatusConflict, code: ErrCodeSSOSessionNotReady},
	{err: goIdentity.ErrProviderMismatch, status: http.StatusBadRequest, code: ErrCodeProviderMismatch},
	{err: goIdentity.ErrUnsupportedProvider, status: http.StatusBadRequest, code: ErrCodeUnsupportedProvider},
	{err: goIdentity.ErrUpstreamProviderFailure, status: http.StatusBadGateway, code: ErrCodeUpstreamFailure},
	{err: goIdentity.ErrProviderEmailMissing, status: http.StatusUnprocessableEntity, code: ErrCodeProviderEmailMissing},
	{err: goIdentity.ErrTwoFactorCodeInvalid, status: http.StatusBadRequest, code: ErrCodeTwoFactorCodeInvalid},
	{err: goIdentity.ErrTwoFactorAlreadyEnabled, status: http.StatusConflict, code: ErrCodeTwoFactorEnabled},
	{err: goIdentity.ErrTwoFactorNotEnabled, status: http.StatusConflict, code: ErrCodeTwoFactorNotEnabled},
	{err: goIdentity.ErrTwoFactorSecretNotIssued, status: http.StatusBadRequest, code: ErrCodeTwoFactorNotGenerated},
	{err: goIdentity.ErrEngineNotReady, status: http.StatusServiceUnavailable, code: ErrCodeUnavailable},
	{err: goIdentity.ErrBackendUnavailable, status: http.StatusServiceUnavailable, code: ErrCodeUnavailable},
}

// writeErr sends JSON { "error": message, "code": errCode }.
func writeErr(w http.ResponseWriter, status int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": errCode})
}

// writeEngineErr maps an engine error onto the envelope. Corrupted SSO payloads, provider
// shape changes and unknown errors are server errors and are logged; internal detail is
// never echoed to the client.
func writeEngineErr(w http.ResponseWriter, log zerolog.Logger, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		msg := m.message
		if msg == "" {
			msg = m.err.Error()
		}
		if m.status >= http.StatusInternalServerError {
			log.Warn().Err(err).Int("status", m.status).Msg("request failed")
		}
		writeErr(w, m.status, m.code, msg)
		return
	}

	log.Error().Err(err).Msg("internal error")
	writeErr(w, http.StatusInternalServerError, ErrCodeInternal, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
