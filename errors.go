package goIdentity

import "errors"

// Credential and session errors.
var (
	// ErrInvalidCredentials is returned for any email/password mismatch. It never reveals which field was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned when a user id carried by a token no longer resolves.
	ErrUserNotFound = errors.New("user not found")
	// ErrTokenInvalid is returned when an access token fails signature, expiry or type checks.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrRefreshTokenInvalid is returned when a refresh token does not verify or has no ledger record.
	// Clients must re-authenticate.
	ErrRefreshTokenInvalid = errors.New("invalid refresh token")
	// ErrSecondFactorRequired is returned when a pre-2FA access token is presented to a full-session route.
	ErrSecondFactorRequired = errors.New("second factor required")
	// ErrEngineNotReady is returned when a required collaborator was not configured.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrBackendUnavailable wraps datastore failures that are not user errors.
	ErrBackendUnavailable = errors.New("identity backend unavailable")
	// ErrPasswordPolicy is returned when a password is unusable (empty or too short for the hasher).
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrInvalidEmail is returned for an empty email address.
	ErrInvalidEmail = errors.New("invalid email address")
)

// Action token errors.
var (
	// ErrActionTokenInvalid covers missing and expired action tokens. Both look like "never existed".
	ErrActionTokenInvalid = errors.New("action token expired or unknown")
	// ErrActionTokenMismatch is returned when a token exists but belongs to another flow.
	// The token is left in place.
	ErrActionTokenMismatch = errors.New("action token type mismatch")
)

// SSO correlation errors.
var (
	ErrSSONoSession            = errors.New("sso session not found")
	ErrSSOSessionNotReady      = errors.New("sso session not ready")
	ErrSSOCorruptedSession     = errors.New("sso session payload corrupted")
	ErrSSOSessionAlreadyFilled = errors.New("sso session already processed")
	// ErrProviderMismatch is returned when the state's provider tag disagrees with the claimed provider.
	// It is checked before any provider API call.
	ErrProviderMismatch        = errors.New("sso provider mismatch")
	ErrUnsupportedProvider     = errors.New("unsupported sso provider")
	ErrUpstreamProviderFailure = errors.New("sso provider request failed")
	// ErrUnexpectedProviderResponse means the provider answered but the payload shape was not understood.
	// This is an integration bug and is logged at error level.
	ErrUnexpectedProviderResponse = errors.New("unexpected sso provider response")
	// ErrProviderEmailMissing means the provider account has no verified primary email. Retrying
	// does not help until the user adds one upstream.
	ErrProviderEmailMissing = errors.New("sso provider account has no verified email")
)

// Account linking errors.
var (
	ErrEmailAlreadyExists               = errors.New("email already exists")
	ErrAlreadyLinkedToAnotherUser       = errors.New("provider account already linked to another user")
	ErrCannotUnlinkRegistrationProvider = errors.New("cannot unlink the provider the account was registered with")
)

// Two-factor errors.
var (
	ErrTwoFactorCodeInvalid     = errors.New("invalid two-factor code")
	ErrTwoFactorAlreadyEnabled  = errors.New("two-factor authentication already enabled")
	ErrTwoFactorNotEnabled      = errors.New("two-factor authentication not enabled")
	ErrTwoFactorSecretNotIssued = errors.New("two-factor secret not generated")
)
