package goIdentity

import (
	"context"
	"time"
)

// UserRecord is the flat user identity the core needs. PasswordHash is empty for users
// that registered through SSO only; GitHubID is zero when no GitHub account is linked.
type UserRecord struct {
	ID                        string
	Email                     string
	PasswordHash              string
	IsActive                  bool
	IsTwoFactorEnabled        bool
	TwoFactorSecret           string
	TwoFactorRecoveryCodeHash string
	// TwoFactorLastCounter is the last TOTP time step accepted for this user.
	TwoFactorLastCounter int64
	GoogleID                  string
	GitHubID                  int64
	RegisteredWithGoogle      bool
	RegisteredWithGitHub      bool
	TrialEndsAt               time.Time
	CreatedAt                 time.Time
}

// NewUser is the input to [CredentialStore.CreateUser].
type NewUser struct {
	Email                string
	PasswordHash         string
	IsActive             bool
	GoogleID             string
	GitHubID             int64
	RegisteredWithGoogle bool
	RegisteredWithGitHub bool
	TrialEndsAt          time.Time
}

// TwoFactorState is written as a whole by [CredentialStore.UpdateTwoFactor].
type TwoFactorState struct {
	Enabled          bool
	Secret           string
	RecoveryCodeHash string
	// LastCounter seeds the replay guard, usually with the step of the enabling code.
	LastCounter int64
}

// CredentialStore persists user identities.
//
// Lookups return [ErrUserNotFound] when nothing matches. CreateUser returns
// [ErrEmailAlreadyExists] on an email conflict and [ErrAlreadyLinkedToAnotherUser] when a
// provider id is already taken; SetGoogleID and SetGitHubID return the latter too.
// Passing "" or 0 to SetGoogleID / SetGitHubID clears the link.
type CredentialStore interface {
	CreateUser(ctx context.Context, input NewUser) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (UserRecord, error)
	GetUserByGitHubID(ctx context.Context, githubID int64) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	// UpdateEmail sets the email and marks the account active.
	UpdateEmail(ctx context.Context, userID, email string) error
	MarkActive(ctx context.Context, userID string) error
	UpdateTwoFactor(ctx context.Context, userID string, state TwoFactorState) error
	// SwapRecoveryCodeHash replaces the recovery code hash only if it still equals oldHash.
	// It reports whether the swap happened.
	SwapRecoveryCodeHash(ctx context.Context, userID, oldHash, newHash string) (bool, error)
	// AdvanceTOTPCounter stores counter only if it is greater than the stored one. It
	// reports whether the counter moved, so a replayed step is refused atomically.
	AdvanceTOTPCounter(ctx context.Context, userID string, counter int64) (bool, error)
	SetGoogleID(ctx context.Context, userID, googleID string) error
	SetGitHubID(ctx context.Context, userID string, githubID int64) error
	DeleteUser(ctx context.Context, userID string) error
}

// RefreshTokenRecord is one ledger row. TokenHash is never the raw token.
type RefreshTokenRecord struct {
	UserID    string
	TokenHash string
	CreatedAt time.Time
}

// RefreshTokenRepository stores hashed refresh tokens.
type RefreshTokenRepository interface {
	Create(ctx context.Context, record RefreshTokenRecord) error
	Exists(ctx context.Context, userID, tokenHash string) (bool, error)
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, userID, tokenHash string) (bool, error)
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
}

// ActionType tags an action token with the flow that may consume it.
type ActionType string

const (
	ActionEmailVerification       ActionType = "EMAIL_VERIFICATION"
	ActionPasswordReset           ActionType = "PASSWORD_RESET"
	ActionEmailChange             ActionType = "EMAIL_CHANGE"
	ActionProjectShare            ActionType = "PROJECT_SHARE"
	ActionOrganisationInvite      ActionType = "ORGANISATION_INVITE"
	ActionTransferProject         ActionType = "TRANSFER_PROJECT"
	ActionAddingProjectSubscriber ActionType = "ADDING_PROJECT_SUBSCRIBER"
)

// Valid reports whether a is one of the known action types.
func (a ActionType) Valid() bool {
	switch a {
	case ActionEmailVerification, ActionPasswordReset, ActionEmailChange, ActionProjectShare,
		ActionOrganisationInvite, ActionTransferProject, ActionAddingProjectSubscriber:
		return true
	default:
		return false
	}
}

// ActionToken is an opaque single-use token. NewValue depends on Action: the new email
// for EMAIL_CHANGE, a foreign id or an "id1:id2" pair for the project flows.
type ActionToken struct {
	ID        string
	UserID    string
	Action    ActionType
	NewValue  string
	CreatedAt time.Time
}

// ActionTokenRepository persists action tokens. Get returns [ErrActionTokenInvalid] when
// the id is unknown.
type ActionTokenRepository interface {
	Create(ctx context.Context, token ActionToken) error
	Get(ctx context.Context, id string) (ActionToken, error)
	// Delete reports whether a row was removed. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) (bool, error)
	DeleteExpired(ctx context.Context, action ActionType, createdBefore time.Time) (int64, error)
}

// Mail templates understood by the delivery side.
const (
	MailTemplateEmailVerification = "email-verification"
	MailTemplatePasswordReset     = "password-reset"
	MailTemplateEmailChange       = "email-change"
)

// Mail is a delivery request. Rendering happens elsewhere.
type Mail struct {
	To            string `json:"to"`
	Template      string `json:"template"`
	ActionTokenID string `json:"action_token_id"`
}

// Mailer hands mail off for delivery. Errors are logged by the Engine and never fail the
// calling flow.
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

// RefreshTokenNotIssued is the RefreshToken of a partial session pair.
const RefreshTokenNotIssued = ""

// SessionTokens is an access/refresh pair. RefreshToken is [RefreshTokenNotIssued] when the
// second factor is still outstanding.
type SessionTokens struct {
	AccessToken  string
	RefreshToken string
}

// Partial reports whether this pair is the pre-2FA access-only pair.
func (t SessionTokens) Partial() bool {
	return t.RefreshToken == RefreshTokenNotIssued
}

// AuthResult is returned by every operation that signs a user in.
type AuthResult struct {
	Tokens SessionTokens
	User   UserRecord
	// IsNewUser is set when an SSO authenticate registered the account.
	IsNewUser bool
	// RecoveryCode carries the replacement code after a recovery code was spent.
	RecoveryCode string
}

// AccessClaims is the verified content of an access token.
type AccessClaims struct {
	UserID                    string
	SecondFactorAuthenticated bool
	ExpiresAt                 time.Time
}

// SSOAuthURL is returned by [Engine.GenerateSSOAuthURL].
type SSOAuthURL struct {
	State     string
	AuthURL   string
	ExpiresIn time.Duration
}

// TwoFactorSetup carries a freshly generated, not yet enabled, TOTP secret.
type TwoFactorSetup struct {
	Secret     string
	OTPAuthURL string
}

// TwoFactorEnabled is returned once 2FA is switched on. RecoveryCode is shown to the user
// exactly once.
type TwoFactorEnabled struct {
	RecoveryCode string
	Tokens       SessionTokens
}
