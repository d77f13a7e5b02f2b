package httpapi

import (
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// userResponse is the public view of a user. Hashes and the TOTP secret never leave the server.
type userResponse struct {
	ID                   string     `json:"id"`
	Email                string     `json:"email"`
	IsActive             bool       `json:"isActive"`
	IsTwoFactorEnabled   bool       `json:"isTwoFactorEnabled"`
	HasPassword          bool       `json:"hasPassword"`
	GoogleLinked         bool       `json:"googleLinked"`
	GitHubLinked         bool       `json:"githubLinked"`
	RegisteredWithGoogle bool       `json:"registeredWithGoogle"`
	RegisteredWithGitHub bool       `json:"registeredWithGithub"`
	TrialEndsAt          *time.Time `json:"trialEndsAt,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
}

func newUserResponse(u goIdentity.UserRecord) userResponse {
	out := userResponse{
		ID:                   u.ID,
		Email:                u.Email,
		IsActive:             u.IsActive,
		IsTwoFactorEnabled:   u.IsTwoFactorEnabled,
		HasPassword:          u.PasswordHash != "",
		GoogleLinked:         u.GoogleID != "",
		GitHubLinked:         u.GitHubID != 0,
		RegisteredWithGoogle: u.RegisteredWithGoogle,
		RegisteredWithGitHub: u.RegisteredWithGitHub,
		CreatedAt:            u.CreatedAt,
	}
	if !u.TrialEndsAt.IsZero() {
		trial := u.TrialEndsAt
		out.TrialEndsAt = &trial
	}
	return out
}

type sessionResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	// SecondFactorRequired is set on the access-only pair issued before 2FA.
	SecondFactorRequired bool          `json:"secondFactorRequired"`
	User                 *userResponse `json:"user,omitempty"`
	IsNewUser            bool          `json:"isNewUser,omitempty"`
	RecoveryCode         string        `json:"recoveryCode,omitempty"`
}

func newSessionResponse(res goIdentity.AuthResult) sessionResponse {
	user := newUserResponse(res.User)
	return sessionResponse{
		AccessToken:          res.Tokens.AccessToken,
		RefreshToken:         res.Tokens.RefreshToken,
		SecondFactorRequired: res.Tokens.Partial(),
		User:                 &user,
		IsNewUser:            res.IsNewUser,
		RecoveryCode:         res.RecoveryCode,
	}
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type passwordRequest struct {
	Password string `json:"password" validate:"required,max=128"`
}

type optionalPasswordRequest struct {
	Password string `json:"password" validate:"max=128"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required,max=128"`
	NewPassword string `json:"newPassword" validate:"required,max=128"`
}

type providerRequest struct {
	Provider string `json:"provider" validate:"required,oneof=google github"`
}

type processTokenRequest struct {
	Token string `json:"token" validate:"required,max=4096"`
	Hash  string `json:"hash" validate:"required,max=128"`
	// Provider is optional; the state's own tag is used when it is absent.
	Provider string `json:"provider" validate:"omitempty,oneof=google github"`
}

type stateRequest struct {
	Hash     string `json:"hash" validate:"required,max=128"`
	Provider string `json:"provider" validate:"required,oneof=google github"`
}

type codeRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}
