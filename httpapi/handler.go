package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/middleware"
	"github.com/MrEthical07/goIdentity/provider"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 16

// Service is the engine surface the handlers call. *goIdentity.Engine implements it.
type Service interface {
	Register(ctx context.Context, email, password string) (goIdentity.AuthResult, error)
	Login(ctx context.Context, email, password string) (goIdentity.AuthResult, error)
	CurrentUser(ctx context.Context, userID string) (goIdentity.UserRecord, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	DeleteAccount(ctx context.Context, userID, password string) error

	RequestEmailVerification(ctx context.Context, userID string) error
	VerifyEmail(ctx context.Context, tokenID string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, tokenID, newPassword string) error
	RequestEmailChange(ctx context.Context, userID, newEmail, password string) error
	ConfirmEmailChange(ctx context.Context, tokenID string) error

	VerifyAccessToken(ctx context.Context, token string) (goIdentity.AccessClaims, error)
	RefreshAccessToken(ctx context.Context, refresh string) (string, error)
	Logout(ctx context.Context, refresh string) error
	LogoutAll(ctx context.Context, refresh string) error

	GenerateSSOAuthURL(ctx context.Context, name provider.Name) (goIdentity.SSOAuthURL, error)
	ProcessSSOToken(ctx context.Context, name provider.Name, tokenOrCode, state string) error
	AuthenticateSSO(ctx context.Context, name provider.Name, state string) (goIdentity.AuthResult, error)
	LinkSSO(ctx context.Context, userID string, name provider.Name, state string) (goIdentity.UserRecord, error)
	UnlinkSSO(ctx context.Context, userID string, name provider.Name) (goIdentity.UserRecord, error)

	GenerateTwoFactorSecret(ctx context.Context, userID string) (goIdentity.TwoFactorSetup, error)
	EnableTwoFactor(ctx context.Context, userID, code string) (goIdentity.TwoFactorEnabled, error)
	DisableTwoFactor(ctx context.Context, userID, code string) error
	AuthenticateTwoFactor(ctx context.Context, userID, code string) (goIdentity.AuthResult, error)
}

var _ Service = (*goIdentity.Engine)(nil)

// Handler serves the identity endpoints.
type Handler struct {
	svc      Service
	validate *validator.Validate
	log      zerolog.Logger
}

// NewHandler returns handlers backed by svc.
func NewHandler(svc Service, log zerolog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
		log:      log,
	}
}

// decode reads a JSON body into v and validates it. It writes the 400 itself.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeErr(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid body")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeErr(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeEngineErr(w, h.log.With().Str("path", r.URL.Path).Logger(), err)
}

// userID returns the subject stored by the guard. Routes without a guard never call it.
func userID(r *http.Request) string {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	return claims.UserID
}

// refreshFromHeader reads the refresh token carried as a bearer token.
func refreshFromHeader(w http.ResponseWriter, r *http.Request) (string, bool) {
	token, ok := middleware.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeErr(w, http.StatusUnauthorized, ErrCodeInvalidRefreshToken, "missing refresh token")
		return "", false
	}
	return token, true
}

func providerName(w http.ResponseWriter, s string) (provider.Name, bool) {
	name, ok := provider.ParseName(s)
	if !ok {
		writeErr(w, http.StatusBadRequest, ErrCodeUnsupportedProvider, goIdentity.ErrUnsupportedProvider.Error())
		return "", false
	}
	return name, true
}

// stateProvider returns the provider tag of a correlation state "{provider}:{uuid}".
func stateProvider(state string) string {
	tag, _, _ := strings.Cut(state, ":")
	return tag
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if !h.decode(w, r, &body) {
		return
	}
	res, err := h.svc.Register(r.Context(), body.Email, body.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(res))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if !h.decode(w, r, &body) {
		return
	}
	res, err := h.svc.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(res))
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.CurrentUser(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(u))
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var body changePasswordRequest
	if !h.decode(w, r, &body) {
		return
	}
	if err := h.svc.ChangePassword(r.Context(), userID(r), body.OldPassword, body.NewPassword); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	var body optionalPasswordRequest
	if !h.decode(w, r, &body) {
		return
	}
	if err := h.svc.DeleteAccount(r.Context(), userID(r), body.Password); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RequestEmailVerification(r.Context(), userID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.VerifyEmail(r.Context(), chi.URLParam(r, "actionTokenId")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

// RequestPasswordReset always answers 202 so the response never reveals whether the
// email is registered.
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var body emailRequest
	if !h.decode(w, r, &body) {
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), body.Email); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var body passwordRequest
	if !h.decode(w, r, &body) {
		return
	}
	if err := h.svc.ConfirmPasswordReset(r.Context(), chi.URLParam(r, "actionTokenId"), body.Password); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RequestEmailChange(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if !h.decode(w, r, &body) {
		return
	}
	if err := h.svc.RequestEmailChange(r.Context(), userID(r), body.Email, body.Password); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) ConfirmEmailChange(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ConfirmEmailChange(r.Context(), chi.URLParam(r, "actionTokenId")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "changed"})
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	refresh, ok := refreshFromHeader(w, r)
	if !ok {
		return
	}
	access, err := h.svc.RefreshAccessToken(r.Context(), refresh)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": access})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	refresh, ok := refreshFromHeader(w, r)
	if !ok {
		return
	}
	if err := h.svc.Logout(r.Context(), refresh); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	refresh, ok := refreshFromHeader(w, r)
	if !ok {
		return
	}
	if err := h.svc.LogoutAll(r.Context(), refresh); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
