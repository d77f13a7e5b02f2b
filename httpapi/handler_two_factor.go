package httpapi

import "net/http"

type twoFactorSetupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

type twoFactorEnabledResponse struct {
	RecoveryCode string `json:"recoveryCode"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) GenerateTwoFactor(w http.ResponseWriter, r *http.Request) {
	setup, err := h.svc.GenerateTwoFactorSecret(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, twoFactorSetupResponse{Secret: setup.Secret, OTPAuthURL: setup.OTPAuthURL})
}

func (h *Handler) EnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var body codeRequest
	if !h.decode(w, r, &body) {
		return
	}
	out, err := h.svc.EnableTwoFactor(r.Context(), userID(r), body.Code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, twoFactorEnabledResponse{
		RecoveryCode: out.RecoveryCode,
		AccessToken:  out.Tokens.AccessToken,
		RefreshToken: out.Tokens.RefreshToken,
	})
}

func (h *Handler) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var body codeRequest
	if !h.decode(w, r, &body) {
		return
	}
	if err := h.svc.DisableTwoFactor(r.Context(), userID(r), body.Code); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AuthenticateTwoFactor upgrades a partial session to a full pair.
func (h *Handler) AuthenticateTwoFactor(w http.ResponseWriter, r *http.Request) {
	var body codeRequest
	if !h.decode(w, r, &body) {
		return
	}
	res, err := h.svc.AuthenticateTwoFactor(r.Context(), userID(r), body.Code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(res))
}
