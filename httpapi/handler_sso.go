package httpapi

import (
	"net/http"
)

type authURLResponse struct {
	UUID      string `json:"uuid"`
	AuthURL   string `json:"auth_url"`
	ExpiresIn int64  `json:"expires_in"`
}

func (h *Handler) GenerateSSO(w http.ResponseWriter, r *http.Request) {
	var body providerRequest
	if !h.decode(w, r, &body) {
		return
	}
	name, ok := providerName(w, body.Provider)
	if !ok {
		return
	}
	out, err := h.svc.GenerateSSOAuthURL(r.Context(), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authURLResponse{
		UUID:      out.State,
		AuthURL:   out.AuthURL,
		ExpiresIn: int64(out.ExpiresIn.Seconds()),
	})
}

// ProcessSSOToken is called by the provider popup with the provider token and the state.
func (h *Handler) ProcessSSOToken(w http.ResponseWriter, r *http.Request) {
	var body processTokenRequest
	if !h.decode(w, r, &body) {
		return
	}
	claimed := body.Provider
	if claimed == "" {
		claimed = stateProvider(body.Hash)
	}
	name, ok := providerName(w, claimed)
	if !ok {
		return
	}
	if err := h.svc.ProcessSSOToken(r.Context(), name, body.Token, body.Hash); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AuthenticateSSO consumes the filled state and signs the user in.
func (h *Handler) AuthenticateSSO(w http.ResponseWriter, r *http.Request) {
	var body stateRequest
	if !h.decode(w, r, &body) {
		return
	}
	name, ok := providerName(w, body.Provider)
	if !ok {
		return
	}
	res, err := h.svc.AuthenticateSSO(r.Context(), name, body.Hash)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if res.IsNewUser {
		status = http.StatusCreated
	}
	writeJSON(w, status, newSessionResponse(res))
}

func (h *Handler) LinkSSO(w http.ResponseWriter, r *http.Request) {
	var body stateRequest
	if !h.decode(w, r, &body) {
		return
	}
	name, ok := providerName(w, body.Provider)
	if !ok {
		return
	}
	u, err := h.svc.LinkSSO(r.Context(), userID(r), name, body.Hash)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(u))
}

func (h *Handler) UnlinkSSO(w http.ResponseWriter, r *http.Request) {
	var body providerRequest
	if !h.decode(w, r, &body) {
		return
	}
	name, ok := providerName(w, body.Provider)
	if !ok {
		return
	}
	u, err := h.svc.UnlinkSSO(r.Context(), userID(r), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(u))
}
