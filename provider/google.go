package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const defaultGoogleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// GoogleConfig configures the implicit-flow Google adapter.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// TokenInfoURL overrides the tokeninfo endpoint. Tests point it at an httptest server.
	TokenInfoURL string
	HTTPClient   *http.Client
}

// GoogleAdapter uses the implicit flow: the popup receives an access token directly and the
// server validates it against tokeninfo, checking that it was minted for our client id.
type GoogleAdapter struct {
	oauth        *oauth2.Config
	tokenInfoURL string
	client       *http.Client
}

// NewGoogle builds the Google adapter. A client id and redirect URL are required.
func NewGoogle(cfg GoogleConfig) (*GoogleAdapter, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("google client id required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("google redirect url required")
	}
	if cfg.TokenInfoURL == "" {
		cfg.TokenInfoURL = defaultGoogleTokenInfoURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	return &GoogleAdapter{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"email", "profile"},
		},
		tokenInfoURL: cfg.TokenInfoURL,
		client:       cfg.HTTPClient,
	}, nil
}

// Name returns Google.
func (g *GoogleAdapter) Name() Name { return Google }

// AuthURL returns an implicit-flow authorization URL (response_type=token).
func (g *GoogleAdapter) AuthURL(state string) string {
	return g.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("response_type", "token"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

type googleTokenInfo struct {
	Audience  string `json:"aud"`
	AuthParty string `json:"azp"`
	Subject   string `json:"sub"`
	Email     string `json:"email"`
}

// Exchange validates accessToken with tokeninfo.
func (g *GoogleAdapter) Exchange(ctx context.Context, accessToken string) (Identity, error) {
	if accessToken == "" {
		return Identity{}, fmt.Errorf("%w: empty access token", ErrUpstream)
	}

	endpoint := g.tokenInfoURL + "?" + url.Values{"access_token": {accessToken}}.Encode()
	body, err := getJSONBody(ctx, g.client, endpoint, nil)
	if err != nil {
		return Identity{}, err
	}

	var info googleTokenInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return Identity{}, fmt.Errorf("%w: decode tokeninfo: %v", ErrUnexpectedResponse, err)
	}
	if info.Audience != g.oauth.ClientID && info.AuthParty != g.oauth.ClientID {
		return Identity{}, fmt.Errorf("%w: token was issued to another client", ErrUpstream)
	}
	if info.Subject == "" || info.Email == "" {
		return Identity{}, fmt.Errorf("%w: tokeninfo without sub or email", ErrUnexpectedResponse)
	}

	return Identity{Subject: info.Subject, Email: info.Email}, nil
}
