package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const defaultGitHubAPIURL = "https://api.github.com"

// GitHubConfig configures the authorization-code GitHub adapter.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Endpoint and APIURL override github.com. Tests point them at an httptest server.
	Endpoint   oauth2.Endpoint
	APIURL     string
	HTTPClient *http.Client
}

// GitHubAdapter exchanges an authorization code server-side, then reads the profile.
// When the profile has no public email it falls back to /user/emails and takes the
// entry flagged primary.
type GitHubAdapter struct {
	oauth  *oauth2.Config
	apiURL string
	client *http.Client
}

// NewGitHub builds the GitHub adapter. Endpoints default to github.com.
func NewGitHub(cfg GitHubConfig) (*GitHubAdapter, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("github client id required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("github client secret required")
	}
	if cfg.Endpoint.TokenURL == "" {
		cfg.Endpoint = endpoints.GitHub
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultGitHubAPIURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	return &GitHubAdapter{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     cfg.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		client: cfg.HTTPClient,
	}, nil
}

// Name returns GitHub.
func (g *GitHubAdapter) Name() Name { return GitHub }

// AuthURL returns the authorization-code URL carrying state.
func (g *GitHubAdapter) AuthURL(state string) string {
	return g.oauth.AuthCodeURL(state)
}

type githubUser struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// Exchange trades code for an access token and resolves the GitHub user.
func (g *GitHubAdapter) Exchange(ctx context.Context, code string) (Identity, error) {
	if code == "" {
		return Identity{}, fmt.Errorf("%w: empty authorization code", ErrUpstream)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.client)
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: exchange code: %v", ErrUpstream, err)
	}
	if token.AccessToken == "" {
		return Identity{}, fmt.Errorf("%w: token response without access_token", ErrUnexpectedResponse)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token.AccessToken)

	body, err := getJSONBody(ctx, g.client, g.apiURL+"/user", header)
	if err != nil {
		return Identity{}, err
	}
	var user githubUser
	if err := json.Unmarshal(body, &user); err != nil {
		return Identity{}, fmt.Errorf("%w: decode user: %v", ErrUnexpectedResponse, err)
	}
	if user.ID <= 0 {
		return Identity{}, fmt.Errorf("%w: user without id", ErrUnexpectedResponse)
	}

	email := user.Email
	if email == "" {
		email, err = g.primaryEmail(ctx, header)
		if err != nil {
			return Identity{}, err
		}
	}

	return Identity{Subject: strconv.FormatInt(user.ID, 10), Email: email}, nil
}

func (g *GitHubAdapter) primaryEmail(ctx context.Context, header http.Header) (string, error) {
	body, err := getJSONBody(ctx, g.client, g.apiURL+"/user/emails", header)
	if err != nil {
		return "", err
	}
	var emails []githubEmail
	if err := json.Unmarshal(body, &emails); err != nil {
		return "", fmt.Errorf("%w: decode emails: %v", ErrUnexpectedResponse, err)
	}
	for _, e := range emails {
		if e.Primary && e.Email != "" {
			return e.Email, nil
		}
	}
	return "", ErrNoPrimaryEmail
}
