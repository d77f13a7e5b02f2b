package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Name identifies an external identity provider. It is also the prefix of every SSO state.
type Name string

const (
	Google Name = "google"
	GitHub Name = "github"
)

var (
	// ErrUpstream is returned when the provider could not be reached, timed out or
	// rejected the presented token or code.
	ErrUpstream = errors.New("provider: upstream request failed")
	// ErrUnexpectedResponse is returned when the provider answered with a payload
	// this package does not understand.
	ErrUnexpectedResponse = errors.New("provider: unexpected response")
	// ErrNoPrimaryEmail is returned by GitHub when neither the profile nor the emails
	// endpoint yields a primary address.
	ErrNoPrimaryEmail = errors.New("provider: no primary email")
)

// ParseName maps a client supplied provider string to a Name.
func ParseName(s string) (Name, bool) {
	switch Name(strings.ToLower(strings.TrimSpace(s))) {
	case Google:
		return Google, true
	case GitHub:
		return GitHub, true
	default:
		return "", false
	}
}

// Identity is what a provider vouches for after a successful exchange.
// Subject is the provider's stable user id (decimal for GitHub).
type Identity struct {
	Subject string
	Email   string
}

// Adapter is implemented by every provider.
//
// AuthURL builds the authorization URL the browser popup opens. Exchange turns the
// value returned to the popup (an access token for Google, a code for GitHub) into an
// Identity. Exchange makes exactly one attempt and never retries.
type Adapter interface {
	Name() Name
	AuthURL(state string) string
	Exchange(ctx context.Context, tokenOrCode string) (Identity, error)
}

const maxBodyBytes = 1 << 20

func getJSONBody(ctx context.Context, client *http.Client, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %s", ErrUpstream, resp.Status)
	}
	return body, nil
}
