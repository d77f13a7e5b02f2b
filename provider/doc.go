// Package provider implements the external OAuth adapters used by the SSO popup flow.
//
// Google uses the implicit flow and validates the returned access token through the
// tokeninfo endpoint. GitHub uses the authorization-code flow followed by a profile
// lookup. Both are built on golang.org/x/oauth2 and never retry a failed call.
package provider
