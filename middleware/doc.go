// Package middleware exposes bearer-token guards built on goIdentity access token
// verification.
//
// # Guards
//
//   - [Guard] admits full sessions only.
//   - [GuardPartial] also admits the access-only session issued before the second factor.
//
// Both read the Authorization header, call VerifyAccessToken and store the verified
// [goIdentity.AccessClaims] in the request context; read them back with [ClaimsFromContext].
//
// The package never parses JWTs itself and never touches a datastore.
package middleware
