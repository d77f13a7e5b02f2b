// Package goIdentity provides the identity and session core of the analytics backend:
// JWT access/refresh issuance, a hashed refresh-token ledger, single-use action tokens,
// the Redis-correlated SSO popup handshake for Google and GitHub, account linking and
// the two-factor gate.
//
// Engine methods are safe for concurrent use after [Builder.Build].
//
// # Architecture boundaries
//
// goIdentity is the public surface. It exposes [Engine], [Builder], [Config], the
// repository interfaces it depends on ([CredentialStore], [RefreshTokenRepository],
// [ActionTokenRepository], [Mailer]) and value types. Redis correlation storage and
// token hashing live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Route HTTP requests. See httpapi and middleware.
//   - Render or deliver mail. A [Mailer] receives the template name and token id only.
//   - Enforce password strength or rate limits.
//   - Import any sub-package that re-imports goIdentity (no import cycles).
//
// # Sessions and the second factor
//
// A login for a user with two-factor enabled yields a partial pair: an access token whose
// isSecondFactorAuthenticated claim is false and no refresh token. Only the 2FA submit
// endpoint accepts such a token. The refresh token, and with it a durable session, exists
// only after the second factor is verified.
package goIdentity
