// Package jwt issues and verifies the HS256 tokens used for sessions.
//
// A [Manager] is bound to one [TokenType] and one secret. The identity engine runs two
// of them: an access manager (minutes) and a refresh manager (days). Parse rejects a
// token whose "typ" claim belongs to the other manager even if an operator misconfigured
// both with the same secret.
package jwt
