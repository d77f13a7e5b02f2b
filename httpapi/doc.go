// Package httpapi exposes the goIdentity engine over HTTP with a chi router.
//
// Every error response is the JSON envelope {"error": message, "code": code}. SSO
// exchanges that fail upstream answer 502; corrupted correlation payloads and provider
// responses of an unknown shape answer 500.
package httpapi
