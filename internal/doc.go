// Package internal contains helpers that are private to the identity engine:
// refresh-token peppering and recovery-code generation.
//
// # Sub-packages
//
//   - stores: Redis SSO correlation store
//   - config: environment and file configuration loader for cmd/identityd
//   - mailqueue: asynq-backed mail delivery
//
// # What this package must NOT do
//
//   - Export types that appear in the public goIdentity API.
//   - Be imported by any package outside the module.
package internal
