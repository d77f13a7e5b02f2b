// Package stores provides the Redis-backed SSO correlation store.
//
// # Design
//
// Every SSO attempt owns one key with a fixed TTL. Fill and Consume run as Lua scripts
// so the pending check and the write (or the read and the delete) happen in one step.
// Two clients polling the same state can never both receive the identity.
//
// # Architecture boundaries
//
// This package owns persistence and atomicity for correlation entries. It does NOT
// mint state strings, call OAuth providers, or decide what an identity maps to.
package stores
