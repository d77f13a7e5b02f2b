// Package memory provides in-process implementations of the goIdentity repositories.
// They are safe for concurrent use and intended for tests and local development.
package memory
