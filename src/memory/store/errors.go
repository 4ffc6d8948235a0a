package store

import "errors"

var (
	// ErrMissingCredentials means no password was supplied by parameter or
	// environment. Fatal at construction, never retried.
	ErrMissingCredentials = errors.New("neo4j password must be provided via parameter or NEO4J_PASSWORD")

	// ErrConnection marks an unreachable endpoint or rejected credentials.
	ErrConnection = errors.New("neo4j connection failed")

	// ErrPoolExhausted means no pooled connection became available within
	// the acquisition timeout.
	ErrPoolExhausted = errors.New("connection pool exhausted")

	// ErrStorage marks a write that produced no matching record, such as a
	// relationship whose endpoints do not exist. Distinct from "not found".
	ErrStorage = errors.New("storage write produced no result")
)
