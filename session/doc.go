// Package session holds the bearer token shared by every authenticated
// backend call.
//
// A [Store] is the single source of truth for the current token. It is
// injected into the cryptolab client rather than read from ambient state, so
// several clients (or a CLI and a relay server) can share or isolate their
// credentials explicitly.
//
// Three implementations are provided:
//
//   - [MemoryStore]: process-local, the default
//   - [FileStore]: a JSON file under the user's config directory, used by the CLI
//   - [RedisStore]: a Redis key, for relay servers sharing one login
//
// All implementations are safe for concurrent use, and Clear is idempotent:
// concurrent 401 responses may each clear the token without coordination.
package session
