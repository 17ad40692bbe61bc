// Package session owns the per-tenant session lifecycle for the gateway.
//
// # Overview
//
// Every MCP client connection ("session") carries its own GitLab
// credentials, feature toggles, and derived API client. This package
// provides the two stateless/stateful halves of that lifecycle:
//
//   - ParseConfig: validates untyped key-value input (URL query
//     parameters) into an immutable Config, reporting every violation
//     at once.
//   - Registry: a bounded, idle-expiring map of session records with
//     lazy expiry on lookup plus a periodic background sweep.
//
// # Registry semantics
//
// Records are created with createdAt = lastUsed = now and every
// successful lookup refreshes lastUsed (read extends lifetime). A
// record is dropped when its idle age exceeds the configured timeout,
// either on the next lookup or by the sweep goroutine. When the
// registry is at capacity, creation first evicts the ~10% least
// recently used records, so max_sessions is a soft bound rather than
// a hard ceiling.
//
// # Thread Safety
//
// Registry is safe for concurrent use. Returned Session values are
// copies; callers never share mutable state with the registry.
package session
