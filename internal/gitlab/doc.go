// Package gitlab wraps outbound calls to the GitLab REST API on behalf
// of one session.
//
// A Client is bound at construction to a single session's frozen
// configuration: base URL, bearer token, default project, and feature
// toggles. The Pool guarantees at most one Client per session ID;
// clients are created lazily on first use and live until explicitly
// removed, independent of the session registry's own eviction.
//
// Proxy routing comes from the standard process environment
// (HTTP_PROXY / HTTPS_PROXY / NO_PROXY) and is resolved once per
// client against the API URL's scheme. Proxy trouble downgrades to a
// direct connection; it never fails client construction.
package gitlab
