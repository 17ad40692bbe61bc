// Package tools defines the GitLab tool surface exposed over MCP.
//
// Tools are registered once at startup and dispatched per session: the
// registry filters listings by the session's feature toggles (wiki,
// milestone, pipeline) and guards write tools behind the session's
// read-only flag. Handlers receive the session's API client and speak
// plain GitLab REST v4.
package tools
