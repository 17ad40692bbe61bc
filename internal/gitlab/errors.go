// ABOUTME: Error types for the GitLab API client.
// ABOUTME: APIError carries the upstream status and body; PermissionError guards read-only sessions.

package gitlab

import "fmt"

// APIError is a non-success HTTP response from the GitLab API. The
// body is kept as text so callers can surface upstream messages.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gitlab api error: status %d: %s", e.StatusCode, e.Body)
}

// PermissionError reports a write operation attempted on a read-only
// session.
type PermissionError struct {
	Operation string
	SessionID string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("operation %q not permitted: session %s is read-only", e.Operation, e.SessionID)
}
