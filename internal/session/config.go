// ABOUTME: Validates untyped session parameters into a typed GitLab configuration.
// ABOUTME: Collects every violation into one ValidationError instead of failing fast.

package session

import (
	"fmt"
	"net/url"
	"strings"
)

// Recognized session configuration keys.
const (
	KeyAPIURL       = "api_url"
	KeyAccessToken  = "access_token"
	KeyProjectID    = "project_id"
	KeyReadOnly     = "read_only"
	KeyUseWiki      = "use_wiki"
	KeyUseMilestone = "use_milestone"
	KeyUsePipeline  = "use_pipeline"
)

// Config is an immutable session configuration produced by ParseConfig.
// API clients bind to a Config at construction and never observe later
// changes to the session record.
type Config struct {
	APIURL       string
	AccessToken  string
	ProjectID    string
	ReadOnly     bool
	UseWiki      bool
	UseMilestone bool
	UsePipeline  bool
}

// Violation describes one invalid configuration field.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports every invalid field found in a single pass,
// not just the first.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = fmt.Sprintf("%s: %s", v.Field, v.Message)
	}
	return "invalid session configuration: " + strings.Join(parts, "; ")
}

// ParseConfig validates raw key-value input (typically URL query
// parameters) and applies defaults. The feature toggles accept exactly
// "true" or "false" and default to false when absent; api_url must be
// an absolute URL and access_token must be non-empty. On failure the
// returned error is a *ValidationError listing all offending fields.
func ParseConfig(raw map[string]string) (*Config, error) {
	var violations []Violation

	apiURL := strings.TrimSpace(raw[KeyAPIURL])
	if apiURL == "" {
		violations = append(violations, Violation{KeyAPIURL, "required"})
	} else if u, err := url.Parse(apiURL); err != nil || u.Scheme == "" || u.Host == "" {
		violations = append(violations, Violation{KeyAPIURL, "must be an absolute URL"})
	}

	accessToken := strings.TrimSpace(raw[KeyAccessToken])
	if accessToken == "" {
		violations = append(violations, Violation{KeyAccessToken, "required"})
	}

	cfg := &Config{
		APIURL:      apiURL,
		AccessToken: accessToken,
		ProjectID:   raw[KeyProjectID],
	}
	cfg.ReadOnly = parseToggle(raw, KeyReadOnly, &violations)
	cfg.UseWiki = parseToggle(raw, KeyUseWiki, &violations)
	cfg.UseMilestone = parseToggle(raw, KeyUseMilestone, &violations)
	cfg.UsePipeline = parseToggle(raw, KeyUsePipeline, &violations)

	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}
	return cfg, nil
}

// parseToggle reads an optional boolean key. Absent means false; any
// present value other than the two accepted literals is a violation.
func parseToggle(raw map[string]string, key string, violations *[]Violation) bool {
	val, ok := raw[key]
	if !ok {
		return false
	}
	switch val {
	case "true":
		return true
	case "false":
		return false
	default:
		*violations = append(*violations, Violation{key, `must be "true" or "false"`})
		return false
	}
}
