// ABOUTME: Registration entry point and shared helpers for the builtin GitLab tools.
// ABOUTME: Project-scoped tools resolve their target through the session default.

package tools

import (
	"errors"
	"net/url"
	"strconv"

	"github.com/2389/glab-gateway/internal/gitlab"
)

// ErrNoProject indicates a project-scoped tool was called without a
// project ID on a session that has no default project.
var ErrNoProject = errors.New("no project ID provided and session has no default")

// RegisterBuiltins installs the full GitLab tool set into the registry.
func RegisterBuiltins(r *Registry) error {
	for _, register := range []func(*Registry) error{
		registerProjectTools,
		registerIssueTools,
		registerMergeRequestTools,
		registerWikiTools,
		registerMilestoneTools,
		registerPipelineTools,
	} {
		if err := register(r); err != nil {
			return err
		}
	}
	return nil
}

func registerAll(r *Registry, tools []*Tool) error {
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

// resolveProject applies the explicit-over-default project rule and
// escapes the result for use as a path segment.
func resolveProject(client *gitlab.Client, explicit string) (string, error) {
	project := client.EffectiveProjectID(explicit)
	if project == "" {
		return "", ErrNoProject
	}
	return url.PathEscape(project), nil
}

// pagination adds page/per_page params when set.
func pagination(values url.Values, page, perPage int) {
	if page > 0 {
		values.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		values.Set("per_page", strconv.Itoa(perPage))
	}
}

// withQuery appends an encoded query string to an endpoint path.
func withQuery(endpoint string, values url.Values) string {
	if len(values) == 0 {
		return endpoint
	}
	return endpoint + "?" + values.Encode()
}
