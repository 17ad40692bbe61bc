// ABOUTME: Project discovery tools: repository search and project lookup.
// ABOUTME: Read-only and visible to every session.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/2389/glab-gateway/internal/gitlab"
)

func registerProjectTools(r *Registry) error {
	return registerAll(r, []*Tool{
		{
			Name:        "search_repositories",
			Description: "Search GitLab projects by name or keyword",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"search":{"type":"string","description":"Search query"},"page":{"type":"number"},"per_page":{"type":"number"}},"required":["search"]}`),
			Handler:     searchRepositories,
		},
		{
			Name:        "get_project",
			Description: "Get details of a GitLab project",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string","description":"Project ID or path; defaults to the session project"}}}`),
			Handler:     getProject,
		},
	})
}

type searchRepositoriesInput struct {
	Search  string `json:"search"`
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
}

func searchRepositories(ctx context.Context, client *gitlab.Client, input json.RawMessage) (json.RawMessage, error) {
	var in searchRepositoriesInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	values := url.Values{}
	values.Set("search", in.Search)
	pagination(values, in.Page, in.PerPage)

	result, err := client.Request(ctx, withQuery("projects", values), gitlab.RequestOptions{})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

type getProjectInput struct {
	ProjectID string `json:"project_id"`
}

func getProject(ctx context.Context, client *gitlab.Client, input json.RawMessage) (json.RawMessage, error) {
	var in getProjectInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	project, err := resolveProject(client, in.ProjectID)
	if err != nil {
		return nil, err
	}

	result, err := client.Request(ctx, "projects/"+project, gitlab.RequestOptions{})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}
