// ABOUTME: Wiki page tools, registered behind the use_wiki session toggle.
// ABOUTME: Covers listing, lookup, creation, and deletion of wiki pages.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/2389/glab-gateway/internal/gitlab"
)

func registerWikiTools(r *Registry) error {
	return registerAll(r, []*Tool{
		{
			Name:        "list_wiki_pages",
			Description: "List wiki pages in a GitLab project",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"},"with_content":{"type":"boolean"}}}`),
			Feature:     FeatureWiki,
			Handler:     listWikiPages,
		},
		{
			Name:        "get_wiki_page",
			Description: "Get a wiki page by its slug",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"},"slug":{"type":"string"}},"required":["slug"]}`),
			Feature:     FeatureWiki,
			Handler:     getWikiPage,
		},
		{
			Name:        "create_wiki_page",
			Description: "Create a new wiki page",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"},"title":{"type":"string"},"content":{"type":"string"},"format":{"type":"string","enum":["markdown","rdoc","asciidoc","org"]}},"required":["title","content"]}`),
			Feature:     FeatureWiki,
			Write:       true,
			Handler:     createWikiPage,
		},
		{
			Name:        "delete_wiki_page",
			Description: "Delete a wiki page by its slug",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"},"slug":{"type":"string"}},"required":["slug"]}`),
			Feature:     FeatureWiki,
			Write:       true,
			Handler:     deleteWikiPage,
		},
	})
}

type listWikiPagesInput struct {
	ProjectID   string `json:"project_id"`
	WithContent bool   `json:"with_content"`
}

func listWikiPages(ctx context.Context, client *gitlab.Client, input json.RawMessage) (json.RawMessage, error) {
	var in listWikiPagesInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	project, err := resolveProject(client, in.ProjectID)
	if err != nil {
		return nil, err
	}

	values := url.Values{}
	if in.WithContent {
		values.Set("with_content", "true")
	}

	result, err := client.Request(ctx, withQuery(fmt.Sprintf("projects/%s/wikis", project), values), gitlab.RequestOptions{})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

type getWikiPageInput struct {
	ProjectID string `json:"project_id"`
	Slug      string `json:"slug"`
}

func getWikiPage(ctx context.Context, client *gitlab.Client, input json.RawMessage) (json.RawMessage, error) {
	var in getWikiPageInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	project, err := resolveProject(client, in.ProjectID)
	if err != nil {
		return nil, err
	}

	result, err := client.Request(ctx, fmt.Sprintf("projects/%s/wikis/%s", project, url.PathEscape(in.Slug)), gitlab.RequestOptions{})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

type createWikiPageInput struct {
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Format    string `json:"format"`
}

func createWikiPage(ctx context.Context, client *gitlab.Client, input json.RawMessage) (json.RawMessage, error) {
	var in createWikiPageInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	project, err := resolveProject(client, in.ProjectID)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"title":   in.Title,
		"content": in.Content,
	}
	if in.Format != "" {
		body["format"] = in.Format
	}

	result, err := client.Request(ctx, fmt.Sprintf("projects/%s/wikis", project), gitlab.RequestOptions{
		Method: "POST",
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

type deleteWikiPageInput struct {
	ProjectID string `json:"project_id"`
	Slug      string `json:"slug"`
}

func deleteWikiPage(ctx context.Context, client *gitlab.Client, input json.RawMessage) (json.RawMessage, error) {
	var in deleteWikiPageInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	project, err := resolveProject(client, in.ProjectID)
	if err != nil {
		return nil, err
	}

	if _, err := client.Request(ctx, fmt.Sprintf("projects/%s/wikis/%s", project, url.PathEscape(in.Slug)), gitlab.RequestOptions{
		Method: "DELETE",
	}); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{"deleted": true, "slug": in.Slug})
}
