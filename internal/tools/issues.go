// ABOUTME: Issue tools: listing, lookup, creation, updates, and notes.
// ABOUTME: Creation and mutation require a writable session.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/2389/glab-gateway/internal/gitlab"
)

func registerIssueTools(r *Registry) error {
	return registerAll(r, []*Tool{
		{
			Name:        "list_issues",
			Description: "List issues in a GitLab project",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"},"state":{"type":"string","enum":["opened","closed","all"]},"labels":{"type":"string","description":"Comma-separated label names"},"page":{"type":"number"},"per_page":{"type":"number"}}}`),
			Handler:     listIssues,
		},
		{
			Name:        "get_issue",
			Description: "Get a single issue by its IID",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"},"issue_iid":{"type":"number"}},"required":["issue_iid"]}`),
			Handler:     getIssue,
		},
		{
			Name:        "create_issue",
			Description: "Create a new issue",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"},"title":{"type":"string"},"description":{"type":"string"},"labels":{"type":"string"},"confidential":{"type":"boolean"}},"required":["title"]}`),
			Write:       true,
			Handler:     createIssue,
		},
		{
			Name:        "update_issue",
			Description: "Update an existing issue",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"},"issue_iid":{"type":"number"},"title":{"type":"string"},"description":{"type":"string"},"state_event":{"type":"string","enum":["close","reopen"]},"labels":{"type":"string"}},"required":["issue_iid"]}`),
			Write:       true,
			Handler:     updateIssue,
		},
		{
			Name:        "create_issue_note",
			Description: "Add a comment to an issue",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"},"issue_iid":{"type":"number"},"body":{"type":"string"}},"required":["issue_iid","body"]}`),
			Write:       true,
			Handler:     createIssueNote,
		},
	})
}

type listIssuesInput struct {
	ProjectID string `json:"project_id"`
	State     string `json:"state"`
	Labels    string `json:"labels"`
	Page      int    `json:"page"`
	PerPage   int    `json:"per_page"`
}

func listIssues(ctx context.Context, client *gitlab.Client, input json.RawMessage) (json.RawMessage, error) {
	var in listIssuesInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	project, err := resolveProject(client, in.ProjectID)
	if err != nil {
		return nil, err
	}

	values := url.Values{}
	if in.State != "" {
		values.Set("state", in.State)
	}
	if in.Labels != "" {
		values.Set("labels", in.Labels)
	}
	pagination(values, in.Page, in.PerPage)

	result, err := client.Request(ctx, withQuery(fmt.Sprintf("projects/%s/issues", project), values), gitlab.RequestOptions{})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

type getIssueInput struct {
	ProjectID string `json:"project_id"`
	IssueIID  int    `json:"issue_iid"`
}

func getIssue(ctx context.Context, client *gitlab.Client, input json.RawMessage) (json.RawMessage, error) {
	var in getIssueInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	project, err := resolveProject(client, in.ProjectID)
	if err != nil {
		return nil, err
	}

	result, err := client.Request(ctx, fmt.Sprintf("projects/%s/issues/%d", project, in.IssueIID), gitlab.RequestOptions{})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

type createIssueInput struct {
	ProjectID    string `json:"project_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Labels       string `json:"labels"`
	Confidential bool   `json:"confidential"`
}

func createIssue(ctx context.Context, client *gitlab.Client, input json.RawMessage) (json.RawMessage, error) {
	var in createIssueInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	project, err := resolveProject(client, in.ProjectID)
	if err != nil {
		return nil, err
	}

	body := map[string]any{"title": in.Title}
	if in.Description != "" {
		body["description"] = in.Description
	}
	if in.Labels != "" {
		body["labels"] = in.Labels
	}
	if in.Confidential {
		body["confidential"] = true
	}

	result, err := client.Request(ctx, fmt.Sprintf("projects/%s/issues", project), gitlab.RequestOptions{
		Method: "POST",
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

type updateIssueInput struct {
	ProjectID   string `json:"project_id"`
	IssueIID    int    `json:"issue_iid"`
	Title       string `json:"title"`
	Description string `json:"description"`
	StateEvent  string `json:"state_event"`
	Labels      string `json:"labels"`
}

func updateIssue(ctx context.Context, client *gitlab.Client, input json.RawMessage) (json.RawMessage, error) {
	var in updateIssueInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	project, err := resolveProject(client, in.ProjectID)
	if err != nil {
		return nil, err
	}

	body := map[string]any{}
	if in.Title != "" {
		body["title"] = in.Title
	}
	if in.Description != "" {
		body["description"] = in.Description
	}
	if in.StateEvent != "" {
		body["state_event"] = in.StateEvent
	}
	if in.Labels != "" {
		body["labels"] = in.Labels
	}

	result, err := client.Request(ctx, fmt.Sprintf("projects/%s/issues/%d", project, in.IssueIID), gitlab.RequestOptions{
		Method: "PUT",
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

type createIssueNoteInput struct {
	ProjectID string `json:"project_id"`
	IssueIID  int    `json:"issue_iid"`
	Body      string `json:"body"`
}

func createIssueNote(ctx context.Context, client *gitlab.Client, input json.RawMessage) (json.RawMessage, error) {
	var in createIssueNoteInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	project, err := resolveProject(client, in.ProjectID)
	if err != nil {
		return nil, err
	}

	result, err := client.Request(ctx, fmt.Sprintf("projects/%s/issues/%d/notes", project, in.IssueIID), gitlab.RequestOptions{
		Method: "POST",
		Body:   map[string]any{"body": in.Body},
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}
