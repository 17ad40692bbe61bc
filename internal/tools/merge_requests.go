// ABOUTME: Merge request tools: listing, lookup, creation, and notes.
// ABOUTME: Creation and notes require a writable session.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/2389/glab-gateway/internal/gitlab"
)

func registerMergeRequestTools(r *Registry) error {
	return registerAll(r, []*Tool{
		{
			Name:        "list_merge_requests",
			Description: "List merge requests in a GitLab project",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"},"state":{"type":"string","enum":["opened","closed","merged","all"]},"target_branch":{"type":"string"},"page":{"type":"number"},"per_page":{"type":"number"}}}`),
			Handler:     listMergeRequests,
		},
		{
			Name:        "get_merge_request",
			Description: "Get a single merge request by its IID",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"},"merge_request_iid":{"type":"number"}},"required":["merge_request_iid"]}`),
			Handler:     getMergeRequest,
		},
		{
			Name:        "create_merge_request",
			Description: "Create a new merge request",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"},"source_branch":{"type":"string"},"target_branch":{"type":"string"},"title":{"type":"string"},"description":{"type":"string"},"draft":{"type":"boolean"}},"required":["source_branch","target_branch","title"]}`),
			Write:       true,
			Handler:     createMergeRequest,
		},
		{
			Name:        "create_merge_request_note",
			Description: "Add a comment to a merge request",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"},"merge_request_iid":{"type":"number"},"body":{"type":"string"}},"required":["merge_request_iid","body"]}`),
			Write:       true,
			Handler:     createMergeRequestNote,
		},
	})
}

type listMergeRequestsInput struct {
	ProjectID    string `json:"project_id"`
	State        string `json:"state"`
	TargetBranch string `json:"target_branch"`
	Page         int    `json:"page"`
	PerPage      int    `json:"per_page"`
}

func listMergeRequests(ctx context.Context, client *gitlab.Client, input json.RawMessage) (json.RawMessage, error) {
	var in listMergeRequestsInput
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
	if in.TargetBranch != "" {
		values.Set("target_branch", in.TargetBranch)
	}
	pagination(values, in.Page, in.PerPage)

	result, err := client.Request(ctx, withQuery(fmt.Sprintf("projects/%s/merge_requests", project), values), gitlab.RequestOptions{})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

type getMergeRequestInput struct {
	ProjectID       string `json:"project_id"`
	MergeRequestIID int    `json:"merge_request_iid"`
}

func getMergeRequest(ctx context.Context, client *gitlab.Client, input json.RawMessage) (json.RawMessage, error) {
	var in getMergeRequestInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	project, err := resolveProject(client, in.ProjectID)
	if err != nil {
		return nil, err
	}

	result, err := client.Request(ctx, fmt.Sprintf("projects/%s/merge_requests/%d", project, in.MergeRequestIID), gitlab.RequestOptions{})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

type createMergeRequestInput struct {
	ProjectID    string `json:"project_id"`
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Draft        bool   `json:"draft"`
}

func createMergeRequest(ctx context.Context, client *gitlab.Client, input json.RawMessage) (json.RawMessage, error) {
	var in createMergeRequestInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	project, err := resolveProject(client, in.ProjectID)
	if err != nil {
		return nil, err
	}

	title := in.Title
	if in.Draft {
		title = "Draft: " + title
	}
	body := map[string]any{
		"source_branch": in.SourceBranch,
		"target_branch": in.TargetBranch,
		"title":         title,
	}
	if in.Description != "" {
		body["description"] = in.Description
	}

	result, err := client.Request(ctx, fmt.Sprintf("projects/%s/merge_requests", project), gitlab.RequestOptions{
		Method: "POST",
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

type createMergeRequestNoteInput struct {
	ProjectID       string `json:"project_id"`
	MergeRequestIID int    `json:"merge_request_iid"`
	Body            string `json:"body"`
}

func createMergeRequestNote(ctx context.Context, client *gitlab.Client, input json.RawMessage) (json.RawMessage, error) {
	var in createMergeRequestNoteInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	project, err := resolveProject(client, in.ProjectID)
	if err != nil {
		return nil, err
	}

	result, err := client.Request(ctx, fmt.Sprintf("projects/%s/merge_requests/%d/notes", project, in.MergeRequestIID), gitlab.RequestOptions{
		Method: "POST",
		Body:   map[string]any{"body": in.Body},
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}
