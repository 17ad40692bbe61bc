// ABOUTME: Milestone tools, registered behind the use_milestone session toggle.
// ABOUTME: Covers listing, lookup, and creation of project milestones.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/2389/glab-gateway/internal/gitlab"
)

func registerMilestoneTools(r *Registry) error {
	return registerAll(r, []*Tool{
		{
			Name:        "list_milestones",
			Description: "List milestones in a GitLab project",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"},"state":{"type":"string","enum":["active","closed"]},"page":{"type":"number"},"per_page":{"type":"number"}}}`),
			Feature:     FeatureMilestone,
			Handler:     listMilestones,
		},
		{
			Name:        "get_milestone",
			Description: "Get a single milestone by ID",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"},"milestone_id":{"type":"number"}},"required":["milestone_id"]}`),
			Feature:     FeatureMilestone,
			Handler:     getMilestone,
		},
		{
			Name:        "create_milestone",
			Description: "Create a new project milestone",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"},"title":{"type":"string"},"description":{"type":"string"},"due_date":{"type":"string"},"start_date":{"type":"string"}},"required":["title"]}`),
			Feature:     FeatureMilestone,
			Write:       true,
			Handler:     createMilestone,
		},
	})
}

type listMilestonesInput struct {
	ProjectID string `json:"project_id"`
	State     string `json:"state"`
	Page      int    `json:"page"`
	PerPage   int    `json:"per_page"`
}

func listMilestones(ctx context.Context, client *gitlab.Client, input json.RawMessage) (json.RawMessage, error) {
	var in listMilestonesInput
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
	pagination(values, in.Page, in.PerPage)

	result, err := client.Request(ctx, withQuery(fmt.Sprintf("projects/%s/milestones", project), values), gitlab.RequestOptions{})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

type getMilestoneInput struct {
	ProjectID   string `json:"project_id"`
	MilestoneID int    `json:"milestone_id"`
}

func getMilestone(ctx context.Context, client *gitlab.Client, input json.RawMessage) (json.RawMessage, error) {
	var in getMilestoneInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	project, err := resolveProject(client, in.ProjectID)
	if err != nil {
		return nil, err
	}

	result, err := client.Request(ctx, fmt.Sprintf("projects/%s/milestones/%d", project, in.MilestoneID), gitlab.RequestOptions{})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

type createMilestoneInput struct {
	ProjectID   string `json:"project_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
	StartDate   string `json:"start_date"`
}

func createMilestone(ctx context.Context, client *gitlab.Client, input json.RawMessage) (json.RawMessage, error) {
	var in createMilestoneInput
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
	if in.DueDate != "" {
		body["due_date"] = in.DueDate
	}
	if in.StartDate != "" {
		body["start_date"] = in.StartDate
	}

	result, err := client.Request(ctx, fmt.Sprintf("projects/%s/milestones", project), gitlab.RequestOptions{
		Method: "POST",
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}
