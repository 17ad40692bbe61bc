// ABOUTME: Pipeline tools, registered behind the use_pipeline session toggle.
// ABOUTME: Covers listing, lookup, creation, and retry of CI pipelines.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/2389/glab-gateway/internal/gitlab"
)

func registerPipelineTools(r *Registry) error {
	return registerAll(r, []*Tool{
		{
			Name:        "list_pipelines",
			Description: "List CI pipelines in a GitLab project",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"},"ref":{"type":"string"},"status":{"type":"string"},"page":{"type":"number"},"per_page":{"type":"number"}}}`),
			Feature:     FeaturePipeline,
			Handler:     listPipelines,
		},
		{
			Name:        "get_pipeline",
			Description: "Get a single pipeline by ID",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"},"pipeline_id":{"type":"number"}},"required":["pipeline_id"]}`),
			Feature:     FeaturePipeline,
			Handler:     getPipeline,
		},
		{
			Name:        "create_pipeline",
			Description: "Trigger a new pipeline for a ref",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"},"ref":{"type":"string"},"variables":{"type":"object"}},"required":["ref"]}`),
			Feature:     FeaturePipeline,
			Write:       true,
			Handler:     createPipeline,
		},
		{
			Name:        "retry_pipeline",
			Description: "Retry the failed jobs of a pipeline",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"string"},"pipeline_id":{"type":"number"}},"required":["pipeline_id"]}`),
			Feature:     FeaturePipeline,
			Write:       true,
			Handler:     retryPipeline,
		},
	})
}

type listPipelinesInput struct {
	ProjectID string `json:"project_id"`
	Ref       string `json:"ref"`
	Status    string `json:"status"`
	Page      int    `json:"page"`
	PerPage   int    `json:"per_page"`
}

func listPipelines(ctx context.Context, client *gitlab.Client, input json.RawMessage) (json.RawMessage, error) {
	var in listPipelinesInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	project, err := resolveProject(client, in.ProjectID)
	if err != nil {
		return nil, err
	}

	values := url.Values{}
	if in.Ref != "" {
		values.Set("ref", in.Ref)
	}
	if in.Status != "" {
		values.Set("status", in.Status)
	}
	pagination(values, in.Page, in.PerPage)

	result, err := client.Request(ctx, withQuery(fmt.Sprintf("projects/%s/pipelines", project), values), gitlab.RequestOptions{})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

type getPipelineInput struct {
	ProjectID  string `json:"project_id"`
	PipelineID int    `json:"pipeline_id"`
}

func getPipeline(ctx context.Context, client *gitlab.Client, input json.RawMessage) (json.RawMessage, error) {
	var in getPipelineInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	project, err := resolveProject(client, in.ProjectID)
	if err != nil {
		return nil, err
	}

	result, err := client.Request(ctx, fmt.Sprintf("projects/%s/pipelines/%d", project, in.PipelineID), gitlab.RequestOptions{})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

type createPipelineInput struct {
	ProjectID string            `json:"project_id"`
	Ref       string            `json:"ref"`
	Variables map[string]string `json:"variables"`
}

func createPipeline(ctx context.Context, client *gitlab.Client, input json.RawMessage) (json.RawMessage, error) {
	var in createPipelineInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	project, err := resolveProject(client, in.ProjectID)
	if err != nil {
		return nil, err
	}

	body := map[string]any{"ref": in.Ref}
	if len(in.Variables) > 0 {
		// GitLab expects pipeline variables as a list of key/value objects.
		vars := make([]map[string]string, 0, len(in.Variables))
		for k, v := range in.Variables {
			vars = append(vars, map[string]string{"key": k, "value": v})
		}
		body["variables"] = vars
	}

	result, err := client.Request(ctx, fmt.Sprintf("projects/%s/pipeline", project), gitlab.RequestOptions{
		Method: "POST",
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

type retryPipelineInput struct {
	ProjectID  string `json:"project_id"`
	PipelineID int    `json:"pipeline_id"`
}

func retryPipeline(ctx context.Context, client *gitlab.Client, input json.RawMessage) (json.RawMessage, error) {
	var in retryPipelineInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	project, err := resolveProject(client, in.ProjectID)
	if err != nil {
		return nil, err
	}

	result, err := client.Request(ctx, fmt.Sprintf("projects/%s/pipelines/%d/retry", project, in.PipelineID), gitlab.RequestOptions{
		Method: "POST",
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}
