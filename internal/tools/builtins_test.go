// ABOUTME: Tests for the builtin GitLab tool handlers.
// ABOUTME: Uses a fake GitLab API server to verify paths, queries, and bodies.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/2389/glab-gateway/internal/gitlab"
	"github.com/2389/glab-gateway/internal/session"
)

// newFakeGitLab starts a fake GitLab API and returns a client whose
// session default project is group/repo with all features enabled.
func newFakeGitLab(t *testing.T, handler http.HandlerFunc) *gitlab.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &session.Config{
		APIURL:       srv.URL + "/api/v4",
		AccessToken:  "glpat-test",
		ProjectID:    "group/repo",
		UseWiki:      true,
		UseMilestone: true,
		UsePipeline:  true,
	}
	return gitlab.NewClient("sess-1", cfg, quietLogger())
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	return body
}

func TestSearchRepositories(t *testing.T) {
	client := newFakeGitLab(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/projects" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("search"); got != "gateway" {
			t.Errorf("expected search=gateway, got %q", got)
		}
		if got := r.URL.Query().Get("per_page"); got != "5" {
			t.Errorf("expected per_page=5, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":42,"path_with_namespace":"group/gateway"}]`))
	})

	result, err := searchRepositories(context.Background(), client, json.RawMessage(`{"search":"gateway","per_page":5}`))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var projects []map[string]any
	if err := json.Unmarshal(result, &projects); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(projects) != 1 || projects[0]["id"].(float64) != 42 {
		t.Errorf("unexpected result: %s", result)
	}
}

func TestGetProjectUsesSessionDefault(t *testing.T) {
	client := newFakeGitLab(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.EscapedPath(); got != "/api/v4/projects/group%2Frepo" {
			t.Errorf("unexpected path: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":1}`))
	})

	if _, err := getProject(context.Background(), client, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestExplicitProjectOverridesDefault(t *testing.T) {
	client := newFakeGitLab(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.EscapedPath(); got != "/api/v4/projects/other%2Fproj/issues/3" {
			t.Errorf("unexpected path: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"iid":3}`))
	})

	_, err := getIssue(context.Background(), client, json.RawMessage(`{"project_id":"other/proj","issue_iid":3}`))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestProjectScopedToolWithoutProject(t *testing.T) {
	cfg := &session.Config{
		APIURL:      "https://gitlab.example.com/api/v4",
		AccessToken: "glpat-test",
	}
	client := gitlab.NewClient("sess-1", cfg, quietLogger())

	_, err := listIssues(context.Background(), client, json.RawMessage(`{}`))
	if !errors.Is(err, ErrNoProject) {
		t.Errorf("expected ErrNoProject, got %v", err)
	}
}

func TestListIssuesBuildsQuery(t *testing.T) {
	client := newFakeGitLab(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != "opened" {
			t.Errorf("expected state=opened, got %q", q.Get("state"))
		}
		if q.Get("labels") != "bug,backend" {
			t.Errorf("expected labels=bug,backend, got %q", q.Get("labels"))
		}
		if q.Get("page") != "2" {
			t.Errorf("expected page=2, got %q", q.Get("page"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})

	_, err := listIssues(context.Background(), client, json.RawMessage(`{"state":"opened","labels":"bug,backend","page":2}`))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestCreateIssuePostsBody(t *testing.T) {
	client := newFakeGitLab(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		body := decodeBody(t, r)
		if body["title"] != "Broken build" {
			t.Errorf("unexpected title: %v", body["title"])
		}
		if body["description"] != "CI fails on main" {
			t.Errorf("unexpected description: %v", body["description"])
		}
		if body["labels"] != "ci" {
			t.Errorf("unexpected labels: %v", body["labels"])
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"iid":7,"title":"Broken build"}`))
	})

	result, err := createIssue(context.Background(), client, json.RawMessage(`{"title":"Broken build","description":"CI fails on main","labels":"ci"}`))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var issue map[string]any
	json.Unmarshal(result, &issue)
	if issue["iid"].(float64) != 7 {
		t.Errorf("unexpected issue: %s", result)
	}
}

func TestUpdateIssueSendsOnlySetFields(t *testing.T) {
	client := newFakeGitLab(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		body := decodeBody(t, r)
		if body["state_event"] != "close" {
			t.Errorf("unexpected state_event: %v", body["state_event"])
		}
		if _, present := body["title"]; present {
			t.Error("unset title should not be sent")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"iid":7,"state":"closed"}`))
	})

	_, err := updateIssue(context.Background(), client, json.RawMessage(`{"issue_iid":7,"state_event":"close"}`))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestCreateIssueNote(t *testing.T) {
	client := newFakeGitLab(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.EscapedPath(); got != "/api/v4/projects/group%2Frepo/issues/7/notes" {
			t.Errorf("unexpected path: %s", got)
		}
		body := decodeBody(t, r)
		if body["body"] != "looks fixed" {
			t.Errorf("unexpected note body: %v", body["body"])
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":1}`))
	})

	_, err := createIssueNote(context.Background(), client, json.RawMessage(`{"issue_iid":7,"body":"looks fixed"}`))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestCreateMergeRequestDraftTitle(t *testing.T) {
	client := newFakeGitLab(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		if body["title"] != "Draft: Add retries" {
			t.Errorf("unexpected title: %v", body["title"])
		}
		if body["source_branch"] != "feat/retries" || body["target_branch"] != "main" {
			t.Errorf("unexpected branches: %v -> %v", body["source_branch"], body["target_branch"])
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"iid":12}`))
	})

	_, err := createMergeRequest(context.Background(), client, json.RawMessage(
		`{"source_branch":"feat/retries","target_branch":"main","title":"Add retries","draft":true}`))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestListMergeRequestsFilters(t *testing.T) {
	client := newFakeGitLab(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != "merged" {
			t.Errorf("expected state=merged, got %q", q.Get("state"))
		}
		if q.Get("target_branch") != "main" {
			t.Errorf("expected target_branch=main, got %q", q.Get("target_branch"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})

	_, err := listMergeRequests(context.Background(), client, json.RawMessage(`{"state":"merged","target_branch":"main"}`))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestDeleteWikiPage(t *testing.T) {
	client := newFakeGitLab(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		if got := r.URL.EscapedPath(); got != "/api/v4/projects/group%2Frepo/wikis/How-To" {
			t.Errorf("unexpected path: %s", got)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	result, err := deleteWikiPage(context.Background(), client, json.RawMessage(`{"slug":"How-To"}`))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp map[string]any
	json.Unmarshal(result, &resp)
	if resp["deleted"] != true || resp["slug"] != "How-To" {
		t.Errorf("unexpected result: %s", result)
	}
}

func TestCreateWikiPageOptionalFormat(t *testing.T) {
	client := newFakeGitLab(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		if _, present := body["format"]; present {
			t.Error("unset format should not be sent")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"slug":"Home"}`))
	})

	_, err := createWikiPage(context.Background(), client, json.RawMessage(`{"title":"Home","content":"welcome"}`))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestCreateMilestoneDates(t *testing.T) {
	client := newFakeGitLab(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		if body["due_date"] != "2025-12-31" {
			t.Errorf("unexpected due_date: %v", body["due_date"])
		}
		if _, present := body["start_date"]; present {
			t.Error("unset start_date should not be sent")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":3,"title":"v2.0"}`))
	})

	_, err := createMilestone(context.Background(), client, json.RawMessage(`{"title":"v2.0","due_date":"2025-12-31"}`))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestCreatePipelineVariablesList(t *testing.T) {
	client := newFakeGitLab(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.EscapedPath(); got != "/api/v4/projects/group%2Frepo/pipeline" {
			t.Errorf("unexpected path: %s", got)
		}
		body := decodeBody(t, r)
		if body["ref"] != "main" {
			t.Errorf("unexpected ref: %v", body["ref"])
		}
		vars, ok := body["variables"].([]any)
		if !ok || len(vars) != 1 {
			t.Fatalf("expected one variable entry, got %v", body["variables"])
		}
		entry := vars[0].(map[string]any)
		if entry["key"] != "DEPLOY" || entry["value"] != "true" {
			t.Errorf("unexpected variable entry: %v", entry)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":99,"status":"created"}`))
	})

	_, err := createPipeline(context.Background(), client, json.RawMessage(`{"ref":"main","variables":{"DEPLOY":"true"}}`))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestRetryPipeline(t *testing.T) {
	client := newFakeGitLab(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.URL.EscapedPath(); got != "/api/v4/projects/group%2Frepo/pipelines/99/retry" {
			t.Errorf("unexpected path: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":99,"status":"pending"}`))
	})

	result, err := retryPipeline(context.Background(), client, json.RawMessage(`{"pipeline_id":99}`))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var pipeline map[string]any
	json.Unmarshal(result, &pipeline)
	if pipeline["status"] != "pending" {
		t.Errorf("unexpected result: %s", result)
	}
}

func TestHandlerInvalidInput(t *testing.T) {
	client := clientWith(&session.Config{ProjectID: "group/repo"})

	for _, handler := range []Handler{listIssues, createIssue, getMergeRequest, createWikiPage} {
		if _, err := handler(context.Background(), client, json.RawMessage(`{invalid json`)); err == nil {
			t.Error("expected error for invalid JSON input")
		}
	}
}

func TestAPIErrorsPropagate(t *testing.T) {
	client := newFakeGitLab(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"404 Not Found"}`))
	})

	_, err := getIssue(context.Background(), client, json.RawMessage(`{"issue_iid":1}`))
	var apiErr *gitlab.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", apiErr.StatusCode)
	}
}
