// ABOUTME: Registry of GitLab tools with per-session visibility and dispatch.
// ABOUTME: Applies feature-toggle filtering and the read-only write gate.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/2389/glab-gateway/internal/gitlab"
)

// ErrToolNotFound indicates the requested tool is not registered or
// not visible to the session. Feature-disabled tools are deliberately
// indistinguishable from unknown ones.
var ErrToolNotFound = errors.New("tool not found")

// ErrDuplicateTool indicates a tool name is already registered.
var ErrDuplicateTool = errors.New("tool already registered")

// Feature classifies a tool under one of the session feature toggles.
type Feature int

const (
	FeatureCore Feature = iota
	FeatureWiki
	FeatureMilestone
	FeaturePipeline
)

// Handler executes a tool call with the session's API client.
type Handler func(ctx context.Context, client *gitlab.Client, input json.RawMessage) (json.RawMessage, error)

// Tool is one GitLab tool exposed over MCP. InputSchema is a
// hand-written JSON schema string describing the handler's input.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Write       bool
	Feature     Feature
	Handler     Handler
}

// Registry holds the builtin tool set.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Tool
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Tool),
		logger: logger.With("component", "tool-registry"),
	}
}

// Register adds a tool. Duplicate names are rejected.
func (r *Registry) Register(tool *Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, tool.Name)
	}
	r.tools[tool.Name] = tool
	return nil
}

// Get returns the tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// ListFor returns the tools visible to the session, sorted by name.
// Feature-gated tools are hidden unless the session enables them.
func (r *Registry) ListFor(client *gitlab.Client) []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	visible := make([]*Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		if enabledFor(tool, client) {
			visible = append(visible, tool)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].Name < visible[j].Name })
	return visible
}

// Call dispatches a tool call for the session. Unknown and
// feature-disabled tools both return ErrToolNotFound; write tools pass
// through the session's read-only gate before the handler runs.
func (r *Registry) Call(ctx context.Context, client *gitlab.Client, name string, input json.RawMessage) (json.RawMessage, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok || !enabledFor(tool, client) {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	if tool.Write {
		if err := client.ValidateWriteOperation(tool.Name); err != nil {
			return nil, err
		}
	}

	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}

	r.logger.Info("→ dispatching tool",
		"tool", name,
		"session_id", client.SessionID(),
	)
	result, err := tool.Handler(ctx, client, input)
	if err != nil {
		r.logger.Warn("tool failed",
			"tool", name,
			"session_id", client.SessionID(),
			"error", err,
		)
		return nil, err
	}
	r.logger.Info("← tool responded",
		"tool", name,
		"session_id", client.SessionID(),
	)
	return result, nil
}

func enabledFor(tool *Tool, client *gitlab.Client) bool {
	switch tool.Feature {
	case FeatureWiki:
		return client.WikiEnabled()
	case FeatureMilestone:
		return client.MilestoneEnabled()
	case FeaturePipeline:
		return client.PipelineEnabled()
	default:
		return true
	}
}
