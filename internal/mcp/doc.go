// Package mcp implements the Model Context Protocol server for GitLab tool access.
//
// # Overview
//
// MCP (Model Context Protocol) is a standard for AI tool integration. This
// package provides the Streamable HTTP transport of that protocol: a single
// /mcp endpoint that external AI clients (Claude Desktop, other LLMs, custom
// applications) use to open sessions bound to a GitLab instance and call
// GitLab tools through them.
//
// # Protocol
//
// JSON-RPC 2.0 over HTTP, with Server-Sent Events for streaming delivery:
//
//   - POST /mcp - JSON-RPC requests (initialize, tools/list, tools/call, ping)
//   - GET /mcp - SSE channel for the session, resumable via Last-Event-ID
//   - DELETE /mcp - session termination
//
// # Sessions
//
// The initialize request carries GitLab connection settings as URL query
// parameters (api_url, access_token, project_id, and the read_only/use_wiki/
// use_milestone/use_pipeline toggles). A successful initialize registers the
// session and returns its ID in the Mcp-Session-Id response header; every
// later request must echo that header. Sessions expire after an idle timeout
// and clients re-initialize on 404.
//
// # Tool Execution
//
// Clients call tools/call to execute a tool:
//
//	{
//	  "jsonrpc": "2.0",
//	  "method": "tools/call",
//	  "params": {
//	    "name": "create_issue",
//	    "arguments": {"title": "Broken build"}
//	  },
//	  "id": 2
//	}
//
// Tool failures (permission, API, validation) come back as isError text
// results; only protocol-level problems become JSON-RPC errors.
//
// # Streaming and Resumability
//
// When a POST's Accept header prefers text/event-stream, the response is
// delivered as a one-event SSE stream whose event is first recorded in the
// event log under a per-request stream ID. A client that loses the
// connection reopens GET /mcp with Last-Event-ID and the missed events are
// replayed from the log before live delivery resumes.
package mcp
