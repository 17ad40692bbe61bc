// Package eventlog provides the append-only event store backing
// resumable MCP delivery. Events belong to independent streams; a
// client that reconnects with the ID of the last event it saw gets
// every later event of that stream re-delivered in append order.
package eventlog
