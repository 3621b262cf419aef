// Package mcpserver exposes coordinator introspection and maintenance
// operations as Model Context Protocol tools over stdio transport.
package mcpserver

import (
	"encoding/json"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool name constants.
const (
	ToolNameInspectorData = "langbridge_inspector_data"
	ToolNameCacheStats    = "langbridge_cache_stats"
	ToolNameClearCache    = "langbridge_clear_cache"
	ToolNameReloadConfig  = "langbridge_reload_config"
)

// InspectorDataInput is the input schema for the inspector-data tool; it
// takes no parameters but is kept as a struct so the MCP SDK can still
// generate an (empty) input schema.
type InspectorDataInput struct{}

// CacheStatsInput selects which cache to report on.
type CacheStatsInput struct {
	Cache string `json:"cache,omitempty" jsonschema:"which cache to report on: result, type, or empty for both"`
}

// ClearCacheInput selects which cache to clear.
type ClearCacheInput struct {
	Cache string `json:"cache,omitempty" jsonschema:"which cache to clear: result, type, or empty for both"`
}

// ReloadConfigInput optionally points at a config file to reload from.
type ReloadConfigInput struct {
	ConfigPath string `json:"config_path,omitempty" jsonschema:"path to the config file to reload; empty loads from the default search locations"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// Tool description constants.
const (
	inspectorDataToolDescription = "Return a snapshot of coordinator state: " +
		"result-cache and type-cache stats, checker-pool worker list, recent " +
		"performance traces, recent log entries, and the active configuration."

	cacheStatsToolDescription = "Return entry count, byte usage, hit and miss " +
		"counts, and eviction count for the result cache, the type cache, or both."

	clearCacheToolDescription = "Clear the result cache, the type cache, or " +
		"both. Clearing the type cache also drops its dependency graph."

	reloadConfigToolDescription = "Reload configuration from disk and apply " +
		"it to the running coordinator. Returns the newly active configuration."
)
