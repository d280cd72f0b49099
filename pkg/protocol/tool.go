package protocol

// ToolDefinition describes a tool exposed over the MCP surface.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// NewToolDefinition creates a ToolDefinition.
func NewToolDefinition(name, description string, schema map[string]any) ToolDefinition {
	return ToolDefinition{
		Name:        name,
		Description: description,
		InputSchema: schema,
	}
}
