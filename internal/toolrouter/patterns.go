package toolrouter

import "strings"

// MatchesPattern reports whether toolName matches pattern, supporting the
// same glob-lite syntax the teacher's matchToolPattern uses: an exact
// "mcp:*" wildcard, a ".*" server-scoped wildcard (e.g. "mcp:github.*"), or
// an exact match. Ported from internal/agent/tool_registry.go
// matchToolPattern, generalized to a standalone exported helper since
// toolrouter has no equivalent of the teacher's policy.Resolver.
func MatchesPattern(pattern, toolName string) bool {
	if pattern == "" || toolName == "" {
		return false
	}
	if pattern == "mcp:*" {
		return strings.HasPrefix(toolName, "mcp:")
	}
	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(toolName, prefix)
	}
	return pattern == toolName
}

// MatchesAnyPattern reports whether toolName matches any of patterns.
func MatchesAnyPattern(patterns []string, toolName string) bool {
	for _, p := range patterns {
		if MatchesPattern(p, toolName) {
			return true
		}
	}
	return false
}

// IsMCPTool reports whether toolName refers to an MCP-provided tool
// ("mcp:<server>.<tool>"), ported from internal/tools/policy.IsMCPTool.
func IsMCPTool(toolName string) bool {
	normalized := strings.ToLower(strings.TrimSpace(toolName))
	return strings.HasPrefix(normalized, "mcp:")
}

// ParseMCPToolName splits an "mcp:<server>.<tool>" reference into its parts,
// ported from internal/tools/policy.ParseMCPToolName.
func ParseMCPToolName(toolName string) (server, tool string) {
	normalized := strings.ToLower(strings.TrimSpace(toolName))
	trimmed := strings.TrimPrefix(normalized, "mcp:")
	if trimmed == normalized {
		return "", ""
	}
	parts := strings.SplitN(trimmed, ".", 2)
	if len(parts) < 2 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
