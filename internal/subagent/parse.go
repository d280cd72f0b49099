package subagent

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/ticketsmith-io/ticketsmith/pkg/protocol"
)

// Extraction is the tagged outcome of parsing a coding agent's free-form
// output: either a structured result or the raw text that defied parsing.
type Extraction struct {
	Parsed bool
	Result protocol.SubagentResult
	Raw    string
}

var fencedJSONRe = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n```")

// Extract tries three strategies in order: a fenced JSON block, a
// brace-delimited substring mentioning the "success" field, and a keyword
// heuristic. A JSON parse failure in one strategy is never fatal — the next
// strategy gets its turn.
func Extract(output string) Extraction {
	if m := fencedJSONRe.FindStringSubmatch(output); m != nil {
		if result, ok := tryUnmarshal(m[1]); ok {
			return Extraction{Parsed: true, Result: result, Raw: output}
		}
	}

	if candidate, ok := braceScan(output); ok {
		if result, ok := tryUnmarshal(candidate); ok {
			return Extraction{Parsed: true, Result: result, Raw: output}
		}
	}

	lower := strings.ToLower(output)
	if strings.Contains(lower, "success") || strings.Contains(lower, "complete") {
		return Extraction{
			Parsed: true,
			Result: protocol.SubagentResult{
				Success: true,
				Summary: "Implementation completed (no JSON summary provided)",
			},
			Raw: output,
		}
	}

	return Extraction{Parsed: false, Raw: output}
}

// ParseOutput folds an unparseable extraction into the default failure shape.
func ParseOutput(output string) protocol.SubagentResult {
	ext := Extract(output)
	if ext.Parsed {
		return ext.Result
	}
	return protocol.SubagentResult{
		Success: false,
		Summary: "Unable to parse subagent output",
	}
}

// braceScan returns the substring from the first '{' to the last '}' when it
// contains the literal "success" field name.
func braceScan(output string) (string, bool) {
	start := strings.IndexByte(output, '{')
	end := strings.LastIndexByte(output, '}')
	if start == -1 || end <= start {
		return "", false
	}
	candidate := output[start : end+1]
	if !strings.Contains(candidate, `"success"`) {
		return "", false
	}
	return candidate, true
}

func tryUnmarshal(candidate string) (protocol.SubagentResult, bool) {
	var result protocol.SubagentResult
	if err := json.Unmarshal([]byte(candidate), &result); err != nil {
		return protocol.SubagentResult{}, false
	}
	return result, true
}
