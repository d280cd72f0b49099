package orchestrator

import (
	"fmt"
	"strings"

	"github.com/ticketsmith-io/ticketsmith/internal/workspace"
	"github.com/ticketsmith-io/ticketsmith/pkg/protocol"
)

// buildCompletionComment renders the markdown posted back to the ticket.
// Sections with no content are omitted entirely.
func buildCompletionComment(result protocol.SubagentResult, ws *workspace.Workspace) string {
	status := "✅ Implementation Complete"
	if !result.Success {
		status = "⚠️ Implementation Incomplete"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", status)
	fmt.Fprintf(&b, "**Branch:** `%s`\n", ws.Branch)
	fmt.Fprintf(&b, "**Workspace:** `%s`\n", ws.Path)
	fmt.Fprintf(&b, "\n%s\n", result.Summary)

	if len(result.FilesChanged) > 0 {
		b.WriteString("\n**Files Changed:**\n")
		for _, f := range result.FilesChanged {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	if result.TestsRun {
		testStatus := "✅ Passed"
		if !result.TestsPassed {
			testStatus = "⚠️ Failed - Review Required"
		}
		fmt.Fprintf(&b, "\n**Tests:** %s\n", testStatus)
	}

	if result.CommitSha != "" {
		sha := result.CommitSha
		if len(sha) > 7 {
			sha = sha[:7]
		}
		fmt.Fprintf(&b, "\n**Commit:** `%s`\n", sha)
	}

	if len(result.NextSteps) > 0 {
		b.WriteString("\n**Next Steps:**\n")
		for _, s := range result.NextSteps {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	if result.Error != "" {
		fmt.Fprintf(&b, "\n**Error:** %s\n", result.Error)
	}

	b.WriteString("\n---\n*Automatically generated by feature implementation agent*")
	return b.String()
}
