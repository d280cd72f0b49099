package prompt

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/ticketsmith-io/ticketsmith/pkg/protocol"
)

//go:embed implement_feature.md
var implementFeatureTemplate string

// WorkspaceContext carries the provisioned workspace identifiers into the
// task prompt.
type WorkspaceContext struct {
	WorkspacePath string
	Branch        string
	RepoRoot      string
}

// BuildImplementPrompt renders the feature-implementation task prompt from a
// ticket, its comment transcript, and the workspace context. All bindings are
// guaranteed present, so rendering is strict.
func BuildImplementPrompt(ticket *protocol.Ticket, comments []protocol.TicketComment, ws WorkspaceContext) (string, error) {
	description := ticket.Description
	if description == "" {
		description = "No description provided"
	}

	bindings := map[string]any{
		"ticketKey":     ticket.Key,
		"title":         ticket.Title,
		"type":          ticket.Type,
		"priority":      ticket.Priority,
		"status":        ticket.State.Name,
		"description":   description,
		"storySection":  storySection(ticket.Story),
		"comments":      FormatTranscript(comments),
		"workspacePath": ws.WorkspacePath,
		"branch":        ws.Branch,
		"repoRoot":      ws.RepoRoot,
	}

	return RenderStrict(implementFeatureTemplate, bindings)
}

// FormatTranscript renders comments chronologically as
// "**author** (localized timestamp):\n> message" entries, or a placeholder
// when there are none.
func FormatTranscript(comments []protocol.TicketComment) string {
	if len(comments) == 0 {
		return "No comments"
	}
	parts := make([]string, 0, len(comments))
	for _, c := range comments {
		parts = append(parts, fmt.Sprintf("**%s** (%s):\n> %s", c.AuthorName, localizeTimestamp(c.CreatedAt), c.Message))
	}
	return strings.Join(parts, "\n\n")
}

func storySection(story *protocol.Story) string {
	if story == nil {
		return ""
	}
	return fmt.Sprintf("\n## Parent Story\n**Title:** %s\n**Description:** %s\n", story.Title, story.Description)
}

// localizeTimestamp renders an RFC3339 timestamp in the local timezone;
// unparseable values pass through verbatim.
func localizeTimestamp(raw string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
