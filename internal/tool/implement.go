package tool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ticketsmith-io/ticketsmith/internal/history"
	"github.com/ticketsmith-io/ticketsmith/internal/orchestrator"
	"github.com/ticketsmith-io/ticketsmith/pkg/protocol"
)

// Implementer runs one implementation attempt end to end.
// Implemented by *orchestrator.Orchestrator.
type Implementer interface {
	Implement(ctx context.Context, req orchestrator.Request) protocol.ImplementationOutput
}

// Recorder persists finished attempts. Implemented by *history.Store.
type Recorder interface {
	Record(a *history.Attempt) error
}

// Notifier announces attempt outcomes to a chat channel.
type Notifier interface {
	Post(ctx context.Context, text string) error
}

// ImplementTicketTool delegates a feature ticket to the coding agent.
// History and Notify are optional.
type ImplementTicketTool struct {
	Orchestrator Implementer
	History      Recorder
	Notify       Notifier
	Logger       *slog.Logger
}

func (t *ImplementTicketTool) Name() string { return "implement_ticket" }
func (t *ImplementTicketTool) Description() string {
	return "Implement a feature ticket: create a git worktree, run the coding agent against the ticket, and post the outcome back to the ticket"
}
func (t *ImplementTicketTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ticketId":      map[string]any{"type": "string", "description": "Ticket UUID or key (e.g. 'PROJ-001')"},
			"repoPath":      map[string]any{"type": "string", "description": "Path to the repository for worktree creation"},
			"workspaceRoot": map[string]any{"type": "string", "description": "Root directory for worktrees (default: ~/worktrees)"},
		},
		"required": []string{"ticketId"},
	}
}

func (t *ImplementTicketTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	ticketID := getString(params, "ticketId")
	if ticketID == "" {
		return "", fmt.Errorf("implement_ticket: ticketId is required")
	}

	started := time.Now()
	out := t.Orchestrator.Implement(ctx, orchestrator.Request{
		TicketRef:     ticketID,
		RepoPath:      getString(params, "repoPath"),
		WorkspaceRoot: getString(params, "workspaceRoot"),
	})
	finished := time.Now()

	if t.History != nil {
		attempt := history.FromOutput(ticketID, out, started, finished)
		if err := t.History.Record(&attempt); err != nil && t.Logger != nil {
			t.Logger.Warn("recording attempt failed", "ticket", ticketID, "error", err)
		}
	}
	if t.Notify != nil {
		if err := t.Notify.Post(ctx, notificationText(out)); err != nil && t.Logger != nil {
			t.Logger.Warn("notification failed", "ticket", ticketID, "error", err)
		}
	}

	// The output is always returned, including on failure, so the caller
	// sees what happened.
	return marshalResult(out)
}

func notificationText(out protocol.ImplementationOutput) string {
	if out.Success {
		return fmt.Sprintf(":white_check_mark: Implemented %s on `%s`: %s", out.TicketKey, out.Branch, out.Summary)
	}
	key := out.TicketKey
	if key == "" {
		key = "ticket"
	}
	return fmt.Sprintf(":warning: Implementation of %s failed: %s", key, out.Summary)
}
