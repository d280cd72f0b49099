// Package orchestrator drives a ticket from reference to implemented code:
// resolve the ticket, provision a worktree, run the coding agent, and write
// the outcome back to the ticket.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ticketsmith-io/ticketsmith/internal/config"
	"github.com/ticketsmith-io/ticketsmith/internal/prompt"
	"github.com/ticketsmith-io/ticketsmith/internal/subagent"
	"github.com/ticketsmith-io/ticketsmith/internal/ticketing"
	"github.com/ticketsmith-io/ticketsmith/internal/workspace"
	"github.com/ticketsmith-io/ticketsmith/pkg/protocol"
)

var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// TicketAPI is the slice of the ticketing client the orchestrator needs.
type TicketAPI interface {
	GetTicket(ctx context.Context, id string) (*protocol.Ticket, error)
	ListProjects(ctx context.Context) ([]protocol.Project, error)
	ListTickets(ctx context.Context, projectID string, filter ticketing.ListFilter) (*protocol.TicketPage, error)
	GetComments(ctx context.Context, ticketID string) ([]protocol.TicketComment, error)
	AddComment(ctx context.Context, ticketID, message string) (*protocol.TicketComment, error)
	UpdateTicket(ctx context.Context, id string, patch map[string]any) (*protocol.Ticket, error)
	GetWorkflow(ctx context.Context, projectID string) ([]protocol.WorkflowState, error)
}

// AgentRunner runs the coding-agent subprocess.
type AgentRunner interface {
	Run(ctx context.Context, opts subagent.Options) protocol.SubagentResult
}

// NotFoundError reports that a ticket reference matched nothing, neither as a
// UUID nor as a key in any project.
type NotFoundError struct {
	Ref string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("ticket not found: %s (tried UUID and key formats)", e.Ref)
}

// Request identifies one implementation attempt. RepoPath and WorkspaceRoot
// override the configured defaults when non-empty.
type Request struct {
	TicketRef     string
	RepoPath      string
	WorkspaceRoot string
}

// Orchestrator wires the collaborators for the implement flow.
type Orchestrator struct {
	api         TicketAPI
	provisioner workspace.Provisioner
	runner      AgentRunner
	cfg         *config.Config
	logger      *slog.Logger
}

func New(api TicketAPI, prov workspace.Provisioner, runner AgentRunner, cfg *config.Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{api: api, provisioner: prov, runner: runner, cfg: cfg, logger: logger}
}

// Implement runs the full flow for one ticket. It always returns a structured
// output; failures surface in the Success and Error fields, never as a panic.
// The ticket is left untouched when a step before the subagent fails.
func (o *Orchestrator) Implement(ctx context.Context, req Request) protocol.ImplementationOutput {
	o.logger.Info("starting implementation", "ticket", req.TicketRef)

	ticket, err := o.ResolveTicket(ctx, req.TicketRef)
	if err != nil {
		return failure(req.TicketRef, "Implementation failed", err.Error())
	}

	if ticket.Type != protocol.TicketTypeFeature {
		return failure(ticket.Key,
			fmt.Sprintf("Ticket is a %s, not a feature. Use different workflow for bugs.", ticket.Type),
			"Invalid ticket type")
	}

	comments, err := o.api.GetComments(ctx, ticket.ID)
	if err != nil {
		// The prompt is still useful without the transcript.
		o.logger.Warn("fetching comments failed", "ticket", ticket.Key, "error", err)
		comments = nil
	}

	repoPath := firstNonEmpty(req.RepoPath, o.cfg.Workspace.RepoPath, ".")
	workspaceRoot := firstNonEmpty(req.WorkspaceRoot, o.cfg.Workspace.Root)

	ws, err := o.provisioner.Provision(ctx, ticket.Key, repoPath, workspaceRoot)
	if err != nil {
		return failure(ticket.Key, "Failed to create worktree", err.Error())
	}
	o.logger.Info("worktree ready", "path", ws.Path, "branch", ws.Branch)

	taskPrompt, err := prompt.BuildImplementPrompt(ticket, comments, prompt.WorkspaceContext{
		WorkspacePath: ws.Path,
		Branch:        ws.Branch,
		RepoRoot:      ws.RepoRoot,
	})
	if err != nil {
		return failure(ticket.Key, "Failed to generate prompt", err.Error())
	}

	timeout := subagent.ParseTimeout(o.cfg.Subagent.Timeout, o.logger)
	result := o.runner.Run(ctx, subagent.Options{
		WorkspacePath: ws.Path,
		Prompt:        taskPrompt,
		Timeout:       timeout,
	})

	updated := o.reconcile(ctx, ticket, result, ws)

	summary := result.Summary
	if summary == "" {
		summary = "Implementation completed"
	}
	out := protocol.ImplementationOutput{
		Success:       result.Success,
		TicketKey:     ticket.Key,
		WorkspacePath: ws.Path,
		Branch:        ws.Branch,
		Summary:       summary,
		FilesChanged:  result.FilesChanged,
		TestsRun:      result.TestsRun,
		TestsPassed:   result.TestsPassed,
		CommitSha:     result.CommitSha,
		NextSteps:     result.NextSteps,
		Error:         result.Error,
		TicketUpdated: updated,
	}
	o.logger.Info("implementation finished", "ticket", ticket.Key, "success", out.Success, "ticketUpdated", updated)
	return out
}

// ResolveTicket accepts a UUID or a human key like PROJ-7. A UUID-shaped
// reference is fetched directly; if that fetch fails for any reason the
// reference is retried as a key, searching every project for an exact match.
func (o *Orchestrator) ResolveTicket(ctx context.Context, ref string) (*protocol.Ticket, error) {
	if uuidRe.MatchString(strings.ToLower(ref)) {
		ticket, err := o.api.GetTicket(ctx, ref)
		if err == nil {
			return ticket, nil
		}
		o.logger.Warn("direct fetch failed, retrying as key", "ref", ref, "error", err)
	}

	projects, err := o.api.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: list projects: %w", err)
	}
	for _, p := range projects {
		page, err := o.api.ListTickets(ctx, p.ID, ticketing.ListFilter{Query: ref})
		if err != nil {
			continue
		}
		for i := range page.Items {
			if page.Items[i].Key == ref {
				return &page.Items[i], nil
			}
		}
	}
	return nil, &NotFoundError{Ref: ref}
}

// reconcile moves the ticket to a review state and posts the completion
// comment. Both sub-steps are best effort: a failure is logged and reported
// through the returned flag but never fails the attempt itself.
func (o *Orchestrator) reconcile(ctx context.Context, ticket *protocol.Ticket, result protocol.SubagentResult, ws *workspace.Workspace) bool {
	ok := true

	states, err := o.api.GetWorkflow(ctx, ticket.ProjectID)
	if err != nil {
		o.logger.Warn("fetching workflow failed", "ticket", ticket.Key, "error", err)
		ok = false
	} else if review := findReviewState(states); review != nil && o.cfg.Ticketing.AutoUpdateState {
		if _, err := o.api.UpdateTicket(ctx, ticket.ID, map[string]any{"stateId": review.ID}); err != nil {
			o.logger.Warn("state transition failed", "ticket", ticket.Key, "state", review.Name, "error", err)
			ok = false
		} else {
			o.logger.Info("ticket moved to review", "ticket", ticket.Key, "state", review.Name)
		}
	}

	comment := buildCompletionComment(result, ws)
	if _, err := o.api.AddComment(ctx, ticket.ID, comment); err != nil {
		o.logger.Warn("posting completion comment failed", "ticket", ticket.Key, "error", err)
		ok = false
	}
	return ok
}

func findReviewState(states []protocol.WorkflowState) *protocol.WorkflowState {
	for i := range states {
		switch strings.ToLower(states[i].Name) {
		case "in review", "review", "in_review":
			return &states[i]
		}
	}
	return nil
}

func failure(ticketKey, summary, errMsg string) protocol.ImplementationOutput {
	return protocol.ImplementationOutput{
		Success:   false,
		TicketKey: ticketKey,
		Summary:   summary,
		Error:     errMsg,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
