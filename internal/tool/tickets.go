package tool

import (
	"context"
	"fmt"

	"github.com/ticketsmith-io/ticketsmith/internal/ticketing"
	"github.com/ticketsmith-io/ticketsmith/pkg/protocol"
)

// --- GetTicketTool ---

// GetTicketTool fetches a ticket with its full comment thread.
type GetTicketTool struct {
	Service TicketService
}

func (t *GetTicketTool) Name() string        { return "get_ticket" }
func (t *GetTicketTool) Description() string { return "Get a ticket's details including its comments" }
func (t *GetTicketTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ticketId": map[string]any{"type": "string", "description": "The ticket ID (UUID)"},
		},
		"required": []string{"ticketId"},
	}
}

func (t *GetTicketTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	ticketID := getString(params, "ticketId")
	if ticketID == "" {
		return "", fmt.Errorf("get_ticket: ticketId is required")
	}

	ticket, err := t.Service.GetTicket(ctx, ticketID)
	if err != nil {
		return "", fmt.Errorf("get_ticket: %w", err)
	}
	comments, err := t.Service.GetComments(ctx, ticketID)
	if err != nil {
		return "", fmt.Errorf("get_ticket: comments: %w", err)
	}

	return marshalResult(struct {
		*protocol.Ticket
		Comments []protocol.TicketComment `json:"comments"`
	}{ticket, comments})
}

// --- ListTicketsTool ---

// ListTicketsTool lists a project's tickets with optional filters.
type ListTicketsTool struct {
	Service TicketService
}

func (t *ListTicketsTool) Name() string        { return "list_tickets" }
func (t *ListTicketsTool) Description() string { return "List tickets in a project, optionally filtered by state, assignee, or search query" }
func (t *ListTicketsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"projectId":  map[string]any{"type": "string", "description": "The project ID (UUID)"},
			"stateId":    map[string]any{"type": "string", "description": "Filter by state ID"},
			"assigneeId": map[string]any{"type": "string", "description": "Filter by assignee ID"},
			"query":      map[string]any{"type": "string", "description": "Search query"},
			"limit":      map[string]any{"type": "number", "description": "Results limit"},
			"offset":     map[string]any{"type": "number", "description": "Results offset"},
		},
		"required": []string{"projectId"},
	}
}

func (t *ListTicketsTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	projectID := getString(params, "projectId")
	if projectID == "" {
		return "", fmt.Errorf("list_tickets: projectId is required")
	}

	query := getString(params, "query")
	page, err := t.Service.ListTickets(ctx, projectID, ticketing.ListFilter{
		StateID:    getString(params, "stateId"),
		AssigneeID: getString(params, "assigneeId"),
		Query:      query,
		Limit:      getInt(params, "limit"),
		Offset:     getInt(params, "offset"),
	})
	if err != nil {
		return "", fmt.Errorf("list_tickets: %w", err)
	}

	return marshalResult(struct {
		*protocol.TicketPage
		Query string `json:"query,omitempty"`
	}{page, query})
}

// --- SearchTicketsTool ---

// SearchTicketsTool searches for tickets, across all projects when no
// project is given.
type SearchTicketsTool struct {
	Service TicketService
}

func (t *SearchTicketsTool) Name() string        { return "search_tickets" }
func (t *SearchTicketsTool) Description() string { return "Search tickets by text, across all projects or within one" }
func (t *SearchTicketsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":     map[string]any{"type": "string", "description": "Search query"},
			"projectId": map[string]any{"type": "string", "description": "Project ID to search in"},
		},
		"required": []string{"query"},
	}
}

func (t *SearchTicketsTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	query := getString(params, "query")
	if query == "" {
		return "", fmt.Errorf("search_tickets: query is required")
	}

	if projectID := getString(params, "projectId"); projectID != "" {
		page, err := t.Service.ListTickets(ctx, projectID, ticketing.ListFilter{Query: query})
		if err != nil {
			return "", fmt.Errorf("search_tickets: %w", err)
		}
		return marshalResult(page)
	}

	projects, err := t.Service.ListProjects(ctx)
	if err != nil {
		return "", fmt.Errorf("search_tickets: list projects: %w", err)
	}
	var all []protocol.Ticket
	for _, p := range projects {
		page, err := t.Service.ListTickets(ctx, p.ID, ticketing.ListFilter{Query: query})
		if err != nil {
			return "", fmt.Errorf("search_tickets: project %s: %w", p.ID, err)
		}
		all = append(all, page.Items...)
	}

	return marshalResult(&protocol.TicketPage{Items: all, Total: len(all)})
}
