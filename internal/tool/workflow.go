package tool

import (
	"context"
	"fmt"
	"strings"
)

// StateChange is the tagged form of an update_ticket_state request: the
// target state is named either by ID or by case-insensitive name, decided
// once when the parameters are decoded.
type StateChange struct {
	ByID   string
	ByName string
}

func decodeStateChange(params map[string]any) (StateChange, error) {
	if id := getString(params, "stateId"); id != "" {
		return StateChange{ByID: id}, nil
	}
	if name := getString(params, "stateName"); name != "" {
		return StateChange{ByName: name}, nil
	}
	return StateChange{}, fmt.Errorf("either stateId or stateName is required")
}

// --- UpdateTicketStateTool ---

// UpdateTicketStateTool moves a ticket to another workflow state.
type UpdateTicketStateTool struct {
	Service TicketService
}

func (t *UpdateTicketStateTool) Name() string        { return "update_ticket_state" }
func (t *UpdateTicketStateTool) Description() string { return "Move a ticket to another workflow state, by state ID or by state name" }
func (t *UpdateTicketStateTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ticketId":  map[string]any{"type": "string", "description": "The ticket ID (UUID)"},
			"stateId":   map[string]any{"type": "string", "description": "The state ID (UUID)"},
			"stateName": map[string]any{"type": "string", "description": "The state name (e.g. 'Todo', 'In Review', 'Done')"},
		},
		"required": []string{"ticketId"},
	}
}

func (t *UpdateTicketStateTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	ticketID := getString(params, "ticketId")
	if ticketID == "" {
		return "", fmt.Errorf("update_ticket_state: ticketId is required")
	}
	change, err := decodeStateChange(params)
	if err != nil {
		return "", fmt.Errorf("update_ticket_state: %w", err)
	}

	stateID := change.ByID
	if change.ByName != "" {
		ticket, err := t.Service.GetTicket(ctx, ticketID)
		if err != nil {
			return "", fmt.Errorf("update_ticket_state: %w", err)
		}
		states, err := t.Service.GetWorkflow(ctx, ticket.ProjectID)
		if err != nil {
			return "", fmt.Errorf("update_ticket_state: workflow: %w", err)
		}
		found := false
		for _, s := range states {
			if strings.EqualFold(s.Name, change.ByName) {
				stateID = s.ID
				found = true
				break
			}
		}
		if !found {
			names := make([]string, len(states))
			for i, s := range states {
				names[i] = s.Name
			}
			return "", fmt.Errorf("update_ticket_state: state %q not found. Available states: %s",
				change.ByName, strings.Join(names, ", "))
		}
	}

	updated, err := t.Service.UpdateTicket(ctx, ticketID, map[string]any{"stateId": stateID})
	if err != nil {
		return "", fmt.Errorf("update_ticket_state: %w", err)
	}
	return marshalResult(updated)
}

// --- GetWorkflowTool ---

// GetWorkflowTool lists a project's workflow states.
type GetWorkflowTool struct {
	Service TicketService
}

func (t *GetWorkflowTool) Name() string        { return "get_project_workflow" }
func (t *GetWorkflowTool) Description() string { return "Get a project's workflow states with their ordering and flags" }
func (t *GetWorkflowTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"projectId": map[string]any{"type": "string", "description": "The project ID (UUID)"},
		},
		"required": []string{"projectId"},
	}
}

func (t *GetWorkflowTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	projectID := getString(params, "projectId")
	if projectID == "" {
		return "", fmt.Errorf("get_project_workflow: projectId is required")
	}
	states, err := t.Service.GetWorkflow(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("get_project_workflow: %w", err)
	}
	return marshalResult(states)
}
