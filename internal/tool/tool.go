// Package tool exposes the ticketing operations as agent-callable tools.
package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ticketsmith-io/ticketsmith/internal/ticketing"
	"github.com/ticketsmith-io/ticketsmith/pkg/protocol"
)

// Tool is the interface every agent tool must implement.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any // JSON Schema
	Execute(ctx context.Context, params map[string]any) (string, error)
}

// TicketService abstracts the ticketing API for the tool handlers.
// Implemented by *ticketing.Client; faked in tests.
type TicketService interface {
	GetTicket(ctx context.Context, id string) (*protocol.Ticket, error)
	ListProjects(ctx context.Context) ([]protocol.Project, error)
	ListTickets(ctx context.Context, projectID string, filter ticketing.ListFilter) (*protocol.TicketPage, error)
	GetComments(ctx context.Context, ticketID string) ([]protocol.TicketComment, error)
	AddComment(ctx context.Context, ticketID, message string) (*protocol.TicketComment, error)
	UpdateTicket(ctx context.Context, id string, patch map[string]any) (*protocol.Ticket, error)
	GetWorkflow(ctx context.Context, projectID string) ([]protocol.WorkflowState, error)
}

// --- helpers ---

func getString(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func getInt(params map[string]any, key string) int {
	switch v := params[key].(type) {
	case float64: // JSON numbers decode as float64
		return int(v)
	case int:
		return v
	}
	return 0
}

func marshalResult(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("tool: encode result: %w", err)
	}
	return string(data), nil
}
