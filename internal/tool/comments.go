package tool

import (
	"context"
	"fmt"
)

// AddCommentTool posts a comment to a ticket.
type AddCommentTool struct {
	Service TicketService
}

func (t *AddCommentTool) Name() string        { return "add_comment" }
func (t *AddCommentTool) Description() string { return "Add a comment to a ticket" }
func (t *AddCommentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ticketId": map[string]any{"type": "string", "description": "The ticket ID (UUID)"},
			"message":  map[string]any{"type": "string", "description": "Comment message"},
		},
		"required": []string{"ticketId", "message"},
	}
}

func (t *AddCommentTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	ticketID := getString(params, "ticketId")
	message := getString(params, "message")
	if ticketID == "" {
		return "", fmt.Errorf("add_comment: ticketId is required")
	}
	if message == "" {
		return "", fmt.Errorf("add_comment: message is required")
	}

	comment, err := t.Service.AddComment(ctx, ticketID, message)
	if err != nil {
		return "", fmt.Errorf("add_comment: %w", err)
	}
	return marshalResult(comment)
}
