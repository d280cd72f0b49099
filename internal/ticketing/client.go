package ticketing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ticketsmith-io/ticketsmith/pkg/protocol"
)

// APIError is returned for any non-2xx response from the ticketing API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ticketing: API error %d: %s", e.Status, e.Body)
}

// TokenSource supplies a bearer token for each request.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// ListFilter holds optional ticket listing filters. Zero-valued fields are
// omitted from the query string rather than sent empty.
type ListFilter struct {
	StateID    string
	AssigneeID string
	Query      string
	Limit      int
	Offset     int
}

func (f ListFilter) encode() string {
	q := url.Values{}
	if f.StateID != "" {
		q.Set("stateId", f.StateID)
	}
	if f.AssigneeID != "" {
		q.Set("assigneeId", f.AssigneeID)
	}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q.Encode()
}

// Client is a typed wrapper over the ticketing HTTP API. Every call attaches
// a bearer token from the token source and hits the network — there is no
// client-side caching.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// NewClient creates a ticketing API client.
func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) request(ctx context.Context, method, path string, body any, out any) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("ticketing: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ticketing: marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("ticketing: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ticketing: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ticketing: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("ticketing: decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

// GetTicket fetches a ticket by its opaque ID.
func (c *Client) GetTicket(ctx context.Context, id string) (*protocol.Ticket, error) {
	var t protocol.Ticket
	if err := c.request(ctx, http.MethodGet, "/tickets/"+id, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTickets lists a project's tickets with optional filters.
func (c *Client) ListTickets(ctx context.Context, projectID string, filter ListFilter) (*protocol.TicketPage, error) {
	path := "/projects/" + projectID + "/tickets"
	if q := filter.encode(); q != "" {
		path += "?" + q
	}
	var page protocol.TicketPage
	if err := c.request(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetComments returns all comments on a ticket in chronological order.
func (c *Client) GetComments(ctx context.Context, ticketID string) ([]protocol.TicketComment, error) {
	var envelope struct {
		Items []protocol.TicketComment `json:"items"`
	}
	if err := c.request(ctx, http.MethodGet, "/tickets/"+ticketID+"/comments", nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Items, nil
}

// AddComment posts a comment to a ticket.
func (c *Client) AddComment(ctx context.Context, ticketID, message string) (*protocol.TicketComment, error) {
	var comment protocol.TicketComment
	body := map[string]string{"message": message}
	if err := c.request(ctx, http.MethodPost, "/tickets/"+ticketID+"/comments", body, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// UpdateTicket applies a partial patch to a ticket.
func (c *Client) UpdateTicket(ctx context.Context, id string, patch map[string]any) (*protocol.Ticket, error) {
	var t protocol.Ticket
	if err := c.request(ctx, http.MethodPatch, "/tickets/"+id, patch, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetWorkflow returns a project's workflow states.
func (c *Client) GetWorkflow(ctx context.Context, projectID string) ([]protocol.WorkflowState, error) {
	var envelope struct {
		States []protocol.WorkflowState `json:"states"`
	}
	if err := c.request(ctx, http.MethodGet, "/projects/"+projectID+"/workflow", nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.States, nil
}

// GetBoard returns a project's board (project, states, tickets).
func (c *Client) GetBoard(ctx context.Context, projectID string) (*protocol.Board, error) {
	var b protocol.Board
	if err := c.request(ctx, http.MethodGet, "/projects/"+projectID+"/board", nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListProjects returns all projects visible to the authenticated user.
func (c *Client) ListProjects(ctx context.Context) ([]protocol.Project, error) {
	var envelope struct {
		Items []protocol.Project `json:"items"`
	}
	if err := c.request(ctx, http.MethodGet, "/projects", nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Items, nil
}
