package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ticketsmith-io/ticketsmith/internal/history"
	"github.com/ticketsmith-io/ticketsmith/internal/orchestrator"
	"github.com/ticketsmith-io/ticketsmith/internal/ticketing"
	"github.com/ticketsmith-io/ticketsmith/pkg/protocol"
)

type fakeService struct {
	tickets  map[string]*protocol.Ticket
	comments map[string][]protocol.TicketComment
	projects []protocol.Project
	pages    map[string]*protocol.TicketPage
	states   map[string][]protocol.WorkflowState

	lastFilter ticketing.ListFilter
	patches    []map[string]any
}

func (f *fakeService) GetTicket(ctx context.Context, id string) (*protocol.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return nil, &ticketing.APIError{Status: 404, Body: "not found"}
	}
	return t, nil
}

func (f *fakeService) ListProjects(ctx context.Context) ([]protocol.Project, error) {
	return f.projects, nil
}

func (f *fakeService) ListTickets(ctx context.Context, projectID string, filter ticketing.ListFilter) (*protocol.TicketPage, error) {
	f.lastFilter = filter
	if page, ok := f.pages[projectID]; ok {
		return page, nil
	}
	return &protocol.TicketPage{}, nil
}

func (f *fakeService) GetComments(ctx context.Context, ticketID string) ([]protocol.TicketComment, error) {
	return f.comments[ticketID], nil
}

func (f *fakeService) AddComment(ctx context.Context, ticketID, message string) (*protocol.TicketComment, error) {
	return &protocol.TicketComment{Message: message}, nil
}

func (f *fakeService) UpdateTicket(ctx context.Context, id string, patch map[string]any) (*protocol.Ticket, error) {
	f.patches = append(f.patches, patch)
	return f.tickets[id], nil
}

func (f *fakeService) GetWorkflow(ctx context.Context, projectID string) ([]protocol.WorkflowState, error) {
	return f.states[projectID], nil
}

func TestRegistryDispatch(t *testing.T) {
	reg := NewRegistry()
	svc := &fakeService{}
	reg.Register(&GetTicketTool{Service: svc})
	reg.Register(&AddCommentTool{Service: svc})

	if reg.Len() != 2 {
		t.Fatalf("len = %d", reg.Len())
	}
	if got := reg.List(); got[0] != "get_ticket" || got[1] != "add_comment" {
		t.Errorf("list = %v", got)
	}
	defs := reg.Definitions()
	if len(defs) != 2 || defs[0].Name != "get_ticket" {
		t.Errorf("defs = %+v", defs)
	}

	if _, err := reg.Execute(context.Background(), "no_such_tool", nil); err == nil {
		t.Error("expected error for unknown tool")
	}
}

func TestGetTicketIncludesComments(t *testing.T) {
	svc := &fakeService{
		tickets: map[string]*protocol.Ticket{
			"t-1": {ID: "t-1", Key: "PROJ-1", Title: "Login page"},
		},
		comments: map[string][]protocol.TicketComment{
			"t-1": {{AuthorName: "ada", Message: "please add tests"}},
		},
	}
	tool := &GetTicketTool{Service: svc}

	out, err := tool.Execute(context.Background(), map[string]any{"ticketId": "t-1"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	var decoded struct {
		Key      string                   `json:"key"`
		Comments []protocol.TicketComment `json:"comments"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Key != "PROJ-1" || len(decoded.Comments) != 1 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestListTicketsPassesFilters(t *testing.T) {
	svc := &fakeService{pages: map[string]*protocol.TicketPage{"p-1": {Total: 0}}}
	tool := &ListTicketsTool{Service: svc}

	_, err := tool.Execute(context.Background(), map[string]any{
		"projectId":  "p-1",
		"stateId":    "st-1",
		"assigneeId": "u-1",
		"query":      "login",
		"limit":      float64(25),
		"offset":     float64(50),
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := ticketing.ListFilter{StateID: "st-1", AssigneeID: "u-1", Query: "login", Limit: 25, Offset: 50}
	if svc.lastFilter != want {
		t.Errorf("filter = %+v", svc.lastFilter)
	}

	if _, err := tool.Execute(context.Background(), map[string]any{}); err == nil {
		t.Error("expected error without projectId")
	}
}

func TestSearchTicketsAcrossProjects(t *testing.T) {
	svc := &fakeService{
		projects: []protocol.Project{{ID: "p-1"}, {ID: "p-2"}},
		pages: map[string]*protocol.TicketPage{
			"p-1": {Items: []protocol.Ticket{{Key: "A-1"}}, Total: 1},
			"p-2": {Items: []protocol.Ticket{{Key: "B-1"}, {Key: "B-2"}}, Total: 2},
		},
	}
	tool := &SearchTicketsTool{Service: svc}

	out, err := tool.Execute(context.Background(), map[string]any{"query": "login"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var page protocol.TicketPage
	if err := json.Unmarshal([]byte(out), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 3 {
		t.Errorf("page = %+v", page)
	}
}

func TestUpdateTicketStateByName(t *testing.T) {
	svc := &fakeService{
		tickets: map[string]*protocol.Ticket{"t-1": {ID: "t-1", ProjectID: "p-1"}},
		states: map[string][]protocol.WorkflowState{
			"p-1": {{ID: "st-todo", Name: "Todo"}, {ID: "st-rev", Name: "In Review"}},
		},
	}
	tool := &UpdateTicketStateTool{Service: svc}

	if _, err := tool.Execute(context.Background(), map[string]any{
		"ticketId":  "t-1",
		"stateName": "in review",
	}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(svc.patches) != 1 || svc.patches[0]["stateId"] != "st-rev" {
		t.Errorf("patches = %v", svc.patches)
	}
}

func TestUpdateTicketStateUnknownNameListsStates(t *testing.T) {
	svc := &fakeService{
		tickets: map[string]*protocol.Ticket{"t-1": {ID: "t-1", ProjectID: "p-1"}},
		states: map[string][]protocol.WorkflowState{
			"p-1": {{ID: "st-todo", Name: "Todo"}, {ID: "st-done", Name: "Done"}},
		},
	}
	tool := &UpdateTicketStateTool{Service: svc}

	_, err := tool.Execute(context.Background(), map[string]any{
		"ticketId":  "t-1",
		"stateName": "Shipped",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "Todo") || !strings.Contains(msg, "Done") {
		t.Errorf("error should list valid states: %v", err)
	}
	if len(svc.patches) != 0 {
		t.Error("ticket must not be updated on a miss")
	}
}

func TestUpdateTicketStateByID(t *testing.T) {
	svc := &fakeService{tickets: map[string]*protocol.Ticket{"t-1": {ID: "t-1"}}}
	tool := &UpdateTicketStateTool{Service: svc}

	if _, err := tool.Execute(context.Background(), map[string]any{
		"ticketId": "t-1",
		"stateId":  "st-42",
	}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if svc.patches[0]["stateId"] != "st-42" {
		t.Errorf("patches = %v", svc.patches)
	}

	if _, err := tool.Execute(context.Background(), map[string]any{"ticketId": "t-1"}); err == nil {
		t.Error("expected error without stateId or stateName")
	}
}

type fakeImplementer struct {
	out protocol.ImplementationOutput
	req orchestrator.Request
}

func (f *fakeImplementer) Implement(ctx context.Context, req orchestrator.Request) protocol.ImplementationOutput {
	f.req = req
	return f.out
}

type fakeRecorder struct {
	attempts []history.Attempt
	err      error
}

func (f *fakeRecorder) Record(a *history.Attempt) error {
	if f.err != nil {
		return f.err
	}
	f.attempts = append(f.attempts, *a)
	return nil
}

type fakeNotifier struct {
	posts []string
}

func (f *fakeNotifier) Post(ctx context.Context, text string) error {
	f.posts = append(f.posts, text)
	return nil
}

func TestImplementTicketToolRecordsAndNotifies(t *testing.T) {
	impl := &fakeImplementer{out: protocol.ImplementationOutput{
		Success:   true,
		TicketKey: "PROJ-7",
		Branch:    "feature/PROJ-7",
		Summary:   "done",
	}}
	rec := &fakeRecorder{}
	notes := &fakeNotifier{}
	tool := &ImplementTicketTool{Orchestrator: impl, History: rec, Notify: notes}

	out, err := tool.Execute(context.Background(), map[string]any{
		"ticketId": "PROJ-7",
		"repoPath": "/repo",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if impl.req.TicketRef != "PROJ-7" || impl.req.RepoPath != "/repo" {
		t.Errorf("req = %+v", impl.req)
	}
	if len(rec.attempts) != 1 || rec.attempts[0].TicketKey != "PROJ-7" {
		t.Errorf("attempts = %+v", rec.attempts)
	}
	if len(notes.posts) != 1 || !strings.Contains(notes.posts[0], "PROJ-7") {
		t.Errorf("posts = %v", notes.posts)
	}
	if !strings.Contains(out, `"success": true`) {
		t.Errorf("out = %s", out)
	}
}

func TestImplementTicketToolFailureStillReturnsOutput(t *testing.T) {
	impl := &fakeImplementer{out: protocol.ImplementationOutput{
		Success: false,
		Summary: "Implementation failed",
		Error:   "Invalid ticket type",
	}}
	tool := &ImplementTicketTool{Orchestrator: impl, History: &fakeRecorder{err: errors.New("db closed")}}

	out, err := tool.Execute(context.Background(), map[string]any{"ticketId": "t-1"})
	if err != nil {
		t.Fatalf("a failed attempt is still a tool result: %v", err)
	}
	if !strings.Contains(out, "Invalid ticket type") {
		t.Errorf("out = %s", out)
	}
}
