package protocol

// Ticket types as exposed by the ticketing HTTP API.
const (
	TicketTypeFeature = "feature"
	TicketTypeBug     = "bug"
)

// WorkflowState is a named board column within a project. Order defines the
// column sequence; IsDefault marks where new tickets start and IsClosed marks
// terminal states.
type WorkflowState struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Order     int    `json:"order"`
	IsDefault bool   `json:"isDefault"`
	IsClosed  bool   `json:"isClosed"`
}

// Story is an optional parent grouping for tickets.
type Story struct {
	ID          string `json:"id"`
	ProjectID   string `json:"projectId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// UserSummary identifies a user without exposing account details.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Ticket is a unit of work on a project board. Key is unique within a project
// and derived from projectKey+number; StateID references a state belonging to
// the same project.
type Ticket struct {
	ID          string        `json:"id"`
	Key         string        `json:"key"`
	Number      int           `json:"number"`
	Type        string        `json:"type"`
	ProjectID   string        `json:"projectId"`
	ProjectKey  string        `json:"projectKey"`
	StoryID     *string       `json:"storyId"`
	Story       *Story        `json:"story,omitempty"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	StateID     string        `json:"stateId"`
	State       WorkflowState `json:"state"`
	AssigneeID  *string       `json:"assigneeId"`
	Assignee    *UserSummary  `json:"assignee,omitempty"`
	Priority    string        `json:"priority"`
	Position    int           `json:"position"`
	CreatedAt   string        `json:"createdAt"`
	UpdatedAt   string        `json:"updatedAt"`
}

// TicketComment is immutable once created and belongs to one ticket.
type TicketComment struct {
	ID         string `json:"id"`
	TicketID   string `json:"ticketId"`
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
	Message    string `json:"message"`
	CreatedAt  string `json:"createdAt"`
}

// Project is a board container for tickets and workflow states.
type Project struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// TicketPage is the paginated listing envelope returned by the API.
type TicketPage struct {
	Items []Ticket `json:"items"`
	Total int      `json:"total"`
}

// Board bundles a project with its states and tickets.
type Board struct {
	Project Project         `json:"project"`
	States  []WorkflowState `json:"states"`
	Tickets []Ticket        `json:"tickets"`
}
