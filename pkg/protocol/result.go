package protocol

// SubagentResult is the structured completion report extracted from a coding
// agent's free-form output. It is never persisted directly — only folded into
// a ticket comment and the final implementation output.
type SubagentResult struct {
	Success      bool     `json:"success"`
	Summary      string   `json:"summary,omitempty"`
	FilesChanged []string `json:"filesChanged,omitempty"`
	TestsRun     bool     `json:"testsRun,omitempty"`
	TestsPassed  bool     `json:"testsPassed,omitempty"`
	CommitSha    string   `json:"commitSha,omitempty"`
	NextSteps    []string `json:"nextSteps,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// ImplementationOutput is the orchestrator's final return value: the subagent
// result plus ticket and workspace identifiers. TicketUpdated reports whether
// the best-effort reconciliation (state transition + audit comment) succeeded;
// it is independent of Success, which reflects the subagent's own outcome.
type ImplementationOutput struct {
	Success       bool     `json:"success"`
	TicketKey     string   `json:"ticketKey"`
	WorkspacePath string   `json:"workspacePath"`
	Branch        string   `json:"branch"`
	Summary       string   `json:"summary"`
	FilesChanged  []string `json:"filesChanged,omitempty"`
	TestsRun      bool     `json:"testsRun,omitempty"`
	TestsPassed   bool     `json:"testsPassed,omitempty"`
	CommitSha     string   `json:"commitSha,omitempty"`
	NextSteps     []string `json:"nextSteps,omitempty"`
	Error         string   `json:"error,omitempty"`
	TicketUpdated bool     `json:"ticketUpdated"`
}
