package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
)

// Error is returned for any provisioning failure: a missing repository path,
// a provisioner exit failure, or malformed provisioner output. All of them
// terminate an implementation attempt before an agent is spawned.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("workspace: %s: %v", e.Reason, e.Err)
	}
	return "workspace: " + e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// Workspace is the provisioner's answer: an isolated, branch-checked-out
// working directory for one implementation attempt. The core never deletes
// it — failed attempts stay inspectable.
type Workspace struct {
	Path     string
	Branch   string
	RepoRoot string
}

// Provisioner creates an isolated workspace for a ticket.
type Provisioner interface {
	Provision(ctx context.Context, ticketKey, repoPath, workspaceRoot string) (*Workspace, error)
}

// scriptResult is the JSON object the provisioning executable emits on stdout.
type scriptResult struct {
	Success      bool   `json:"success"`
	WorktreePath string `json:"worktreePath"`
	Branch       string `json:"branch"`
	RepoRoot     string `json:"repoRoot"`
	Error        string `json:"error,omitempty"`
}

// Script invokes an external worktree-provisioning executable with positional
// arguments (ticketKey, repoPath, workspaceRoot) and parses its JSON stdout.
type Script struct {
	Command string
	Logger  *slog.Logger
}

// NewScript creates a script-backed provisioner.
func NewScript(command string, logger *slog.Logger) *Script {
	if logger == nil {
		logger = slog.Default()
	}
	return &Script{Command: command, Logger: logger}
}

// Provision runs the provisioning executable. The repository path must exist
// before the executable is invoked; any non-success result, including
// malformed output, is a hard failure.
func (s *Script) Provision(ctx context.Context, ticketKey, repoPath, workspaceRoot string) (*Workspace, error) {
	if _, err := os.Stat(repoPath); err != nil {
		return nil, &Error{Reason: fmt.Sprintf("repository path does not exist: %s", repoPath)}
	}

	cmd := exec.CommandContext(ctx, s.Command, ticketKey, repoPath, workspaceRoot)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		s.Logger.Error("provisioner failed", "ticket", ticketKey, "stderr", stderr.String())
		return nil, &Error{Reason: "provisioner failed", Err: err}
	}
	if stderr.Len() > 0 {
		s.Logger.Debug("provisioner stderr", "ticket", ticketKey, "stderr", stderr.String())
	}

	var result scriptResult
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &result); err != nil {
		return nil, &Error{Reason: "malformed provisioner output", Err: err}
	}
	if !result.Success {
		reason := result.Error
		if reason == "" {
			reason = "provisioner returned success: false"
		}
		return nil, &Error{Reason: reason}
	}

	s.Logger.Info("workspace provisioned",
		"ticket", ticketKey, "path", result.WorktreePath, "branch", result.Branch)

	return &Workspace{
		Path:     result.WorktreePath,
		Branch:   result.Branch,
		RepoRoot: result.RepoRoot,
	}, nil
}
