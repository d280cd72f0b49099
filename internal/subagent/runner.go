package subagent

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ticketsmith-io/ticketsmith/pkg/protocol"
)

const (
	promptFileName = ".agent-prompt.txt"
	maxOutputSize  = 10 * 1024 * 1024 // 10MB
	maxContextDirs = 10
)

// Options configures a single subagent run.
type Options struct {
	WorkspacePath string
	Prompt        string
	Timeout       time.Duration
}

// Runner spawns the external coding agent against a provisioned workspace.
// Failures — missing workspace, non-zero exit, timeout, unparseable output —
// are returned as structured failure results, never as panics or crashes, so
// the orchestrator can still post a failure comment.
type Runner struct {
	Command string
	Logger  *slog.Logger
}

// NewRunner creates a runner for the given coding-agent executable.
func NewRunner(command string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{Command: command, Logger: logger}
}

// Run writes the combined system message and task prompt to a scratch file in
// the workspace, invokes the coding agent with a wall-clock timeout, and
// extracts a structured result from its output. The scratch file is removed
// regardless of outcome.
func (r *Runner) Run(ctx context.Context, opts Options) protocol.SubagentResult {
	if _, err := os.Stat(opts.WorkspacePath); err != nil {
		return protocol.SubagentResult{
			Success: false,
			Error:   fmt.Sprintf("workspace path does not exist: %s", opts.WorkspacePath),
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	fullPrompt := r.systemMessage(opts.WorkspacePath) + "\n\n---\n\n" + opts.Prompt

	// A scratch file sidesteps shell quoting hazards with large prompts.
	promptFile := filepath.Join(opts.WorkspacePath, promptFileName)
	if err := os.WriteFile(promptFile, []byte(fullPrompt), 0o644); err != nil {
		return protocol.SubagentResult{
			Success: false,
			Error:   fmt.Sprintf("write prompt file: %v", err),
		}
	}
	defer os.Remove(promptFile)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r.Logger.Info("subagent starting", "workspace", opts.WorkspacePath, "timeout", timeout)

	cmd := exec.CommandContext(ctx, r.Command, "--read-file", promptFileName, "--output-format", "text")
	cmd.Dir = opts.WorkspacePath
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()

	output := buf.String()
	if len(output) > maxOutputSize {
		output = output[:maxOutputSize]
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			r.Logger.Error("subagent timed out", "workspace", opts.WorkspacePath, "timeout", timeout)
			return protocol.SubagentResult{
				Success: false,
				Error:   fmt.Sprintf("subagent timed out after %s", timeout),
			}
		}
		r.Logger.Error("subagent failed", "error", err)
		return protocol.SubagentResult{
			Success: false,
			Error:   fmt.Sprintf("subagent failed: %v", err),
		}
	}

	r.Logger.Info("subagent finished", "output_len", len(output))
	return ParseOutput(output)
}

// systemMessage embeds the workspace path, fixed behavioral instructions, and
// a short directory listing so the agent starts grounded.
func (r *Runner) systemMessage(workspacePath string) string {
	var listing []string
	entries, err := os.ReadDir(workspacePath)
	if err == nil {
		for i, e := range entries {
			if i >= maxContextDirs {
				break
			}
			listing = append(listing, e.Name())
		}
	}

	return fmt.Sprintf(`You are an expert software engineer implementing features in a code repository.

You are working in the following directory: %s

Your task is to:
1. Understand the feature request
2. Examine the existing code structure and patterns
3. Implement the feature according to the ticket requirements
4. Write appropriate tests
5. Ensure all tests pass
6. Commit your changes with a clear commit message

Important guidelines:
- Follow the existing code style and conventions
- Write clean, maintainable code
- Add tests for new functionality
- Make small, focused commits
- Use git to track changes: git add, git commit
- Do NOT push to remote - only commit locally
- Do NOT modify the git remote configuration

When you are finished with the implementation, respond with a JSON block like this:
`+"```json"+`
{
  "success": true,
  "summary": "Brief description of what was implemented",
  "filesChanged": ["file1", "file2"],
  "testsRun": true,
  "testsPassed": true,
  "commitSha": "abc123def456",
  "nextSteps": []
}
`+"```"+`

If implementation fails, include "success": false with an error summary.

Current workspace contents (first %d items):
%s

Begin implementation now.`, workspacePath, maxContextDirs, strings.Join(listing, "\n"))
}
