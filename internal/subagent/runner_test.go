package subagent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeAgent writes a shell script standing in for the coding-agent binary.
func fakeAgent(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake agent: %v", err)
	}
	return path
}

func TestRun_ParsesFencedResult(t *testing.T) {
	workspace := t.TempDir()
	agent := fakeAgent(t, "printf 'Working...\\n%s\\n{\"success\":true,\"summary\":\"done\",\"commitSha\":\"abc123def456\"}\\n%s\\n' '```json' '```'")

	result := NewRunner(agent, nil).Run(context.Background(), Options{
		WorkspacePath: workspace,
		Prompt:        "do the thing",
		Timeout:       10 * time.Second,
	})

	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if result.Summary != "done" || result.CommitSha != "abc123def456" {
		t.Errorf("result = %+v", result)
	}
}

func TestRun_MissingWorkspace(t *testing.T) {
	agent := fakeAgent(t, "echo ok")

	result := NewRunner(agent, nil).Run(context.Background(), Options{
		WorkspacePath: "/no/such/workspace",
		Prompt:        "task",
	})

	if result.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.Error, "does not exist") {
		t.Errorf("error = %q", result.Error)
	}
}

func TestRun_NonZeroExitIsFailureResult(t *testing.T) {
	workspace := t.TempDir()
	agent := fakeAgent(t, "exit 2")

	result := NewRunner(agent, nil).Run(context.Background(), Options{
		WorkspacePath: workspace,
		Prompt:        "task",
		Timeout:       10 * time.Second,
	})

	if result.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.Error, "subagent failed") {
		t.Errorf("error = %q", result.Error)
	}
}

func TestRun_Timeout(t *testing.T) {
	workspace := t.TempDir()
	agent := fakeAgent(t, "sleep 5")

	start := time.Now()
	result := NewRunner(agent, nil).Run(context.Background(), Options{
		WorkspacePath: workspace,
		Prompt:        "task",
		Timeout:       200 * time.Millisecond,
	})

	if time.Since(start) > 3*time.Second {
		t.Fatal("timeout not enforced")
	}
	if result.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.Error, "timed out") {
		t.Errorf("error = %q", result.Error)
	}
}

func TestRun_CleansUpPromptFile(t *testing.T) {
	workspace := t.TempDir()
	// The prompt file must exist while the agent runs and be gone after,
	// even when the agent fails.
	agent := fakeAgent(t, `test -f .agent-prompt.txt || exit 9; exit 1`)

	NewRunner(agent, nil).Run(context.Background(), Options{
		WorkspacePath: workspace,
		Prompt:        "task",
		Timeout:       10 * time.Second,
	})

	if _, err := os.Stat(filepath.Join(workspace, promptFileName)); err == nil {
		t.Error("prompt file should be removed after the run")
	}
}

func TestRun_PromptFileCarriesSystemMessageAndTask(t *testing.T) {
	workspace := t.TempDir()
	os.WriteFile(filepath.Join(workspace, "main.go"), []byte("package main"), 0o644)
	copied := filepath.Join(t.TempDir(), "prompt-copy")
	agent := fakeAgent(t, "cp .agent-prompt.txt "+copied+`; echo '{"success":true,"summary":"ok"}'`)

	NewRunner(agent, nil).Run(context.Background(), Options{
		WorkspacePath: workspace,
		Prompt:        "THE TASK PROMPT",
		Timeout:       10 * time.Second,
	})

	data, err := os.ReadFile(copied)
	if err != nil {
		t.Fatalf("prompt copy missing: %v", err)
	}
	content := string(data)
	for _, want := range []string{workspace, "Do NOT push to remote", "main.go", "THE TASK PROMPT"} {
		if !strings.Contains(content, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
