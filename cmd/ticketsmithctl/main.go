// Command ticketsmithctl is the operator CLI: run an implementation attempt
// directly, inspect recorded runs, and check a running daemon.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ticketsmith-io/ticketsmith/internal/auth"
	"github.com/ticketsmith-io/ticketsmith/internal/config"
	"github.com/ticketsmith-io/ticketsmith/internal/history"
	"github.com/ticketsmith-io/ticketsmith/internal/orchestrator"
	"github.com/ticketsmith-io/ticketsmith/internal/subagent"
	"github.com/ticketsmith-io/ticketsmith/internal/ticketing"
	"github.com/ticketsmith-io/ticketsmith/internal/workspace"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "implement":
		cmdImplement(os.Args[2:])
	case "runs":
		if len(os.Args) < 3 || os.Args[2] != "list" {
			fmt.Fprintln(os.Stderr, "usage: ticketsmithctl runs list [--ticket KEY] [--limit N]")
			os.Exit(1)
		}
		cmdRunsList(os.Args[3:])
	case "health":
		cmdHealth()
	case "config":
		if len(os.Args) < 3 || os.Args[2] != "validate" {
			fmt.Fprintln(os.Stderr, "usage: ticketsmithctl config validate")
			os.Exit(1)
		}
		cmdConfigValidate()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`ticketsmithctl - operator CLI for ticketsmith

Commands:
  implement --ticket <id|key> [--repo PATH] [--workspace DIR]   Run one implementation attempt
  runs list [--ticket KEY] [--limit N]                          List recorded attempts
  health                                                        Check a running daemon
  config validate                                               Validate environment configuration`)
}

// --- implement ---

func cmdImplement(args []string) {
	fs := flag.NewFlagSet("implement", flag.ExitOnError)
	ticketRef := fs.String("ticket", "", "Ticket UUID or key (e.g. PROJ-7)")
	repoPath := fs.String("repo", "", "Repository path (default: REPO_PATH or current directory)")
	workspaceRoot := fs.String("workspace", "", "Worktree root (default: WORKSPACE_ROOT or ~/worktrees)")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(args)

	if *ticketRef == "" {
		fmt.Fprintln(os.Stderr, "error: --ticket is required")
		os.Exit(1)
	}

	logLevel := slog.LevelWarn
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	tokens := auth.NewKeycloak(cfg.Keycloak)
	client := ticketing.NewClient(cfg.Ticketing.BaseURL, tokens)
	provisioner := workspace.NewScript(cfg.Workspace.Provisioner, logger)
	runner := subagent.NewRunner(cfg.Subagent.Command, logger)
	orch := orchestrator.New(client, provisioner, runner, cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	out := orch.Implement(ctx, orchestrator.Request{
		TicketRef:     *ticketRef,
		RepoPath:      *repoPath,
		WorkspaceRoot: *workspaceRoot,
	})

	// Record locally so "runs list" sees CLI attempts too.
	os.MkdirAll(cfg.DataDir, 0o755)
	if store, err := history.NewStore(filepath.Join(cfg.DataDir, "attempts.db")); err == nil {
		attempt := history.FromOutput(*ticketRef, out, started, time.Now())
		if err := store.Record(&attempt); err != nil {
			logger.Warn("recording attempt failed", "error", err)
		}
		store.Close()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)

	if !out.Success {
		os.Exit(1)
	}
}

// --- runs list ---

func cmdRunsList(args []string) {
	fs := flag.NewFlagSet("runs list", flag.ExitOnError)
	ticketKey := fs.String("ticket", "", "Filter by ticket key")
	limit := fs.Int("limit", 20, "Maximum attempts to show")
	fs.Parse(args)

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	store, err := history.NewStore(filepath.Join(cfg.DataDir, "attempts.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	attempts, err := store.List(history.Filter{TicketKey: *ticketKey, Limit: *limit})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(attempts) == 0 {
		fmt.Println("no recorded attempts")
		return
	}

	for _, a := range attempts {
		status := "FAIL"
		if a.Success {
			status = "OK"
		}
		fmt.Printf("%-5d %-4s %-12s %-24s %s\n",
			a.ID, status, a.TicketKey, a.StartedAt.Local().Format("2006-01-02 15:04:05"), a.Summary)
	}
}

// --- health ---

func cmdHealth() {
	host := envOr("STATUS_API_HOST", "127.0.0.1")
	port := envOr("STATUS_API_PORT", "8090")
	url := fmt.Sprintf("http://%s:%s/api/health", host, port)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "daemon unreachable at %s: %v\n", url, err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "unhealthy (%d): %s\n", resp.StatusCode, body)
		os.Exit(1)
	}
	fmt.Printf("%s", body)
}

// --- config validate ---

func cmdConfigValidate() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		os.Exit(1)
	}
	fmt.Println("configuration OK")
	fmt.Printf("  ticketing:  %s\n", cfg.Ticketing.BaseURL)
	fmt.Printf("  keycloak:   %s (realm %s)\n", cfg.Keycloak.BaseURL, cfg.Keycloak.Realm)
	fmt.Printf("  workspace:  %s (repo %s)\n", cfg.Workspace.Root, cfg.Workspace.RepoPath)
	fmt.Printf("  subagent:   %s (timeout %s)\n", cfg.Subagent.Command, cfg.Subagent.Timeout)
	if cfg.Autopilot.Schedule != "" {
		fmt.Printf("  autopilot:  %s (project %s, state %s)\n", cfg.Autopilot.Schedule, cfg.Autopilot.ProjectID, cfg.Autopilot.StateName)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
