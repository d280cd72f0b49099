// Command ticketsmithd serves the ticketing tool surface over MCP on stdio.
// Logs go to stderr; stdout is reserved for the JSON-RPC transport.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	apiPkg "github.com/ticketsmith-io/ticketsmith/internal/api"
	"github.com/ticketsmith-io/ticketsmith/internal/auth"
	"github.com/ticketsmith-io/ticketsmith/internal/config"
	"github.com/ticketsmith-io/ticketsmith/internal/history"
	"github.com/ticketsmith-io/ticketsmith/internal/logbuf"
	"github.com/ticketsmith-io/ticketsmith/internal/mcp"
	"github.com/ticketsmith-io/ticketsmith/internal/notify"
	"github.com/ticketsmith-io/ticketsmith/internal/orchestrator"
	"github.com/ticketsmith-io/ticketsmith/internal/poller"
	"github.com/ticketsmith-io/ticketsmith/internal/subagent"
	"github.com/ticketsmith-io/ticketsmith/internal/ticketing"
	"github.com/ticketsmith-io/ticketsmith/internal/tool"
	"github.com/ticketsmith-io/ticketsmith/internal/workspace"
)

const version = "0.3.0"

func main() {
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logBuf := logbuf.New(2000)
	jsonHandler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logbuf.NewHandler(jsonHandler, logBuf))

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("ticketsmithd starting", "version", version, "ticketing", cfg.Ticketing.BaseURL)

	// Ticketing client with Keycloak-backed tokens
	tokens := auth.NewKeycloak(cfg.Keycloak)
	client := ticketing.NewClient(cfg.Ticketing.BaseURL, tokens)

	// Attempt history
	os.MkdirAll(cfg.DataDir, 0o755)
	store, err := history.NewStore(filepath.Join(cfg.DataDir, "attempts.db"))
	if err != nil {
		logger.Error("failed to open attempt store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Implementation pipeline
	provisioner := workspace.NewScript(cfg.Workspace.Provisioner, logger)
	runner := subagent.NewRunner(cfg.Subagent.Command, logger)
	orch := orchestrator.New(client, provisioner, runner, cfg, logger)

	var notifier tool.Notifier
	if cfg.Notify.SlackToken != "" {
		notifier = notify.NewSlack(cfg.Notify.SlackToken, cfg.Notify.SlackChannel, logger)
		logger.Info("slack notifications enabled", "channel", cfg.Notify.SlackChannel)
	}

	// Tool registry
	reg := tool.NewRegistry()
	reg.Register(&tool.GetTicketTool{Service: client})
	reg.Register(&tool.ListTicketsTool{Service: client})
	reg.Register(&tool.SearchTicketsTool{Service: client})
	reg.Register(&tool.AddCommentTool{Service: client})
	reg.Register(&tool.UpdateTicketStateTool{Service: client})
	reg.Register(&tool.GetWorkflowTool{Service: client})
	reg.Register(&tool.ImplementTicketTool{
		Orchestrator: orch,
		History:      store,
		Notify:       notifier,
		Logger:       logger,
	})
	logger.Info("tools registered", "count", reg.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", "signal", sig.String())
		cancel()
	}()

	var wg sync.WaitGroup

	// Optional status API
	if cfg.API.Port > 0 {
		srv := apiPkg.NewServer(store, logBuf, cfg.API, version, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Start(ctx); err != nil {
				logger.Error("status api failed", "error", err)
			}
		}()
	}

	// Optional autopilot sweep
	if cfg.Autopilot.Schedule != "" {
		p := poller.New(client, orch, cfg.Autopilot.ProjectID, cfg.Autopilot.StateName, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Start(ctx, cfg.Autopilot.Schedule); err != nil && err != context.Canceled {
				logger.Error("autopilot failed", "error", err)
			}
		}()
	}

	// MCP transport on stdio. Exit non-zero only when the transport breaks.
	server := mcp.NewServer(reg, "ticketsmith", version, logger)
	err = server.Run(ctx, os.Stdin, os.Stdout)
	cancel()
	wg.Wait()

	if err != nil && err != context.Canceled {
		logger.Error("mcp server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("ticketsmithd stopped")
}
