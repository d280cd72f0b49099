// Package poller runs the autopilot loop: on a cron schedule it scans a
// project for feature tickets sitting in a configured state and hands each
// one to the orchestrator.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/ticketsmith-io/ticketsmith/internal/orchestrator"
	"github.com/ticketsmith-io/ticketsmith/internal/ticketing"
	"github.com/ticketsmith-io/ticketsmith/pkg/protocol"
)

// TicketSource lists candidate tickets for the autopilot.
type TicketSource interface {
	GetWorkflow(ctx context.Context, projectID string) ([]protocol.WorkflowState, error)
	ListTickets(ctx context.Context, projectID string, filter ticketing.ListFilter) (*protocol.TicketPage, error)
}

// Implementer runs one implementation attempt. Implemented by
// *orchestrator.Orchestrator.
type Implementer interface {
	Implement(ctx context.Context, req orchestrator.Request) protocol.ImplementationOutput
}

// Poller periodically sweeps one project for ready feature tickets.
type Poller struct {
	source    TicketSource
	impl      Implementer
	projectID string
	stateName string
	logger    *slog.Logger

	cron *cron.Cron

	mu       sync.Mutex
	inFlight map[string]bool // ticket keys currently being implemented
}

func New(source TicketSource, impl Implementer, projectID, stateName string, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		source:    source,
		impl:      impl,
		projectID: projectID,
		stateName: stateName,
		logger:    logger,
		cron:      cron.New(),
		inFlight:  make(map[string]bool),
	}
}

// Start registers the sweep on the given cron schedule (standard 5-field
// expression or @every form) and blocks until the context is cancelled.
func (p *Poller) Start(ctx context.Context, schedule string) error {
	_, err := p.cron.AddFunc(schedule, func() {
		if err := p.Sweep(ctx); err != nil {
			p.logger.Warn("sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("poller: invalid schedule %q: %w", schedule, err)
	}

	p.cron.Start()
	p.logger.Info("autopilot started", "project", p.projectID, "state", p.stateName, "schedule", schedule)

	<-ctx.Done()
	p.cron.Stop()
	p.logger.Info("autopilot stopped")
	return ctx.Err()
}

// Sweep runs one pass: find feature tickets in the configured state and
// implement each sequentially. Tickets already in flight are skipped so an
// overlapping sweep cannot double-provision a worktree.
func (p *Poller) Sweep(ctx context.Context) error {
	states, err := p.source.GetWorkflow(ctx, p.projectID)
	if err != nil {
		return fmt.Errorf("poller: workflow: %w", err)
	}
	var stateID string
	for _, s := range states {
		if strings.EqualFold(s.Name, p.stateName) {
			stateID = s.ID
			break
		}
	}
	if stateID == "" {
		return fmt.Errorf("poller: state %q not found in project %s", p.stateName, p.projectID)
	}

	page, err := p.source.ListTickets(ctx, p.projectID, ticketing.ListFilter{StateID: stateID})
	if err != nil {
		return fmt.Errorf("poller: list tickets: %w", err)
	}

	for _, ticket := range page.Items {
		if ticket.Type != protocol.TicketTypeFeature {
			continue
		}
		if !p.claim(ticket.Key) {
			p.logger.Info("ticket already in flight, skipping", "ticket", ticket.Key)
			continue
		}
		p.logger.Info("autopilot picked ticket", "ticket", ticket.Key)
		out := p.impl.Implement(ctx, orchestrator.Request{TicketRef: ticket.ID})
		p.release(ticket.Key)
		p.logger.Info("autopilot attempt finished", "ticket", ticket.Key, "success", out.Success)
	}
	return nil
}

func (p *Poller) claim(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight[key] {
		return false
	}
	p.inFlight[key] = true
	return true
}

func (p *Poller) release(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, key)
}
