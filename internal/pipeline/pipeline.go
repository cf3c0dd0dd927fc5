package pipeline

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/atriumhq/atrium/internal/model"
	"github.com/atriumhq/atrium/internal/store"
)

// Automation is the narrow view of the orchestrator the pipeline needs.
type Automation interface {
	Trigger(ctx context.Context, ev model.Event)
}

// Pipeline is the single entry point for event producers. Submit writes the
// event durably and schedules the derived work; only the durable save can
// fail the caller.
type Pipeline struct {
	events store.Events
	disp   *Dispatcher
	proc   *Processor
	auto   Automation
	log    zerolog.Logger
}

// New wires a Pipeline. auto may be nil when automations are disabled.
func New(events store.Events, disp *Dispatcher, proc *Processor, auto Automation, log zerolog.Logger) *Pipeline {
	return &Pipeline{events: events, disp: disp, proc: proc, auto: auto, log: log}
}

// Submit persists the event and, on success, enqueues processing and
// automation as best-effort background tasks. The returned record carries
// the assigned id and surrogate key. A persistence failure is the only
// error a producer ever sees.
func (p *Pipeline) Submit(ctx context.Context, ev model.Event) (*model.EventRecord, error) {
	rec, err := p.events.Save(ctx, &ev)
	if err != nil {
		return nil, err
	}

	stored := rec.Event
	p.disp.Enqueue(func(ctx context.Context) {
		p.proc.Process(ctx, stored)
	})
	if p.auto != nil {
		p.disp.Enqueue(func(ctx context.Context) {
			p.auto.Trigger(ctx, stored)
		})
	}
	return rec, nil
}
