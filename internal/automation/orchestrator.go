// Package automation runs multi-step reactions to stored events. Each run
// walks a fixed step sequence and either ends with no action or records a
// follow-up trail; a failed step abandons the run without retries.
package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/atriumhq/atrium/internal/memory"
	"github.com/atriumhq/atrium/internal/model"
	"github.com/atriumhq/atrium/internal/rules"
)

const (
	automationActor = "assistant"

	// DefaultLookbackDays bounds the minutes check when unconfigured.
	DefaultLookbackDays = 30

	followUpDue = 24 * time.Hour
)

// Run step names, recorded in order on each Result.
const (
	StepTriggered     = "TRIGGERED"
	StepMemoryChecked = "MEMORY_CHECKED"
	StepNoAction      = "NO_ACTION"
	StepRecorded      = "RECORDED"
)

// Result describes one orchestrator run for logging and tests.
type Result struct {
	RunID     string
	MeetingID string
	Steps     []string
}

func (r *Result) step(name string) { r.Steps = append(r.Steps, name) }

// Orchestrator reacts to meeting.completed events: when no minutes exist
// for the meeting within the lookback window it raises a warning, schedules
// a follow-up task and writes an automation log entry.
type Orchestrator struct {
	index    *memory.Index
	engine   *rules.Engine
	lookback time.Duration
	guard    bool
	log      zerolog.Logger
}

// NewOrchestrator builds an Orchestrator. guard enables the idempotency
// check that suppresses a second run for an already-handled meeting.
func NewOrchestrator(index *memory.Index, engine *rules.Engine, lookbackDays int, guard bool, log zerolog.Logger) *Orchestrator {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	return &Orchestrator{
		index:    index,
		engine:   engine,
		lookback: time.Duration(lookbackDays) * 24 * time.Hour,
		guard:    guard,
		log:      log,
	}
}

// Trigger is the pipeline entry point. Events outside the allow-list are
// ignored; failures are logged and never propagate.
func (o *Orchestrator) Trigger(ctx context.Context, ev model.Event) {
	if ev.Type != "meeting.completed" {
		return
	}
	res, err := o.runFor(ctx, ev)
	if err != nil {
		o.log.Error().Err(err).
			Str("run_id", res.RunID).
			Str("meeting_id", res.MeetingID).
			Strs("steps", res.Steps).
			Msg("automation run abandoned")
		return
	}
	o.log.Info().
		Str("run_id", res.RunID).
		Str("meeting_id", res.MeetingID).
		Strs("steps", res.Steps).
		Msg("automation run finished")
}

func (o *Orchestrator) runFor(ctx context.Context, ev model.Event) (*Result, error) {
	res := &Result{RunID: model.NewRunID(), MeetingID: ev.EntityID}
	res.step(StepTriggered)

	if o.guard {
		handled, err := o.alreadyHandled(ctx, ev.EntityID)
		if err != nil {
			return res, fmt.Errorf("idempotency check: %w", err)
		}
		if handled {
			res.step(StepNoAction)
			return res, nil
		}
	}

	found, err := o.minutesExist(ctx, ev.EntityID)
	if err != nil {
		return res, fmt.Errorf("minutes check: %w", err)
	}
	res.step(StepMemoryChecked)
	if found {
		res.step(StepNoAction)
		return res, nil
	}

	if err := o.raiseAlert(ctx, ev); err != nil {
		return res, fmt.Errorf("alert: %w", err)
	}
	if err := o.scheduleFollowUp(ctx, ev); err != nil {
		return res, fmt.Errorf("follow-up: %w", err)
	}
	if err := o.recordRun(ctx, res, ev); err != nil {
		return res, fmt.Errorf("record: %w", err)
	}
	res.step(StepRecorded)
	return res, nil
}

// alreadyHandled reports whether an automation_log entry within the lookback
// window names exactly this meeting. Matching goes through the meeting_id
// metadata, not text search; a log for meeting "m12" must not count as
// handling meeting "m1".
func (o *Orchestrator) alreadyHandled(ctx context.Context, meetingID string) (bool, error) {
	cutoff := time.Now().UTC().Add(-o.lookback)
	entries, err := o.index.Search(ctx, memory.SearchRequest{
		EntityTypes: []string{"automation_log"},
	})
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.CreatedAt.Before(cutoff) {
			continue
		}
		if id, ok := e.Metadata["meeting_id"].(string); ok && id == meetingID {
			return true, nil
		}
	}
	return false, nil
}

func (o *Orchestrator) minutesExist(ctx context.Context, meetingID string) (bool, error) {
	cutoff := time.Now().UTC().Add(-o.lookback)
	entries, err := o.index.Search(ctx, memory.SearchRequest{
		EntityTypes: []string{"meeting_minutes"},
		EntityID:    meetingID,
	})
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if !e.CreatedAt.Before(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

func (o *Orchestrator) raiseAlert(ctx context.Context, ev model.Event) error {
	a := model.NewAlert(model.SeverityWarning,
		"Meeting completed without minutes",
		fmt.Sprintf("Meeting '%s' completed but no minutes were recorded", ev.EntityID),
		ev.ID, ev.Payload)
	return o.engine.EmitAs(ctx, a, "automation.alert_triggered", "meeting", ev.EntityID, automationActor)
}

func (o *Orchestrator) scheduleFollowUp(ctx context.Context, ev model.Event) error {
	title := meetingTitle(ev)
	due := time.Now().UTC().Add(followUpDue).Format(time.RFC3339)
	_, err := o.index.Write(ctx, model.ResolveOwner(ev.Actor),
		"follow_up_task", "auto_followup_"+ev.EntityID,
		fmt.Sprintf("Document minutes for meeting '%s'", title),
		map[string]interface{}{
			"due":        due,
			"priority":   "medium",
			"automated":  true,
			"meeting_id": ev.EntityID,
		})
	return err
}

func (o *Orchestrator) recordRun(ctx context.Context, res *Result, ev model.Event) error {
	_, err := o.index.Write(ctx, model.ResolveOwner(automationActor),
		"automation_log", res.RunID,
		fmt.Sprintf("Automation run %s: missing-minutes handling for meeting %s", res.RunID, ev.EntityID),
		map[string]interface{}{
			"meeting_id": ev.EntityID,
			"steps":      res.Steps,
			"automated":  true,
		})
	return err
}

func meetingTitle(ev model.Event) string {
	if dp, ok := ev.Payload.(model.DomainPayload); ok && dp.Title != "" {
		return dp.Title
	}
	return ev.EntityID
}
