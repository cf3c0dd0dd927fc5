// Package rules evaluates stateless alert rules over single events and
// persists the resulting alerts back into the event log.
package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/atriumhq/atrium/internal/model"
	"github.com/atriumhq/atrium/internal/store"
)

// Actor recorded on alert events written by the engine.
const engineActor = "alert_engine"

// Rule is a single independent alert rule. Rules are isolated: a panicking
// rule is caught and logged without preventing sibling rules from running.
type Rule struct {
	Name string
	Eval func(model.Event) []model.Alert
}

// Engine evaluates the per-event rule table and emits alerts as
// alert.created events. It holds no mutable state besides its dependencies.
type Engine struct {
	events store.Events
	rules  []Rule
	log    zerolog.Logger
}

// NewEngine builds an Engine with the default rule table.
func NewEngine(events store.Events, log zerolog.Logger) *Engine {
	return &Engine{events: events, rules: defaultRules(), log: log}
}

// WithRules replaces the rule table; used by tests and scheduled checks.
func (e *Engine) WithRules(rules []Rule) *Engine {
	e.rules = rules
	return e
}

// Evaluate runs every rule against the event and collects the produced
// alerts. Rule failures are logged per rule and swallowed.
func (e *Engine) Evaluate(ev model.Event) []model.Alert {
	var alerts []model.Alert
	for _, r := range e.rules {
		alerts = append(alerts, e.runRule(r, ev)...)
	}
	return alerts
}

// EvaluateAndEmit evaluates the event and persists every produced alert as
// an alert.created event. Emission failures are logged and do not stop
// sibling alerts from being recorded.
func (e *Engine) EvaluateAndEmit(ctx context.Context, ev model.Event) []model.Alert {
	alerts := e.Evaluate(ev)
	for _, a := range alerts {
		if err := e.Emit(ctx, a); err != nil {
			e.log.Error().Err(err).Str("alert_id", a.ID).Str("title", a.Title).Msg("alert emission failed")
		}
	}
	return alerts
}

// Emit persists an alert as an alert.created event. The alert fields and
// source_event_id travel in the payload; the log is the only alert store.
func (e *Engine) Emit(ctx context.Context, a model.Alert) error {
	return e.EmitAs(ctx, a, "alert.created", "alert", a.ID, engineActor)
}

// EmitAs persists an alert under a caller-chosen event shape. The
// automation orchestrator uses it to record its compensating alerts as
// automation.alert_triggered events, keeping them distinguishable from
// per-event rule alerts.
func (e *Engine) EmitAs(ctx context.Context, a model.Alert, eventType, entity, entityID, actor string) error {
	ev := model.NewAlertEvent(eventType, entity, entityID, actor, a)
	if _, err := e.events.Save(ctx, &ev); err != nil {
		return fmt.Errorf("persist %s: %w", eventType, err)
	}
	return nil
}

func (e *Engine) runRule(r Rule, ev model.Event) (alerts []model.Alert) {
	defer func() {
		if rec := recover(); rec != nil {
			e.log.Error().Interface("panic", rec).Str("rule", r.Name).Str("event_type", ev.Type).
				Msg("alert rule failed")
			alerts = nil
		}
	}()
	return r.Eval(ev)
}

// defaultRules is the per-event rule table. Each rule receives every event
// and decides for itself; no rule depends on another.
func defaultRules() []Rule {
	return []Rule{
		{Name: "followup-urgency", Eval: followupUrgency},
		{Name: "meeting-cancelled", Eval: meetingCancelled},
		{Name: "regulatory-kpi", Eval: regulatoryKPI},
		{Name: "meeting-without-minutes", Eval: meetingWithoutMinutes},
		{Name: "api-server-error", Eval: apiServerError},
		{Name: "slow-endpoint", Eval: slowEndpoint},
		{Name: "auth-client-error", Eval: authClientError},
	}
}

func followupUrgency(ev model.Event) []model.Alert {
	if ev.Type != "followup.generated" {
		return nil
	}
	p, ok := ev.Payload.(model.DomainPayload)
	if !ok {
		return nil
	}
	if p.Urgency != "high" && p.Urgency != "critical" {
		return nil
	}
	return []model.Alert{model.NewAlert(
		model.SeverityCritical,
		"Critical follow-up generated",
		fmt.Sprintf("Critical task assigned to %s", orUnknown(p.Responsible)),
		ev.ID, ev.Payload,
	)}
}

func meetingCancelled(ev model.Event) []model.Alert {
	if ev.Type != "meeting.cancelled" {
		return nil
	}
	return []model.Alert{model.NewAlert(
		model.SeverityWarning,
		"Meeting cancelled",
		"A scheduled meeting was cancelled.",
		ev.ID, ev.Payload,
	)}
}

func regulatoryKPI(ev model.Event) []model.Alert {
	if ev.Type != "kpi.updated" {
		return nil
	}
	p, ok := ev.Payload.(model.DomainPayload)
	if !ok || p.Area != "Regulatory" {
		return nil
	}
	if p.Status != "alert" && p.Status != "critical" {
		return nil
	}
	return []model.Alert{model.NewAlert(
		model.SeverityCritical,
		"Regulatory KPI breach",
		"Regulatory indicator in critical state.",
		ev.ID, ev.Payload,
	)}
}

func meetingWithoutMinutes(ev model.Event) []model.Alert {
	if ev.Type != "meeting.completed" {
		return nil
	}
	if p, ok := ev.Payload.(model.DomainPayload); ok && strings.TrimSpace(p.Agenda) != "" {
		return nil
	}
	return []model.Alert{model.NewAlert(
		model.SeverityCritical,
		"Meeting completed without minutes",
		fmt.Sprintf("Meeting %s was completed without recorded minutes or agenda.", ev.EntityID),
		ev.ID, ev.Payload,
	)}
}

func apiServerError(ev model.Event) []model.Alert {
	p, ok := ev.Payload.(model.HTTPPayload)
	if !ok || p.StatusCode < 500 {
		return nil
	}
	return []model.Alert{model.NewAlert(
		model.SeverityCritical,
		"API error",
		fmt.Sprintf("Status %d at %s", p.StatusCode, p.Path),
		ev.ID, ev.Payload,
	)}
}

func slowEndpoint(ev model.Event) []model.Alert {
	p, ok := ev.Payload.(model.HTTPPayload)
	if !ok || p.ResponseTimeMs <= 5000 {
		return nil
	}
	return []model.Alert{model.NewAlert(
		model.SeverityWarning,
		"Slow endpoint",
		fmt.Sprintf("%s responded in %.0fms", p.Path, p.ResponseTimeMs),
		ev.ID, ev.Payload,
	)}
}

func authClientError(ev model.Event) []model.Alert {
	p, ok := ev.Payload.(model.HTTPPayload)
	if !ok || p.StatusCode < 400 || p.StatusCode >= 500 {
		return nil
	}
	if !strings.Contains(p.Path, "auth") && !strings.Contains(p.Path, "login") {
		return nil
	}
	return []model.Alert{model.NewAlert(
		model.SeverityWarning,
		"Possible auth issue",
		fmt.Sprintf("Status %d on authentication path %s", p.StatusCode, p.Path),
		ev.ID, ev.Payload,
	)}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
