package rules

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/atriumhq/atrium/internal/model"
	"github.com/atriumhq/atrium/internal/store"
)

// fakeEvents is an in-memory store.Events used across the rules tests.
type fakeEvents struct {
	saved []*model.EventRecord
	err   error
}

func (f *fakeEvents) Save(_ context.Context, ev *model.Event) (*model.EventRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := *ev
	seq := int64(len(f.saved) + 1)
	if out.ID == "" {
		out.ID = fmt.Sprintf("evt_%d", seq)
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now().UTC()
	}
	rec := &model.EventRecord{Seq: seq, OwnerID: model.ResolveOwner(out.Actor), Event: out}
	f.saved = append(f.saved, rec)
	return rec, nil
}

func (f *fakeEvents) ListRecent(_ context.Context, limit int) ([]*model.EventRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*model.EventRecord, 0, limit)
	for i := len(f.saved) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.saved[i])
	}
	return out, nil
}

func (f *fakeEvents) ListSince(_ context.Context, since time.Time) ([]*model.EventRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.EventRecord
	for i := len(f.saved) - 1; i >= 0; i-- {
		if !f.saved[i].Event.Timestamp.Before(since) {
			out = append(out, f.saved[i])
		}
	}
	return out, nil
}

func (f *fakeEvents) ListBy(_ context.Context, flt store.EventFilter, limit int) ([]*model.EventRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.EventRecord
	for i := len(f.saved) - 1; i >= 0; i-- {
		r := f.saved[i]
		if flt.Type != "" && r.Event.Type != flt.Type {
			continue
		}
		if flt.Entity != "" && r.Event.Entity != flt.Entity {
			continue
		}
		if flt.EntityID != "" && r.Event.EntityID != flt.EntityID {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeEvents) CountAlertsSince(_ context.Context, title, needle string, since time.Time) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n := 0
	for _, r := range f.saved {
		if r.Event.Type != "alert.created" && r.Event.Type != "automation.alert_triggered" {
			continue
		}
		if r.Event.Timestamp.Before(since) {
			continue
		}
		raw, err := model.MarshalPayload(r.Event.Payload)
		if err != nil {
			continue
		}
		s := string(raw)
		if !strings.Contains(s, title) {
			continue
		}
		if needle != "" && !strings.Contains(s, needle) {
			continue
		}
		n++
	}
	return n, nil
}

func domainEvent(t *testing.T, eventType string, p model.DomainPayload) model.Event {
	t.Helper()
	ev, err := model.NewDomainEvent(eventType, "meeting", "m1", "user_7", p)
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	ev.ID = "evt_src"
	return ev
}

func httpEvent(t *testing.T, p model.HTTPPayload) model.Event {
	t.Helper()
	ev, err := model.NewHTTPEvent("api.get", "GET:/x:1", "anonymous", p)
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	ev.ID = "evt_src"
	return ev
}

func assertSingleAlert(t *testing.T, alerts []model.Alert, severity model.Severity, title string) model.Alert {
	t.Helper()
	if len(alerts) != 1 {
		t.Fatalf("expected exactly 1 alert, got %d: %+v", len(alerts), alerts)
	}
	a := alerts[0]
	if a.Severity != severity || a.Title != title {
		t.Fatalf("unexpected alert: %+v", a)
	}
	if a.SourceEventID != "evt_src" {
		t.Fatalf("source event id not carried: %q", a.SourceEventID)
	}
	return a
}

func TestFollowupUrgencyRule(t *testing.T) {
	e := NewEngine(&fakeEvents{}, zerolog.Nop())

	alerts := e.Evaluate(domainEvent(t, "followup.generated", model.DomainPayload{Urgency: "high", Responsible: "Ana"}))
	a := assertSingleAlert(t, alerts, model.SeverityCritical, "Critical follow-up generated")
	if !strings.Contains(a.Description, "Ana") {
		t.Fatalf("responsible missing from description: %s", a.Description)
	}

	if alerts := e.Evaluate(domainEvent(t, "followup.generated", model.DomainPayload{Urgency: "low"})); len(alerts) != 0 {
		t.Fatalf("low urgency must not alert: %+v", alerts)
	}

	alerts = e.Evaluate(domainEvent(t, "followup.generated", model.DomainPayload{Urgency: "critical"}))
	a = assertSingleAlert(t, alerts, model.SeverityCritical, "Critical follow-up generated")
	if !strings.Contains(a.Description, "unknown") {
		t.Fatalf("missing responsible should read unknown: %s", a.Description)
	}
}

func TestMeetingCancelledRule(t *testing.T) {
	e := NewEngine(&fakeEvents{}, zerolog.Nop())
	alerts := e.Evaluate(domainEvent(t, "meeting.cancelled", model.DomainPayload{Title: "Review"}))
	assertSingleAlert(t, alerts, model.SeverityWarning, "Meeting cancelled")
}

func TestRegulatoryKPIRule(t *testing.T) {
	e := NewEngine(&fakeEvents{}, zerolog.Nop())

	alerts := e.Evaluate(domainEvent(t, "kpi.updated", model.DomainPayload{Area: "Regulatory", Status: "alert"}))
	assertSingleAlert(t, alerts, model.SeverityCritical, "Regulatory KPI breach")

	if alerts := e.Evaluate(domainEvent(t, "kpi.updated", model.DomainPayload{Area: "Finance", Status: "alert"})); len(alerts) != 0 {
		t.Fatalf("non-regulatory KPI must not alert: %+v", alerts)
	}
	if alerts := e.Evaluate(domainEvent(t, "kpi.updated", model.DomainPayload{Area: "Regulatory", Status: "ok"})); len(alerts) != 0 {
		t.Fatalf("healthy KPI must not alert: %+v", alerts)
	}
}

func TestMeetingWithoutMinutesRule(t *testing.T) {
	e := NewEngine(&fakeEvents{}, zerolog.Nop())

	alerts := e.Evaluate(domainEvent(t, "meeting.completed", model.DomainPayload{Title: "Standup"}))
	assertSingleAlert(t, alerts, model.SeverityCritical, "Meeting completed without minutes")

	// whitespace-only agenda counts as missing
	alerts = e.Evaluate(domainEvent(t, "meeting.completed", model.DomainPayload{Agenda: "   "}))
	assertSingleAlert(t, alerts, model.SeverityCritical, "Meeting completed without minutes")

	if alerts := e.Evaluate(domainEvent(t, "meeting.completed", model.DomainPayload{Agenda: "Decisions recorded"})); len(alerts) != 0 {
		t.Fatalf("meeting with minutes must not alert: %+v", alerts)
	}
}

func TestHTTPRules(t *testing.T) {
	e := NewEngine(&fakeEvents{}, zerolog.Nop())

	alerts := e.Evaluate(httpEvent(t, model.HTTPPayload{Method: "GET", Path: "/api/v1/kpis", StatusCode: 502}))
	assertSingleAlert(t, alerts, model.SeverityCritical, "API error")

	alerts = e.Evaluate(httpEvent(t, model.HTTPPayload{Method: "GET", Path: "/api/v1/kpis", StatusCode: 200, ResponseTimeMs: 7200}))
	assertSingleAlert(t, alerts, model.SeverityWarning, "Slow endpoint")

	alerts = e.Evaluate(httpEvent(t, model.HTTPPayload{Method: "POST", Path: "/api/v1/auth/login", StatusCode: 401}))
	assertSingleAlert(t, alerts, model.SeverityWarning, "Possible auth issue")

	if alerts := e.Evaluate(httpEvent(t, model.HTTPPayload{Method: "GET", Path: "/api/v1/kpis", StatusCode: 404})); len(alerts) != 0 {
		t.Fatalf("plain 404 must not alert: %+v", alerts)
	}
}

func TestPanickingRuleIsIsolated(t *testing.T) {
	e := NewEngine(&fakeEvents{}, zerolog.Nop()).WithRules([]Rule{
		{Name: "boom", Eval: func(model.Event) []model.Alert { panic("boom") }},
		{Name: "ok", Eval: func(ev model.Event) []model.Alert {
			return []model.Alert{model.NewAlert(model.SeverityInfo, "ok", "", ev.ID, nil)}
		}},
	})

	alerts := e.Evaluate(domainEvent(t, "meeting.created", model.DomainPayload{}))
	if len(alerts) != 1 || alerts[0].Title != "ok" {
		t.Fatalf("sibling rule did not survive panic: %+v", alerts)
	}
}

func TestEvaluateAndEmitPersistsAlertEvents(t *testing.T) {
	events := &fakeEvents{}
	e := NewEngine(events, zerolog.Nop())

	alerts := e.EvaluateAndEmit(context.Background(), domainEvent(t, "meeting.cancelled", model.DomainPayload{}))
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if len(events.saved) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(events.saved))
	}
	stored := events.saved[0].Event
	if stored.Type != "alert.created" || stored.Entity != "alert" || stored.Actor != "alert_engine" {
		t.Fatalf("unexpected alert event shape: %+v", stored)
	}
	ap, ok := stored.Payload.(model.AlertPayload)
	if !ok || ap.SourceEventID != "evt_src" {
		t.Fatalf("alert payload malformed: %#v", stored.Payload)
	}
}

func TestEmitFailureDoesNotPanic(t *testing.T) {
	events := &fakeEvents{err: fmt.Errorf("%w: down", model.ErrPersistence)}
	e := NewEngine(events, zerolog.Nop())

	alerts := e.EvaluateAndEmit(context.Background(), domainEvent(t, "meeting.cancelled", model.DomainPayload{}))
	if len(alerts) != 1 {
		t.Fatalf("evaluation result should survive emission failure, got %d alerts", len(alerts))
	}
}
